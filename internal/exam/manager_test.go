package exam

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
)

func TestCreateExamValidation(t *testing.T) {
	env := newTestEnv(t)
	base := openSpec()

	tests := []struct {
		name    string
		actor   model.Actor
		mutate  func(*ExamSpec)
		wantErr error
	}{
		{"ok", env.faculty, func(*ExamSpec) {}, nil},
		{"student", env.student, func(*ExamSpec) {}, model.ErrUnauthorized},
		{"hod", env.hod, func(*ExamSpec) {}, model.ErrUnauthorized},
		{"blank title", env.faculty, func(s *ExamSpec) { s.Title = "  " }, model.ErrValidation},
		{"zero time limit", env.faculty, func(s *ExamSpec) { s.TimeLimit = 0 }, model.ErrValidation},
		{"end before start", env.faculty, func(s *ExamSpec) { s.EndTime = s.StartTime.Add(-time.Minute) }, model.ErrValidation},
		{"missing start", env.faculty, func(s *ExamSpec) { s.StartTime = time.Time{} }, model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			tt.mutate(&spec)
			e, err := env.mgr.CreateExam(tt.actor, spec)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("CreateExam: %v", err)
				}
				if e.FacultyID != env.faculty.ID || e.DepartmentID != env.deptID {
					t.Errorf("exam not owned by actor: %+v", e)
				}
				if !e.IsActive || e.ExamType != model.ExamTypeManual {
					t.Errorf("unexpected exam state: %+v", e)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOwnershipChecks(t *testing.T) {
	env := newTestEnv(t)
	e := env.createExam(t)
	qs := env.addQuestions(t, e.ID, "A")

	if _, err := env.mgr.AddQuestion(env.other, e.ID, draft("Q", "A")); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("AddQuestion by other faculty: expected ErrUnauthorized, got %v", err)
	}
	if err := env.mgr.DeleteQuestion(env.other, qs[0].ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("DeleteQuestion by other faculty: expected ErrUnauthorized, got %v", err)
	}
	if _, err := env.mgr.ToggleActive(env.other, e.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("ToggleActive by other faculty: expected ErrUnauthorized, got %v", err)
	}
	if err := env.mgr.DeleteExam(env.other, e.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("DeleteExam by other faculty: expected ErrUnauthorized, got %v", err)
	}
	if _, err := env.mgr.ImportDelimited(env.other, e.ID, "h\nq,a,b,c,d,A"); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("ImportDelimited by other faculty: expected ErrUnauthorized, got %v", err)
	}
	if _, err := env.mgr.AddQuestion(env.faculty, 9999, draft("Q", "A")); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("AddQuestion to missing exam: expected ErrNotFound, got %v", err)
	}

	// Nothing was written by the rejected calls.
	n, _ := env.store.QuestionCount(e.ID)
	if n != 1 {
		t.Errorf("expected 1 question, got %d", n)
	}
}

func TestAddQuestion(t *testing.T) {
	env := newTestEnv(t)
	e := env.createExam(t)

	q, err := env.mgr.AddQuestion(env.faculty, e.ID, draft("  What is 2+2?  ", "b"))
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if q.QuestionNumber != 1 || q.QuestionText != "What is 2+2?" || q.CorrectAnswer != "B" {
		t.Errorf("unexpected question: %+v", q)
	}
	if q.Explanation != model.DefaultExplanation {
		t.Errorf("expected default explanation, got %q", q.Explanation)
	}

	if _, err := env.mgr.AddQuestion(env.faculty, e.ID, draft("Q", "E")); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for answer E, got %v", err)
	}
	incomplete := draft("Q", "A")
	incomplete.OptionD = ""
	if _, err := env.mgr.AddQuestion(env.faculty, e.ID, incomplete); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for missing option, got %v", err)
	}

	q2, err := env.mgr.AddQuestion(env.faculty, e.ID, draft("Second", "C"))
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if q2.QuestionNumber != 2 {
		t.Errorf("expected question number 2, got %d", q2.QuestionNumber)
	}
}

func TestImportDelimited(t *testing.T) {
	const twoRows = "question,a,b,c,d,answer\n" +
		"What is HTML?,Markup,Style,Script,Database,A\n" +
		"\"What is CSS?\",Markup,Style,Script,Database,B,Styles pages\n"

	t.Run("numbers from one", func(t *testing.T) {
		env := newTestEnv(t)
		e := env.createExam(t)
		n, err := env.mgr.ImportDelimited(env.faculty, e.ID, twoRows)
		if err != nil {
			t.Fatalf("ImportDelimited: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 imported, got %d", n)
		}
		qs, _ := env.store.ListQuestions(e.ID)
		if len(qs) != 2 || qs[0].QuestionNumber != 1 || qs[1].QuestionNumber != 2 {
			t.Fatalf("unexpected questions: %+v", qs)
		}
		if qs[1].QuestionText != "What is CSS?" {
			t.Errorf("expected quotes removed, got %q", qs[1].QuestionText)
		}
		if qs[0].Explanation != model.DefaultExplanation {
			t.Errorf("expected default explanation, got %q", qs[0].Explanation)
		}
		if qs[1].Explanation != "Styles pages" {
			t.Errorf("expected explanation from 7th field, got %q", qs[1].Explanation)
		}
	})

	t.Run("continues numbering", func(t *testing.T) {
		env := newTestEnv(t)
		e := env.createExam(t)
		env.addQuestions(t, e.ID, "A", "B", "C")
		if _, err := env.mgr.ImportDelimited(env.faculty, e.ID, twoRows); err != nil {
			t.Fatalf("ImportDelimited: %v", err)
		}
		qs, _ := env.store.ListQuestions(e.ID)
		if len(qs) != 5 || qs[3].QuestionNumber != 4 || qs[4].QuestionNumber != 5 {
			t.Fatalf("expected numbers 4 and 5, got %+v", qs)
		}
	})

	t.Run("short row skipped", func(t *testing.T) {
		env := newTestEnv(t)
		e := env.createExam(t)
		raw := "header\nOnly five,a,b,c,A\n\n   \nGood,a,b,c,d,D\n"
		n, err := env.mgr.ImportDelimited(env.faculty, e.ID, raw)
		if err != nil {
			t.Fatalf("ImportDelimited: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 imported, got %d", n)
		}
	})
}

func TestParseDelimited(t *testing.T) {
	drafts, skipped := ParseDelimited("h\r\nq1,a,b,c,d,A\r\nbad,row\r\n")
	if len(drafts) != 1 || drafts[0].CorrectAnswer != "A" {
		t.Errorf("unexpected drafts: %+v", drafts)
	}
	if len(skipped) != 1 || skipped[0].Line != 3 || !errors.Is(skipped[0].Err, model.ErrValidation) {
		t.Errorf("unexpected skipped rows: %+v", skipped)
	}

	// A trailing comma does not stand in for the answer.
	drafts, skipped = ParseDelimited("h\nWhat?,a,b,c,d,\n")
	if len(drafts) != 0 {
		t.Errorf("expected no drafts from a row without an answer, got %+v", drafts)
	}
	if len(skipped) != 1 || skipped[0].Line != 2 || !errors.Is(skipped[0].Err, model.ErrValidation) {
		t.Errorf("unexpected skipped rows: %+v", skipped)
	}

	// Blank answer in the middle of a row with an explanation.
	drafts, skipped = ParseDelimited("h\nWhat?,a,b,c,d,\"\",why\n")
	if len(drafts) != 0 || len(skipped) != 1 {
		t.Errorf("expected the blank-answer row skipped, got %d/%d", len(drafts), len(skipped))
	}

	// An empty trailing explanation is fine.
	drafts, skipped = ParseDelimited("h\nWhat?,a,b,c,d,B,\n")
	if len(drafts) != 1 || drafts[0].CorrectAnswer != "B" || drafts[0].Explanation != "" || len(skipped) != 0 {
		t.Errorf("unexpected result for empty explanation: %+v / %+v", drafts, skipped)
	}

	// Header only.
	drafts, skipped = ParseDelimited("question,a,b,c,d,answer")
	if len(drafts) != 0 || len(skipped) != 0 {
		t.Errorf("expected nothing from header-only input, got %d/%d", len(drafts), len(skipped))
	}
}

func TestCreateExamFromDelimited(t *testing.T) {
	env := newTestEnv(t)
	spec := openSpec()
	spec.TotalQuestions = 10
	raw := "h\nq1,a,b,c,d,A\nq2,a,b,c,d,B\nq3,a,b,c,d,C\n"

	e, n, err := env.mgr.CreateExamFromDelimited(env.faculty, spec, raw)
	if err != nil {
		t.Fatalf("CreateExamFromDelimited: %v", err)
	}
	if n != 3 || e.TotalQuestions != 3 {
		t.Errorf("expected 3 questions declared and imported, got %d/%d", e.TotalQuestions, n)
	}
	if e.ExamType != model.ExamTypeCSVUpload {
		t.Errorf("expected CSV_UPLOAD, got %s", e.ExamType)
	}
	stored, _ := env.store.GetExam(e.ID)
	if stored.TotalQuestions != 3 {
		t.Errorf("expected stored total 3, got %d", stored.TotalQuestions)
	}
}

func TestCreateExamWithGeneratedQuestions(t *testing.T) {
	t.Run("adapter error falls back", func(t *testing.T) {
		env := newTestEnv(t)
		env.gen.err = errAdapter
		spec := openSpec()
		spec.TotalQuestions = 3

		e, report, err := env.mgr.CreateExamWithGeneratedQuestions(context.Background(), env.faculty, spec, "HTML basics", "")
		if err != nil {
			t.Fatalf("CreateExamWithGeneratedQuestions: %v", err)
		}
		stored, _ := env.store.GetExam(e.ID)
		if stored == nil {
			t.Fatal("exam should exist after adapter failure")
		}
		if report.Source != SourceFallback || report.Warning == "" {
			t.Errorf("expected fallback with warning, got %+v", report)
		}
		if !strings.Contains(report.Warning, "upstream 503") {
			t.Errorf("warning should carry the adapter error, got %q", report.Warning)
		}
		if report.Saved != 3 || stored.TotalQuestions != 3 || stored.ExamType != model.ExamTypeAIGenerated {
			t.Errorf("unexpected result: report %+v, exam %+v", report, stored)
		}
		if env.gen.diff != DefaultDifficulty {
			t.Errorf("expected default difficulty, got %q", env.gen.diff)
		}
	})

	t.Run("incomplete drafts dropped", func(t *testing.T) {
		env := newTestEnv(t)
		bad := draft("no answer", "")
		env.gen.drafts = []model.QuestionDraft{draft("good 1", "A"), bad, draft("good 2", "C")}
		spec := openSpec()
		spec.TotalQuestions = 3

		e, report, err := env.mgr.CreateExamWithGeneratedQuestions(context.Background(), env.faculty, spec, "Go", "hard")
		if err != nil {
			t.Fatalf("CreateExamWithGeneratedQuestions: %v", err)
		}
		if report.Source != SourceAI || report.Saved != 2 {
			t.Errorf("expected 2 AI questions, got %+v", report)
		}
		qs, _ := env.store.ListQuestions(e.ID)
		if len(qs) != 2 || qs[0].QuestionNumber != 1 || qs[1].QuestionNumber != 2 {
			t.Errorf("unexpected questions: %+v", qs)
		}
		if e.TotalQuestions != 2 {
			t.Errorf("expected declared count 2, got %d", e.TotalQuestions)
		}
		if env.gen.diff != "HARD" {
			t.Errorf("expected upper-cased difficulty, got %q", env.gen.diff)
		}
	})

	t.Run("zero count rejected", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.mgr.CreateExamWithGeneratedQuestions(context.Background(), env.faculty, openSpec(), "Go", "")
		if !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestGenerateQuestions(t *testing.T) {
	env := newTestEnv(t)
	e := env.createExam(t)
	env.addQuestions(t, e.ID, "A", "B")

	env.gen.drafts = []model.QuestionDraft{draft("g1", "A"), draft("g2", "B"), draft("g3", "C")}
	report, err := env.mgr.GenerateQuestions(context.Background(), env.faculty, e.ID, GenerateRequest{Topic: "Python", Count: 2})
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if report.Saved != 2 {
		t.Errorf("expected result capped at 2, got %d", report.Saved)
	}
	qs, _ := env.store.ListQuestions(e.ID)
	if len(qs) != 4 || qs[3].QuestionNumber != 4 {
		t.Fatalf("expected appended questions numbered 3 and 4, got %+v", qs)
	}

	report, err = env.mgr.GenerateQuestions(context.Background(), env.faculty, e.ID,
		GenerateRequest{Topic: "Python", Count: 3, Replace: true})
	if err != nil {
		t.Fatalf("GenerateQuestions replace: %v", err)
	}
	qs, _ = env.store.ListQuestions(e.ID)
	if len(qs) != 3 || qs[0].QuestionText != "g1" || qs[0].QuestionNumber != 1 {
		t.Errorf("expected replaced questions, got %+v", qs)
	}
	stored, _ := env.store.GetExam(e.ID)
	if stored.TotalQuestions != report.Saved {
		t.Errorf("expected declared count %d, got %d", report.Saved, stored.TotalQuestions)
	}

	if _, err := env.mgr.GenerateQuestions(context.Background(), env.faculty, e.ID, GenerateRequest{Topic: " ", Count: 2}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for blank topic, got %v", err)
	}
	if _, err := env.mgr.GenerateQuestions(context.Background(), env.faculty, e.ID, GenerateRequest{Topic: "Go", Count: MaxGenerateCount + 1}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for large count, got %v", err)
	}
}

func TestGenerateWithoutGenerator(t *testing.T) {
	env := newTestEnv(t)
	mgr := NewManager(env.store, nil, env.bank, 0)
	e := env.createExam(t)

	report, err := mgr.GenerateQuestions(context.Background(), env.faculty, e.ID, GenerateRequest{Topic: "css", Count: 2})
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if report.Source != SourceFallback || report.Saved != 2 || env.bank.calls != 1 {
		t.Errorf("expected fallback questions, got %+v (bank calls %d)", report, env.bank.calls)
	}
}

type slowGenerator struct{}

func (slowGenerator) GenerateQuestions(ctx context.Context, topic, difficulty string, count int) ([]model.QuestionDraft, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGenerateTimeout(t *testing.T) {
	env := newTestEnv(t)
	mgr := NewManager(env.store, slowGenerator{}, env.bank, 20*time.Millisecond)

	drafts, report, err := mgr.PreviewQuestions(context.Background(), env.faculty, "java", "easy", 2)
	if err != nil {
		t.Fatalf("PreviewQuestions: %v", err)
	}
	if report.Source != SourceFallback || len(drafts) != 2 {
		t.Errorf("expected fallback after timeout, got %+v with %d drafts", report, len(drafts))
	}
	if !strings.Contains(report.Warning, "deadline") {
		t.Errorf("expected deadline warning, got %q", report.Warning)
	}
}

func TestPreviewQuestions(t *testing.T) {
	env := newTestEnv(t)
	env.gen.drafts = []model.QuestionDraft{draft("p1", "A")}

	drafts, report, err := env.mgr.PreviewQuestions(context.Background(), env.faculty, "Go", "", 1)
	if err != nil {
		t.Fatalf("PreviewQuestions: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Explanation != model.DefaultExplanation || report.Saved != 0 {
		t.Errorf("unexpected preview: %+v %+v", drafts, report)
	}
	if _, _, err := env.mgr.PreviewQuestions(context.Background(), env.student, "Go", "", 1); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for student, got %v", err)
	}
}

func TestCleanupPlaceholders(t *testing.T) {
	env := newTestEnv(t)
	e := env.createExam(t)
	env.addQuestions(t, e.ID, "A")
	p1 := draft("Generic question about Go", "A")
	p2 := draft("Real looking", "A")
	p2.OptionC = "Incorrect option 2"
	for _, d := range []model.QuestionDraft{p1, p2} {
		if _, err := env.mgr.AddQuestion(env.faculty, e.ID, d); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}

	removed, err := env.mgr.CleanupPlaceholders(env.faculty, e.ID)
	if err != nil {
		t.Fatalf("CleanupPlaceholders: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	qs, _ := env.store.ListQuestions(e.ID)
	if len(qs) != 1 || qs[0].QuestionText != "Q1" {
		t.Errorf("expected only the real question left, got %+v", qs)
	}
}

func TestUpdateToggleDelete(t *testing.T) {
	env := newTestEnv(t)
	e := env.createExam(t)
	env.addQuestions(t, e.ID, "A")

	spec := openSpec()
	spec.Title = "Final"
	spec.TimeLimit = 45
	updated, err := env.mgr.UpdateExam(env.faculty, e.ID, spec)
	if err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if updated.Title != "Final" || updated.TimeLimit != 45 {
		t.Errorf("update not applied: %+v", updated)
	}

	toggled, err := env.mgr.ToggleActive(env.faculty, e.ID)
	if err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if toggled.IsActive {
		t.Error("expected exam inactive after toggle")
	}

	if err := env.mgr.DeleteExam(env.faculty, e.ID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, err := env.mgr.GetExam(env.faculty, e.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if n, _ := env.store.QuestionCount(e.ID); n != 0 {
		t.Errorf("expected questions removed, got %d", n)
	}
}

func TestListExamsScoping(t *testing.T) {
	env := newTestEnv(t)
	mine := env.createExam(t)
	theirs, err := env.mgr.CreateExam(env.other, openSpec())
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if _, err := env.mgr.ToggleActive(env.other, theirs.ID); err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}

	tests := []struct {
		name  string
		actor model.Actor
		want  int
	}{
		{"faculty sees own", env.faculty, 1},
		{"student sees active in department", env.student, 1},
		{"student elsewhere sees none", env.outside, 0},
		{"hod sees department", env.hod, 2},
		{"superadmin sees all", env.admin, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exams, err := env.mgr.ListExams(tt.actor)
			if err != nil {
				t.Fatalf("ListExams: %v", err)
			}
			if len(exams) != tt.want {
				t.Errorf("expected %d exams, got %d", tt.want, len(exams))
			}
		})
	}

	if _, err := env.mgr.GetExam(env.other, mine.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected other faculty to be refused, got %v", err)
	}
	if _, err := env.mgr.ListQuestions(env.student, mine.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("students must not list answer keys, got %v", err)
	}
	if _, err := env.mgr.ListQuestions(env.hod, mine.ID); err != nil {
		t.Errorf("hod should review department questions: %v", err)
	}
}

func TestReportsForFacultyAndDepartment(t *testing.T) {
	env := newTestEnv(t)
	e := env.createExam(t)
	qs := env.addQuestions(t, e.ID, "A", "B")
	now := time.Now()
	if _, err := env.eng.Submit(env.student, e.ID, Submission{Answers: map[int64]string{qs[0].ID: "A"}}, now); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	results, err := env.mgr.ExamResults(env.faculty, e.ID)
	if err != nil {
		t.Fatalf("ExamResults: %v", err)
	}
	if len(results) != 1 || results[0].Percentage != 50 {
		t.Errorf("unexpected results: %+v", results)
	}
	if _, err := env.mgr.ExamResults(env.student, e.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected students refused, got %v", err)
	}

	sums, err := env.mgr.StudentSummaries(env.faculty)
	if err != nil {
		t.Fatalf("StudentSummaries: %v", err)
	}
	if len(sums) != 1 || sums[0].Student.ID != env.student.ID || sums[0].BestScore != 50 {
		t.Errorf("unexpected summaries: %+v", sums)
	}

	sr, err := env.mgr.StudentResults(env.faculty, env.student.ID)
	if err != nil {
		t.Fatalf("StudentResults: %v", err)
	}
	if len(sr) != 1 {
		t.Errorf("expected 1 result, got %d", len(sr))
	}
	if _, err := env.mgr.StudentResults(env.faculty, env.outside.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for other department student, got %v", err)
	}

	perf, err := env.mgr.DepartmentPerformance(env.hod)
	if err != nil {
		t.Fatalf("DepartmentPerformance: %v", err)
	}
	if len(perf) != 1 || perf[0].ResultCount != 1 || perf[0].PassRate != 100 || perf[0].StudentCount != 1 {
		t.Errorf("unexpected performance: %+v", perf)
	}
	all, err := env.mgr.DepartmentPerformance(env.admin)
	if err != nil {
		t.Fatalf("DepartmentPerformance: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected both departments, got %d", len(all))
	}
	if _, err := env.mgr.DepartmentPerformance(env.faculty); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for faculty, got %v", err)
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		q    model.Question
		want bool
	}{
		{"real", model.Question{QuestionText: "What is a slice?", OptionA: "x"}, false},
		{"ai generated text", model.Question{QuestionText: "AI Generated question 1"}, true},
		{"option a template", model.Question{QuestionText: "Q", OptionA: "Correct answer for Q"}, true},
		{"incorrect option d", model.Question{QuestionText: "Q", OptionD: "Incorrect option 3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlaceholder(tt.q); got != tt.want {
				t.Errorf("IsPlaceholder = %v, want %v", got, tt.want)
			}
		})
	}
}
