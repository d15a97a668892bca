package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/exammgr/internal/metrics"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

// DefaultDifficulty is used when a generation request names none.
const DefaultDifficulty = "MEDIUM"

// DefaultAITimeout bounds one generator call when the Manager is built with a zero timeout.
const DefaultAITimeout = 20 * time.Second

// MaxGenerateCount caps how many questions one generation request may ask for.
const MaxGenerateCount = 50

// Generation sources reported in GenerationReport.Source.
const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// GenerateRequest describes one question generation run for an existing exam.
type GenerateRequest struct {
	Topic      string
	Difficulty string
	Count      int
	Replace    bool // remove existing questions first
}

// GenerationReport tells the caller what a generation run produced.
type GenerationReport struct {
	Requested int    `json:"requested"`
	Saved     int    `json:"saved"`
	Source    string `json:"source"`
	Warning   string `json:"warning,omitempty"`
}

// Manager owns exam creation, editing and question population.
type Manager struct {
	store     Store
	generator QuestionGenerator
	fallback  FallbackSource
	timeout   time.Duration
}

// NewManager creates a Manager. generator may be nil, in which case generation always
// uses the fallback source.
func NewManager(st Store, generator QuestionGenerator, fallback FallbackSource, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	return &Manager{store: st, generator: generator, fallback: fallback, timeout: timeout}
}

func validateSpec(spec ExamSpec) error {
	switch {
	case strings.TrimSpace(spec.Title) == "":
		return fmt.Errorf("title is required: %w", model.ErrValidation)
	case spec.TimeLimit <= 0:
		return fmt.Errorf("time limit must be positive: %w", model.ErrValidation)
	case spec.StartTime.IsZero() || spec.EndTime.IsZero():
		return fmt.Errorf("start and end time are required: %w", model.ErrValidation)
	case !spec.EndTime.After(spec.StartTime):
		return fmt.Errorf("end time must be after start time: %w", model.ErrValidation)
	case spec.TotalQuestions < 0:
		return fmt.Errorf("total questions cannot be negative: %w", model.ErrValidation)
	}
	return nil
}

// CreateExam stores a new active exam owned by actor in actor's department.
func (m *Manager) CreateExam(actor model.Actor, spec ExamSpec) (*model.Exam, error) {
	return m.createExam(actor, spec, model.ExamTypeManual)
}

func (m *Manager) createExam(actor model.Actor, spec ExamSpec, typ model.ExamType) (*model.Exam, error) {
	if !actor.Can(model.CapAuthorExams) {
		return nil, fmt.Errorf("role %s cannot create exams: %w", actor.Role, model.ErrUnauthorized)
	}
	if actor.DepartmentID == nil {
		return nil, fmt.Errorf("faculty %d has no department: %w", actor.ID, model.ErrValidation)
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	e := model.Exam{
		Title:          strings.TrimSpace(spec.Title),
		Description:    strings.TrimSpace(spec.Description),
		FacultyID:      actor.ID,
		DepartmentID:   *actor.DepartmentID,
		TotalQuestions: spec.TotalQuestions,
		TimeLimit:      spec.TimeLimit,
		StartTime:      spec.StartTime,
		EndTime:        spec.EndTime,
		IsActive:       true,
		ExamType:       typ,
	}
	id, err := m.store.CreateExam(e)
	if err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	slog.Info("exam created", "exam_id", id, "faculty_id", actor.ID, "type", typ)
	return m.mustGetExam(id)
}

func (m *Manager) mustGetExam(id int64) (*model.Exam, error) {
	e, err := m.store.GetExam(id)
	if err != nil {
		return nil, fmt.Errorf("get exam %d: %w", id, err)
	}
	if e == nil {
		return nil, fmt.Errorf("exam %d: %w", id, model.ErrNotFound)
	}
	return e, nil
}

// ownedExam loads an exam and checks that actor owns it.
func (m *Manager) ownedExam(actor model.Actor, examID int64) (*model.Exam, error) {
	e, err := m.mustGetExam(examID)
	if err != nil {
		return nil, err
	}
	if !e.OwnedBy(actor) {
		return nil, fmt.Errorf("exam %d is not owned by user %d: %w", examID, actor.ID, model.ErrUnauthorized)
	}
	return e, nil
}

// UpdateExam replaces the editable fields of an exam owned by actor.
func (m *Manager) UpdateExam(actor model.Actor, examID int64, spec ExamSpec) (*model.Exam, error) {
	e, err := m.ownedExam(actor, examID)
	if err != nil {
		return nil, err
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	e.Title = strings.TrimSpace(spec.Title)
	e.Description = strings.TrimSpace(spec.Description)
	e.TimeLimit = spec.TimeLimit
	e.StartTime = spec.StartTime
	e.EndTime = spec.EndTime
	if spec.TotalQuestions > 0 {
		e.TotalQuestions = spec.TotalQuestions
	}
	if err := m.store.UpdateExam(*e); err != nil {
		return nil, fmt.Errorf("update exam %d: %w", examID, err)
	}
	return e, nil
}

// ToggleActive flips whether students can see the exam.
func (m *Manager) ToggleActive(actor model.Actor, examID int64) (*model.Exam, error) {
	if _, err := m.ownedExam(actor, examID); err != nil {
		return nil, err
	}
	if err := m.store.ToggleExamActive(examID); err != nil {
		return nil, fmt.Errorf("toggle exam %d: %w", examID, err)
	}
	return m.mustGetExam(examID)
}

// DeleteExam removes an exam with all its questions and results.
func (m *Manager) DeleteExam(actor model.Actor, examID int64) error {
	if _, err := m.ownedExam(actor, examID); err != nil {
		return err
	}
	if err := m.store.DeleteExam(examID); err != nil {
		return fmt.Errorf("delete exam %d: %w", examID, err)
	}
	slog.Info("exam deleted", "exam_id", examID, "faculty_id", actor.ID)
	return nil
}

// toQuestion trims a draft and applies the default explanation.
func toQuestion(d model.QuestionDraft) model.Question {
	q := model.Question{
		QuestionText:  strings.TrimSpace(d.QuestionText),
		OptionA:       strings.TrimSpace(d.OptionA),
		OptionB:       strings.TrimSpace(d.OptionB),
		OptionC:       strings.TrimSpace(d.OptionC),
		OptionD:       strings.TrimSpace(d.OptionD),
		CorrectAnswer: strings.TrimSpace(d.CorrectAnswer),
		Explanation:   strings.TrimSpace(d.Explanation),
	}
	if q.Explanation == "" {
		q.Explanation = model.DefaultExplanation
	}
	return q
}

// AddQuestion appends one question to an exam owned by actor. The correct answer
// must be one of A, B, C or D.
func (m *Manager) AddQuestion(actor model.Actor, examID int64, d model.QuestionDraft) (*model.Question, error) {
	if _, err := m.ownedExam(actor, examID); err != nil {
		return nil, err
	}
	if !d.Complete() {
		return nil, fmt.Errorf("question text, four options and the correct answer are required: %w", model.ErrValidation)
	}
	q := toQuestion(d)
	q.CorrectAnswer = strings.ToUpper(q.CorrectAnswer)
	if !validLetter(q.CorrectAnswer) {
		return nil, fmt.Errorf("correct answer %q is not A-D: %w", q.CorrectAnswer, model.ErrValidation)
	}
	saved, err := m.store.InsertQuestions(examID, []model.Question{q})
	if err != nil {
		return nil, fmt.Errorf("add question to exam %d: %w", examID, err)
	}
	metrics.QuestionsSaved.WithLabelValues("manual").Inc()
	return &saved[0], nil
}

func validLetter(s string) bool {
	switch s {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

// DeleteQuestion removes a question from an exam owned by actor. Other questions keep
// their numbers.
func (m *Manager) DeleteQuestion(actor model.Actor, questionID int64) error {
	q, err := m.store.GetQuestion(questionID)
	if err != nil {
		return fmt.Errorf("get question %d: %w", questionID, err)
	}
	if q == nil {
		return fmt.Errorf("question %d: %w", questionID, model.ErrNotFound)
	}
	if _, err := m.ownedExam(actor, q.ExamID); err != nil {
		return err
	}
	if err := m.store.DeleteQuestion(questionID); err != nil {
		return fmt.Errorf("delete question %d: %w", questionID, err)
	}
	return nil
}

// ImportDelimited appends the questions in raw (see ParseDelimited) to an exam owned
// by actor and returns how many were added. Malformed rows are logged and skipped.
func (m *Manager) ImportDelimited(actor model.Actor, examID int64, raw string) (int, error) {
	if _, err := m.ownedExam(actor, examID); err != nil {
		return 0, err
	}
	return m.importDelimited(examID, raw)
}

func (m *Manager) importDelimited(examID int64, raw string) (int, error) {
	drafts, skipped := ParseDelimited(raw)
	for _, rowErr := range skipped {
		slog.Warn("skipping delimited row", "exam_id", examID, "line", rowErr.Line, "error", rowErr.Err)
	}
	if len(drafts) == 0 {
		return 0, nil
	}
	qs := make([]model.Question, 0, len(drafts))
	for _, d := range drafts {
		qs = append(qs, toQuestion(d))
	}
	saved, err := m.store.InsertQuestions(examID, qs)
	if err != nil {
		return 0, fmt.Errorf("import questions into exam %d: %w", examID, err)
	}
	metrics.QuestionsSaved.WithLabelValues("delimited").Add(float64(len(saved)))
	slog.Info("imported delimited questions", "exam_id", examID, "added", len(saved), "skipped", len(skipped))
	return len(saved), nil
}

// CreateExamFromDelimited creates a CSV_UPLOAD exam and imports raw into it. The
// declared question count is set to the number of questions actually imported.
func (m *Manager) CreateExamFromDelimited(actor model.Actor, spec ExamSpec, raw string) (*model.Exam, int, error) {
	e, err := m.createExam(actor, spec, model.ExamTypeCSVUpload)
	if err != nil {
		return nil, 0, err
	}
	n, err := m.importDelimited(e.ID, raw)
	if err != nil {
		return e, 0, err
	}
	if err := m.store.SetExamTotalQuestions(e.ID, n); err != nil {
		return e, n, fmt.Errorf("set question count for exam %d: %w", e.ID, err)
	}
	e.TotalQuestions = n
	return e, n, nil
}

// usableDrafts drops drafts missing text, an option or the answer, and caps the result at limit.
func usableDrafts(drafts []model.QuestionDraft, limit int) []model.QuestionDraft {
	out := make([]model.QuestionDraft, 0, len(drafts))
	for _, d := range drafts {
		if !d.Complete() {
			continue
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out
}

// generate asks the generator for count questions under the configured timeout and
// falls back to the local bank on any failure. It never returns an error.
func (m *Manager) generate(ctx context.Context, topic, difficulty string, count int) ([]model.QuestionDraft, GenerationReport) {
	report := GenerationReport{Requested: count, Source: SourceAI}
	if m.generator != nil {
		gctx, cancel := context.WithTimeout(ctx, m.timeout)
		drafts, err := m.generator.GenerateQuestions(gctx, topic, difficulty, count)
		cancel()
		if err == nil {
			drafts = usableDrafts(drafts, count)
			if len(drafts) > 0 {
				metrics.QuestionGenerations.WithLabelValues(SourceAI).Inc()
				return drafts, report
			}
			err = errors.New("no usable questions in response")
		}
		err = fmt.Errorf("%w: %v", model.ErrAdapterFailure, err)
		slog.Warn("question generation failed, using fallback bank", "topic", topic, "error", err)
		report.Warning = err.Error()
	} else {
		report.Warning = "question generator not configured"
	}
	report.Source = SourceFallback
	metrics.QuestionGenerations.WithLabelValues(SourceFallback).Inc()
	var drafts []model.QuestionDraft
	if m.fallback != nil {
		drafts = usableDrafts(m.fallback.Questions(topic, count), count)
	}
	return drafts, report
}

func normalizeGenerate(topic, difficulty string, count int) (string, string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", "", fmt.Errorf("topic is required: %w", model.ErrValidation)
	}
	if count <= 0 || count > MaxGenerateCount {
		return "", "", fmt.Errorf("question count must be between 1 and %d: %w", MaxGenerateCount, model.ErrValidation)
	}
	difficulty = strings.ToUpper(strings.TrimSpace(difficulty))
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	return topic, difficulty, nil
}

// GenerateQuestions fills an exam owned by actor with generated questions. Generator
// failures are not errors: the fallback bank is used and the report carries a warning.
// With Replace set, existing questions are removed and the declared count is updated.
func (m *Manager) GenerateQuestions(ctx context.Context, actor model.Actor, examID int64, req GenerateRequest) (*GenerationReport, error) {
	if _, err := m.ownedExam(actor, examID); err != nil {
		return nil, err
	}
	topic, difficulty, err := normalizeGenerate(req.Topic, req.Difficulty, req.Count)
	if err != nil {
		return nil, err
	}
	drafts, report := m.generate(ctx, topic, difficulty, req.Count)
	qs := make([]model.Question, 0, len(drafts))
	for _, d := range drafts {
		qs = append(qs, toQuestion(d))
	}

	var saved []model.Question
	if req.Replace {
		saved, err = m.store.ReplaceQuestions(examID, qs)
	} else if len(qs) > 0 {
		saved, err = m.store.InsertQuestions(examID, qs)
	}
	if err != nil {
		return nil, fmt.Errorf("save generated questions for exam %d: %w", examID, err)
	}
	report.Saved = len(saved)
	metrics.QuestionsSaved.WithLabelValues("generated").Add(float64(report.Saved))
	if req.Replace {
		if err := m.store.SetExamTotalQuestions(examID, report.Saved); err != nil {
			return nil, fmt.Errorf("set question count for exam %d: %w", examID, err)
		}
	}
	slog.Info("generated questions saved", "exam_id", examID, "saved", report.Saved, "source", report.Source)
	return &report, nil
}

// CreateExamWithGeneratedQuestions creates an AI_GENERATED exam and fills it with
// spec.TotalQuestions generated questions. The exam is stored before generation
// starts; if saving the questions fails, the exam is still returned and the report
// carries the warning.
func (m *Manager) CreateExamWithGeneratedQuestions(ctx context.Context, actor model.Actor, spec ExamSpec, topic, difficulty string) (*model.Exam, *GenerationReport, error) {
	topic, difficulty, err := normalizeGenerate(topic, difficulty, spec.TotalQuestions)
	if err != nil {
		return nil, nil, err
	}
	e, err := m.createExam(actor, spec, model.ExamTypeAIGenerated)
	if err != nil {
		return nil, nil, err
	}

	drafts, report := m.generate(ctx, topic, difficulty, spec.TotalQuestions)
	qs := make([]model.Question, 0, len(drafts))
	for _, d := range drafts {
		qs = append(qs, toQuestion(d))
	}
	if len(qs) > 0 {
		saved, err := m.store.InsertQuestions(e.ID, qs)
		if err != nil {
			slog.Error("saving generated questions failed", "exam_id", e.ID, "error", err)
			report.Warning = joinWarning(report.Warning, "questions could not be saved: "+err.Error())
		} else {
			report.Saved = len(saved)
			metrics.QuestionsSaved.WithLabelValues("generated").Add(float64(report.Saved))
		}
	}
	if err := m.store.SetExamTotalQuestions(e.ID, report.Saved); err != nil {
		slog.Error("updating question count failed", "exam_id", e.ID, "error", err)
	} else {
		e.TotalQuestions = report.Saved
	}
	return e, &report, nil
}

func joinWarning(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// PreviewQuestions generates questions without storing them.
func (m *Manager) PreviewQuestions(ctx context.Context, actor model.Actor, topic, difficulty string, count int) ([]model.QuestionDraft, *GenerationReport, error) {
	if !actor.Can(model.CapAuthorExams) {
		return nil, nil, fmt.Errorf("role %s cannot generate questions: %w", actor.Role, model.ErrUnauthorized)
	}
	topic, difficulty, err := normalizeGenerate(topic, difficulty, count)
	if err != nil {
		return nil, nil, err
	}
	drafts, report := m.generate(ctx, topic, difficulty, count)
	for i := range drafts {
		if strings.TrimSpace(drafts[i].Explanation) == "" {
			drafts[i].Explanation = model.DefaultExplanation
		}
	}
	report.Saved = 0
	return drafts, &report, nil
}

// Markers of template questions left by older generators.
var (
	placeholderTextMarkers = []string{
		"AI Generated", "Basic Programming question", "most important aspect", "Generic question",
	}
	placeholderOptionAMarkers = []string{"Correct answer for", "Simple concept"}
	placeholderOptionMarker   = "Incorrect option"
)

// IsPlaceholder reports whether q looks like template filler rather than a real question.
func IsPlaceholder(q model.Question) bool {
	for _, s := range placeholderTextMarkers {
		if strings.Contains(q.QuestionText, s) {
			return true
		}
	}
	for _, s := range placeholderOptionAMarkers {
		if strings.Contains(q.OptionA, s) {
			return true
		}
	}
	for _, opt := range []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD} {
		if strings.Contains(opt, placeholderOptionMarker) {
			return true
		}
	}
	return false
}

// CleanupPlaceholders deletes placeholder questions from an exam owned by actor and
// returns how many were removed.
func (m *Manager) CleanupPlaceholders(actor model.Actor, examID int64) (int, error) {
	if _, err := m.ownedExam(actor, examID); err != nil {
		return 0, err
	}
	qs, err := m.store.ListQuestions(examID)
	if err != nil {
		return 0, fmt.Errorf("list questions for exam %d: %w", examID, err)
	}
	removed := 0
	for _, q := range qs {
		if !IsPlaceholder(q) {
			continue
		}
		if err := m.store.DeleteQuestion(q.ID); err != nil {
			return removed, fmt.Errorf("delete question %d: %w", q.ID, err)
		}
		removed++
	}
	slog.Info("placeholder questions removed", "exam_id", examID, "removed", removed)
	return removed, nil
}

// canView reports whether actor may see exam e and its results.
func canView(actor model.Actor, e *model.Exam) bool {
	switch {
	case actor.Can(model.CapViewAllResults):
		return true
	case actor.Can(model.CapViewDepartmentResults):
		return actor.InDepartment(e.DepartmentID)
	case actor.Can(model.CapAuthorExams):
		return e.OwnedBy(actor)
	case actor.Can(model.CapTakeExams):
		return e.IsActive && actor.InDepartment(e.DepartmentID)
	}
	return false
}

// GetExam returns an exam visible to actor.
func (m *Manager) GetExam(actor model.Actor, examID int64) (*model.Exam, error) {
	e, err := m.mustGetExam(examID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, e) {
		return nil, fmt.Errorf("exam %d: %w", examID, model.ErrUnauthorized)
	}
	return e, nil
}

// ListExams returns the exams actor may see: a faculty member's own exams, the active
// exams of a student's department, a HOD's or assistant's department, or everything.
func (m *Manager) ListExams(actor model.Actor) ([]model.Exam, error) {
	var f store.ExamFilter
	switch {
	case actor.Can(model.CapViewAllResults):
	case actor.Can(model.CapViewDepartmentResults):
		if actor.DepartmentID == nil {
			return nil, nil
		}
		f.DepartmentID = *actor.DepartmentID
	case actor.Can(model.CapAuthorExams):
		f.FacultyID = actor.ID
	case actor.Can(model.CapTakeExams):
		if actor.DepartmentID == nil {
			return nil, nil
		}
		f.DepartmentID = *actor.DepartmentID
		f.ActiveOnly = true
	default:
		return nil, fmt.Errorf("role %s cannot list exams: %w", actor.Role, model.ErrUnauthorized)
	}
	exams, err := m.store.ListExams(f)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// ListQuestions returns the full questions, answers included, of an exam actor may
// manage or review. Students receive question sheets through Engine.StartAttempt.
func (m *Manager) ListQuestions(actor model.Actor, examID int64) ([]model.Question, error) {
	e, err := m.mustGetExam(examID)
	if err != nil {
		return nil, err
	}
	if actor.Can(model.CapTakeExams) || !canView(actor, e) {
		return nil, fmt.Errorf("questions of exam %d: %w", examID, model.ErrUnauthorized)
	}
	qs, err := m.store.ListQuestions(examID)
	if err != nil {
		return nil, fmt.Errorf("list questions for exam %d: %w", examID, err)
	}
	return qs, nil
}

// ExamResults returns the results of an exam, highest score first.
func (m *Manager) ExamResults(actor model.Actor, examID int64) ([]model.ExamResult, error) {
	e, err := m.mustGetExam(examID)
	if err != nil {
		return nil, err
	}
	if actor.Can(model.CapTakeExams) || !canView(actor, e) {
		return nil, fmt.Errorf("results of exam %d: %w", examID, model.ErrUnauthorized)
	}
	results, err := m.store.ListResultsByExam(examID)
	if err != nil {
		return nil, fmt.Errorf("list results for exam %d: %w", examID, err)
	}
	return results, nil
}

// StudentSummaries aggregates each student's results over actor's own exams.
func (m *Manager) StudentSummaries(actor model.Actor) ([]model.StudentSummary, error) {
	if !actor.Can(model.CapAuthorExams) {
		return nil, fmt.Errorf("role %s has no exams: %w", actor.Role, model.ErrUnauthorized)
	}
	sums, err := m.store.StudentSummaries(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("student summaries: %w", err)
	}
	return sums, nil
}

// StudentResults returns one student's results restricted to actor's own exams. The
// student must belong to actor's department.
func (m *Manager) StudentResults(actor model.Actor, studentID int64) ([]model.ExamResult, error) {
	if !actor.Can(model.CapAuthorExams) {
		return nil, fmt.Errorf("role %s has no exams: %w", actor.Role, model.ErrUnauthorized)
	}
	student, err := m.store.GetUserByID(studentID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", studentID, err)
	}
	if student == nil || student.Role != model.RoleStudent {
		return nil, fmt.Errorf("student %d: %w", studentID, model.ErrNotFound)
	}
	if student.DepartmentID == nil || !actor.InDepartment(*student.DepartmentID) {
		return nil, fmt.Errorf("student %d is outside your department: %w", studentID, model.ErrUnauthorized)
	}
	all, err := m.store.ListResultsByStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("list results for student %d: %w", studentID, err)
	}
	var out []model.ExamResult
	owned := make(map[int64]bool)
	for _, r := range all {
		ok, seen := owned[r.ExamID]
		if !seen {
			e, err := m.store.GetExam(r.ExamID)
			if err != nil {
				return nil, fmt.Errorf("get exam %d: %w", r.ExamID, err)
			}
			ok = e != nil && e.OwnedBy(actor)
			owned[r.ExamID] = ok
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// DepartmentPerformance reports result statistics for actor's department, or for every
// active department when actor may view all results.
func (m *Manager) DepartmentPerformance(actor model.Actor) ([]model.DepartmentPerformance, error) {
	var depts []model.Department
	switch {
	case actor.Can(model.CapViewAllResults):
		var err error
		depts, err = m.store.ListDepartments(true)
		if err != nil {
			return nil, fmt.Errorf("list departments: %w", err)
		}
	case actor.Can(model.CapViewDepartmentResults) && actor.DepartmentID != nil:
		d, err := m.store.GetDepartment(*actor.DepartmentID)
		if err != nil {
			return nil, fmt.Errorf("get department %d: %w", *actor.DepartmentID, err)
		}
		if d == nil {
			return nil, fmt.Errorf("department %d: %w", *actor.DepartmentID, model.ErrNotFound)
		}
		depts = append(depts, *d)
	default:
		return nil, fmt.Errorf("role %s cannot view performance: %w", actor.Role, model.ErrUnauthorized)
	}
	out := make([]model.DepartmentPerformance, 0, len(depts))
	for _, d := range depts {
		p, err := m.store.DepartmentPerformance(d)
		if err != nil {
			return nil, fmt.Errorf("performance of department %d: %w", d.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}
