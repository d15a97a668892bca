package exam

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/exammgr/internal/metrics"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

// Reason explains why a student may not attempt an exam.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonWrongDepartment Reason = "wrong_department"
	ReasonInactive        Reason = "inactive"
	ReasonAlreadyTaken    Reason = "already_taken"
	ReasonNotStarted      Reason = "not_started"
	ReasonEnded           Reason = "ended"
	ReasonNoQuestions     Reason = "no_questions"
)

// Eligibility is the outcome of CanAttempt.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason,omitempty"`
}

// Err returns the error matching the ineligibility reason, or nil.
func (e Eligibility) Err() error {
	switch e.Reason {
	case ReasonNone:
		return nil
	case ReasonWrongDepartment:
		return fmt.Errorf("exam belongs to another department: %w", model.ErrUnauthorized)
	case ReasonInactive:
		return fmt.Errorf("exam is inactive: %w", model.ErrInvalidState)
	case ReasonAlreadyTaken:
		return model.ErrDuplicateAttempt
	case ReasonNotStarted:
		return fmt.Errorf("exam has not started: %w", model.ErrInvalidState)
	case ReasonEnded:
		return fmt.Errorf("exam has ended: %w", model.ErrInvalidState)
	case ReasonNoQuestions:
		return fmt.Errorf("exam has no questions: %w", model.ErrInvalidState)
	}
	return fmt.Errorf("%s: %w", e.Reason, model.ErrInvalidState)
}

func ineligible(r Reason) Eligibility {
	return Eligibility{Reason: r}
}

// AttemptView is the question sheet handed to a student. Correct answers and
// explanations are removed.
type AttemptView struct {
	Exam          model.Exam       `json:"exam"`
	Questions     []model.Question `json:"questions"`
	TimeRemaining int              `json:"time_remaining"` // seconds
	StartedAt     int64            `json:"started_at"`     // epoch milliseconds
}

// Submission is a student's answers plus the client-reported start time.
type Submission struct {
	Answers         map[int64]string
	StartTimeMillis int64
}

// ResultDetail is a graded result with the exam's questions and the student's answers.
type ResultDetail struct {
	Result    model.ExamResult `json:"result"`
	Grade     string           `json:"grade"`
	Exam      model.Exam       `json:"exam"`
	Questions []model.Question `json:"questions"`
	Answers   map[int64]string `json:"answers"`
}

// Engine runs attempts and scores submissions.
type Engine struct {
	store Store
}

// NewEngine creates an Engine.
func NewEngine(st Store) *Engine {
	return &Engine{store: st}
}

// CanAttempt checks, in order, department, the active flag, a prior result, the start time, the end
// time and the question count; the first failing check is reported. The window
// [StartTime, EndTime] is inclusive. The returned error is only for storage failures.
func (g *Engine) CanAttempt(e *model.Exam, student model.Actor, now time.Time) (Eligibility, error) {
	if !student.InDepartment(e.DepartmentID) {
		return ineligible(ReasonWrongDepartment), nil
	}
	if !e.IsActive {
		return ineligible(ReasonInactive), nil
	}
	taken, err := g.store.HasResult(e.ID, student.ID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("check prior result: %w", err)
	}
	if taken {
		return ineligible(ReasonAlreadyTaken), nil
	}
	if now.Before(e.StartTime) {
		return ineligible(ReasonNotStarted), nil
	}
	if now.After(e.EndTime) {
		return ineligible(ReasonEnded), nil
	}
	n, err := g.store.QuestionCount(e.ID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("count questions: %w", err)
	}
	if n == 0 {
		return ineligible(ReasonNoQuestions), nil
	}
	return Eligibility{Eligible: true}, nil
}

func (g *Engine) studentExam(actor model.Actor, examID int64) (*model.Exam, error) {
	if !actor.Can(model.CapTakeExams) {
		return nil, fmt.Errorf("role %s cannot take exams: %w", actor.Role, model.ErrUnauthorized)
	}
	e, err := g.store.GetExam(examID)
	if err != nil {
		return nil, fmt.Errorf("get exam %d: %w", examID, err)
	}
	if e == nil {
		return nil, fmt.Errorf("exam %d: %w", examID, model.ErrNotFound)
	}
	return e, nil
}

// Check reports whether actor may attempt exam examID at now.
func (g *Engine) Check(actor model.Actor, examID int64, now time.Time) (Eligibility, error) {
	e, err := g.studentExam(actor, examID)
	if err != nil {
		return Eligibility{}, err
	}
	return g.CanAttempt(e, actor, now)
}

// StartAttempt checks eligibility and returns the question sheet.
func (g *Engine) StartAttempt(actor model.Actor, examID int64, now time.Time) (*AttemptView, error) {
	e, err := g.studentExam(actor, examID)
	if err != nil {
		return nil, err
	}
	el, err := g.CanAttempt(e, actor, now)
	if err != nil {
		return nil, err
	}
	if err := el.Err(); err != nil {
		return nil, err
	}
	qs, err := g.store.ListQuestions(examID)
	if err != nil {
		return nil, fmt.Errorf("list questions for exam %d: %w", examID, err)
	}
	for i := range qs {
		qs[i].CorrectAnswer = ""
		qs[i].Explanation = ""
	}
	return &AttemptView{
		Exam:          *e,
		Questions:     qs,
		TimeRemaining: e.TimeLimit * 60,
		StartedAt:     now.UnixMilli(),
	}, nil
}

// Submit re-checks eligibility and grades the submission. A submission is accepted
// until TimeLimit minutes after the exam's end time so that attempts started just
// before the end can finish.
func (g *Engine) Submit(actor model.Actor, examID int64, sub Submission, now time.Time) (*model.ExamResult, error) {
	e, err := g.studentExam(actor, examID)
	if err != nil {
		return nil, err
	}
	el, err := g.CanAttempt(e, actor, now)
	if err != nil {
		return nil, err
	}
	deadline := e.EndTime.Add(time.Duration(e.TimeLimit) * time.Minute)
	if el.Reason == ReasonEnded && !now.After(deadline) {
		// Grade checks the question count.
		el = Eligibility{Eligible: true}
	}
	if err := el.Err(); err != nil {
		outcome := "rejected"
		if el.Reason == ReasonAlreadyTaken {
			outcome = "duplicate"
		}
		metrics.Submissions.WithLabelValues(outcome).Inc()
		return nil, err
	}
	return g.Grade(e, actor, sub.Answers, sub.StartTimeMillis, now)
}

// Grade scores answers against the exam's current questions and stores the result.
// Only answers to existing questions are kept; a match is exact string equality.
// Time taken is whole minutes since the client-reported start. A second result for
// the same student and exam fails with model.ErrDuplicateAttempt.
func (g *Engine) Grade(e *model.Exam, student model.Actor, answers map[int64]string, startMillis int64, now time.Time) (*model.ExamResult, error) {
	qs, err := g.store.ListQuestions(e.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions for exam %d: %w", e.ID, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("exam %d has no questions: %w", e.ID, model.ErrInvalidState)
	}

	score := 0
	kept := make(map[int64]string, len(qs))
	for _, q := range qs {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		kept[q.ID] = a
		if a == q.CorrectAnswer {
			score++
		}
	}
	encoded, err := EncodeAnswers(kept)
	if err != nil {
		return nil, err
	}

	r := model.ExamResult{
		ExamID:         e.ID,
		StudentID:      student.ID,
		Score:          score,
		TotalQuestions: len(qs),
		Percentage:     float64(score) / float64(len(qs)) * 100,
		SubmittedAt:    now,
		TimeTaken:      minutesSince(startMillis, now),
		Answers:        encoded,
	}
	id, err := g.store.InsertResult(r)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateAttempt) {
			metrics.Submissions.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}
	r.ID = id
	metrics.Submissions.WithLabelValues("graded").Inc()
	slog.Info("exam graded", "exam_id", e.ID, "student_id", student.ID,
		"score", score, "total", len(qs), "percentage", r.Percentage)
	return &r, nil
}

// minutesSince returns whole minutes between startMillis and now. A missing or
// future start counts as zero.
func minutesSince(startMillis int64, now time.Time) int {
	if startMillis <= 0 {
		return 0
	}
	d := now.UnixMilli() - startMillis
	if d < 0 {
		return 0
	}
	return int(d / 60000)
}

// ResultDetail returns a result with its questions and the decoded answers. Students
// see their own results; faculty the results of their exams; HOD and assistants their
// department's; principal and superadmin everything.
func (g *Engine) ResultDetail(actor model.Actor, resultID int64) (*ResultDetail, error) {
	r, err := g.store.GetResult(resultID)
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", resultID, err)
	}
	if r == nil {
		return nil, fmt.Errorf("result %d: %w", resultID, model.ErrNotFound)
	}
	e, err := g.store.GetExam(r.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam %d: %w", r.ExamID, err)
	}
	if e == nil {
		return nil, fmt.Errorf("exam %d: %w", r.ExamID, model.ErrNotFound)
	}
	allowed := r.StudentID == actor.ID
	if !actor.Can(model.CapTakeExams) {
		allowed = canView(actor, e)
	}
	if !allowed {
		return nil, fmt.Errorf("result %d: %w", resultID, model.ErrUnauthorized)
	}

	qs, err := g.store.ListQuestions(e.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions for exam %d: %w", e.ID, err)
	}
	answers, err := DecodeAnswers(r.Answers)
	if err != nil {
		slog.Warn("stored answers unreadable", "result_id", r.ID, "error", err)
	}
	return &ResultDetail{
		Result:    *r,
		Grade:     r.Grade(),
		Exam:      *e,
		Questions: qs,
		Answers:   answers,
	}, nil
}

// MyResults returns a student's own results, newest first.
func (g *Engine) MyResults(actor model.Actor) ([]model.ExamResult, error) {
	if !actor.Can(model.CapTakeExams) {
		return nil, fmt.Errorf("role %s has no results: %w", actor.Role, model.ErrUnauthorized)
	}
	results, err := g.store.ListResultsByStudent(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list results for student %d: %w", actor.ID, err)
	}
	return results, nil
}

// AvailableExams returns the active exams of a student's department not yet taken.
func (g *Engine) AvailableExams(actor model.Actor) ([]model.Exam, error) {
	if !actor.Can(model.CapTakeExams) {
		return nil, fmt.Errorf("role %s cannot take exams: %w", actor.Role, model.ErrUnauthorized)
	}
	if actor.DepartmentID == nil {
		return nil, nil
	}
	exams, err := g.store.ListExams(store.ExamFilter{DepartmentID: *actor.DepartmentID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	var out []model.Exam
	for _, e := range exams {
		taken, err := g.store.HasResult(e.ID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("check prior result: %w", err)
		}
		if !taken {
			out = append(out, e)
		}
	}
	return out, nil
}
