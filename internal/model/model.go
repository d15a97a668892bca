package model

import (
	"context"
	"strings"
	"time"
)

// DefaultExplanation is stored when a question is saved without an explanation.
const DefaultExplanation = "No explanation provided"

// Department is an academic department. Departments are deactivated, never removed.
type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	ExternalID   string    `json:"external_id,omitempty"` // employee or student number
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns "First Last", falling back to the username.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// Actor returns the identity used when u performs an operation.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID}
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID           int64
	Role         Role
	DepartmentID *int64
}

// Can reports whether the actor's role grants c.
func (a Actor) Can(c Capability) bool {
	return a.Role.Can(c)
}

// InDepartment reports whether the actor belongs to department id.
func (a Actor) InDepartment(id int64) bool {
	return a.DepartmentID != nil && *a.DepartmentID == id
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// ExamType records how an exam's questions were produced.
type ExamType string

const (
	ExamTypeManual      ExamType = "MANUAL"
	ExamTypeCSVUpload   ExamType = "CSV_UPLOAD"
	ExamTypeAIGenerated ExamType = "AI_GENERATED"
)

// Exam is a timed multiple-choice exam owned by a faculty member.
type Exam struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	FacultyID      int64     `json:"faculty_id"`
	DepartmentID   int64     `json:"department_id"`
	TotalQuestions int       `json:"total_questions"` // declared; not reconciled with the question table
	TimeLimit      int       `json:"time_limit"`      // minutes
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	IsActive       bool      `json:"is_active"`
	ExamType       ExamType  `json:"exam_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// OwnedBy reports whether a is the exam's owning faculty member.
func (e Exam) OwnedBy(a Actor) bool {
	return e.FacultyID == a.ID
}

// Question is a four-option multiple-choice question.
type Question struct {
	ID             int64  `json:"id"`
	ExamID         int64  `json:"exam_id"`
	QuestionText   string `json:"question_text"`
	OptionA        string `json:"option_a"`
	OptionB        string `json:"option_b"`
	OptionC        string `json:"option_c"`
	OptionD        string `json:"option_d"`
	CorrectAnswer  string `json:"correct_answer,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
	QuestionNumber int    `json:"question_number"`
}

// QuestionDraft is an unvalidated, unpersisted candidate question.
type QuestionDraft struct {
	QuestionText  string `json:"questionText" yaml:"question"`
	OptionA       string `json:"optionA" yaml:"a"`
	OptionB       string `json:"optionB" yaml:"b"`
	OptionC       string `json:"optionC" yaml:"c"`
	OptionD       string `json:"optionD" yaml:"d"`
	CorrectAnswer string `json:"correctAnswer" yaml:"answer"`
	Explanation   string `json:"explanation" yaml:"explanation"`
}

// Complete reports whether the text, all four options and the answer are non-blank.
func (d QuestionDraft) Complete() bool {
	for _, s := range []string{d.QuestionText, d.OptionA, d.OptionB, d.OptionC, d.OptionD, d.CorrectAnswer} {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// ExamResult is a student's single graded submission for an exam.
type ExamResult struct {
	ID             int64     `json:"id"`
	ExamID         int64     `json:"exam_id"`
	StudentID      int64     `json:"student_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     float64   `json:"percentage"`
	SubmittedAt    time.Time `json:"submitted_at"`
	TimeTaken      int       `json:"time_taken"` // minutes
	Answers        string    `json:"-"`          // JSON object questionID -> letter
}

// Grade returns the letter grade for the result's percentage.
func (r ExamResult) Grade() string {
	return GradeLetter(r.Percentage)
}

// StudentSummary aggregates one student's results across a set of exams.
type StudentSummary struct {
	Student      User    `json:"student"`
	ExamsTaken   int     `json:"exams_taken"`
	AverageScore float64 `json:"average_score"`
	BestScore    float64 `json:"best_score"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	BasePath      string        // URL prefix for sub-path deployments
	SecureCookies bool          // Set Secure flag on cookies (disable for local dev)
	AITimeout     time.Duration // upper bound for one generation call
	Lang          string
}

// PassMark is the lowest percentage counted as a pass in performance reports.
const PassMark = 50.0

// DepartmentPerformance summarizes the results of all exams in one department.
type DepartmentPerformance struct {
	Department   Department `json:"department"`
	StudentCount int        `json:"student_count"`
	ResultCount  int        `json:"result_count"`
	AverageScore float64    `json:"average_score"`
	PassRate     float64    `json:"pass_rate"`
}
