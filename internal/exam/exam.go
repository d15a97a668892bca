// Package exam implements the exam lifecycle and the attempt and scoring rules.
// Every operation takes the acting user explicitly as a model.Actor.
package exam

import (
	"context"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

// Store is the persistence used by Manager and Engine. *store.Store implements it.
type Store interface {
	CreateExam(e model.Exam) (int64, error)
	UpdateExam(e model.Exam) error
	SetExamTotalQuestions(id int64, n int) error
	ToggleExamActive(id int64) error
	DeleteExam(id int64) error
	GetExam(id int64) (*model.Exam, error)
	ListExams(f store.ExamFilter) ([]model.Exam, error)

	InsertQuestions(examID int64, qs []model.Question) ([]model.Question, error)
	ReplaceQuestions(examID int64, qs []model.Question) ([]model.Question, error)
	GetQuestion(id int64) (*model.Question, error)
	ListQuestions(examID int64) ([]model.Question, error)
	QuestionCount(examID int64) (int, error)
	DeleteQuestion(id int64) error

	InsertResult(r model.ExamResult) (int64, error)
	GetResult(id int64) (*model.ExamResult, error)
	HasResult(examID, studentID int64) (bool, error)
	ListResultsByExam(examID int64) ([]model.ExamResult, error)
	ListResultsByStudent(studentID int64) ([]model.ExamResult, error)
	StudentSummaries(facultyID int64) ([]model.StudentSummary, error)

	GetUserByID(id int64) (*model.User, error)
	GetDepartment(id int64) (*model.Department, error)
	ListDepartments(activeOnly bool) ([]model.Department, error)
	DepartmentPerformance(d model.Department) (model.DepartmentPerformance, error)
}

// QuestionGenerator produces candidate questions for a topic. Implementations must
// honor ctx cancellation.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, topic, difficulty string, count int) ([]model.QuestionDraft, error)
}

// FallbackSource supplies questions when the generator is unavailable or fails.
type FallbackSource interface {
	Questions(topic string, count int) []model.QuestionDraft
}

// ExamSpec carries the author-supplied fields of a new or edited exam.
type ExamSpec struct {
	Title          string
	Description    string
	TotalQuestions int
	TimeLimit      int // minutes
	StartTime      time.Time
	EndTime        time.Time
}
