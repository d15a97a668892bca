package exam

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

type testEnv struct {
	store   *store.Store
	mgr     *Manager
	eng     *Engine
	gen     *fakeGenerator
	bank    *fakeBank
	deptID  int64
	faculty model.Actor
	other   model.Actor // faculty in the same department
	student model.Actor
	outside model.Actor // student in another department
	hod     model.Actor
	admin   model.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(store.DriverSQLite, filepath.Join(t.TempDir(), "exam.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{store: st, gen: &fakeGenerator{}, bank: &fakeBank{}}
	env.deptID = mustDept(t, st, "CS")
	otherDept := mustDept(t, st, "ME")
	env.faculty = mustUser(t, st, "prof", model.RoleFaculty, env.deptID)
	env.other = mustUser(t, st, "prof2", model.RoleFaculty, env.deptID)
	env.student = mustUser(t, st, "stud", model.RoleStudent, env.deptID)
	env.outside = mustUser(t, st, "mech", model.RoleStudent, otherDept)
	env.hod = mustUser(t, st, "hod", model.RoleHOD, env.deptID)
	env.admin = mustUser(t, st, "root", model.RoleSuperAdmin, 0)

	env.mgr = NewManager(st, env.gen, env.bank, time.Second)
	env.eng = NewEngine(st)
	return env
}

func mustDept(t *testing.T, st *store.Store, code string) int64 {
	t.Helper()
	id, err := st.CreateDepartment(model.Department{Name: "Dept " + code, Code: code})
	if err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	return id
}

func mustUser(t *testing.T, st *store.Store, username string, role model.Role, deptID int64) model.Actor {
	t.Helper()
	u := model.User{Username: username, PasswordHash: "x", Role: role, Active: true}
	if deptID != 0 {
		u.DepartmentID = &deptID
	}
	id, err := st.CreateUser(u)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u.ID = id
	return u.Actor()
}

// openSpec is an exam window that is open now.
func openSpec() ExamSpec {
	now := time.Now()
	return ExamSpec{
		Title:     "Midterm",
		TimeLimit: 30,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}
}

func (env *testEnv) createExam(t *testing.T) *model.Exam {
	t.Helper()
	e, err := env.mgr.CreateExam(env.faculty, openSpec())
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return e
}

func draft(text, answer string) model.QuestionDraft {
	return model.QuestionDraft{
		QuestionText:  text,
		OptionA:       "a",
		OptionB:       "b",
		OptionC:       "c",
		OptionD:       "d",
		CorrectAnswer: answer,
	}
}

func (env *testEnv) addQuestions(t *testing.T, examID int64, answers ...string) []model.Question {
	t.Helper()
	var qs []model.Question
	for i, a := range answers {
		q, err := env.mgr.AddQuestion(env.faculty, examID, draft("Q"+string(rune('1'+i)), a))
		if err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
		qs = append(qs, *q)
	}
	return qs
}

type fakeGenerator struct {
	drafts []model.QuestionDraft
	err    error
	calls  int
	topic  string
	diff   string
}

func (f *fakeGenerator) GenerateQuestions(ctx context.Context, topic, difficulty string, count int) ([]model.QuestionDraft, error) {
	f.calls++
	f.topic, f.diff = topic, difficulty
	if f.err != nil {
		return nil, f.err
	}
	return f.drafts, nil
}

type fakeBank struct {
	calls int
}

func (b *fakeBank) Questions(topic string, count int) []model.QuestionDraft {
	b.calls++
	var out []model.QuestionDraft
	for i := 0; i < count; i++ {
		out = append(out, draft("fallback "+topic, "B"))
	}
	return out
}

var errAdapter = errors.New("upstream 503")
