package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/exammgr/internal/directory"
	"github.com/pavelanni/exammgr/internal/exam"
	appI18n "github.com/pavelanni/exammgr/internal/i18n"
	"github.com/pavelanni/exammgr/internal/llm/fallback"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

type testServer struct {
	srv   *httptest.Server
	store *store.Store
	csID  int64
	meID  int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	st, err := store.New(store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bank, err := fallback.Default()
	if err != nil {
		t.Fatalf("fallback.Default: %v", err)
	}
	dir := directory.New(st).WithCost(bcrypt.MinCost)
	mgr := exam.NewManager(st, nil, bank, time.Second)
	eng := exam.NewEngine(st)
	h := New(st, st, dir, mgr, eng, model.AppConfig{Lang: "en"})

	ts := &testServer{store: st}
	ts.csID, _ = st.CreateDepartment(model.Department{Name: "Computer Science", Code: "CS"})
	ts.meID, _ = st.CreateDepartment(model.Department{Name: "Mechanical", Code: "ME"})
	users := []directory.NewUser{
		{Username: "admin", Role: model.RoleSuperAdmin},
		{Username: "prof", Role: model.RoleFaculty, DepartmentID: &ts.csID},
		{Username: "stud", Role: model.RoleStudent, DepartmentID: &ts.csID},
		{Username: "mech", Role: model.RoleStudent, DepartmentID: &ts.meID},
		{Username: "hod", Role: model.RoleHOD, DepartmentID: &ts.csID},
	}
	for _, nu := range users {
		nu.Password = "secret1"
		if _, err := dir.Bootstrap(nu); err != nil {
			t.Fatalf("Bootstrap %s: %v", nu.Username, err)
		}
	}

	ts.srv = httptest.NewServer(h.Router())
	t.Cleanup(ts.srv.Close)
	return ts
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (ts *testServer) client(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	c := &client{t: t, base: ts.srv.URL, http: &http.Client{Jar: jar}}
	// Any GET under /api hands out a CSRF cookie.
	c.do(http.MethodGet, "/api/me", nil).Body.Close()
	return c
}

func (ts *testServer) login(t *testing.T, username string) *client {
	t.Helper()
	c := ts.client(t)
	resp := c.do(http.MethodPost, "/api/login", loginRequest{Username: username, Password: "secret1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	return c
}

func (c *client) csrf() string {
	u, _ := url.Parse(c.base + "/")
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

func (c *client) send(method, path, contentType string, body io.Reader) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method != http.MethodGet {
		req.Header.Set(csrfHeaderName, c.csrf())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	return c.send(method, path, "application/json", r)
}

// call performs a request, checks the status and decodes the JSON response into out.
func (c *client) call(method, path string, body any, wantStatus int, out any) {
	c.t.Helper()
	resp := c.do(method, path, body)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		c.t.Fatalf("%s %s: status %d, want %d; body %s", method, path, resp.StatusCode, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.t.Fatalf("decode %s %s: %v; body %s", method, path, err, data)
		}
	}
}

func openExam() examRequest {
	now := time.Now()
	return examRequest{
		Title:     "Web basics",
		TimeLimit: 20,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t)

	c.call(http.MethodGet, "/api/me", nil, http.StatusUnauthorized, nil)

	// A client without the CSRF cookie.
	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/login", strings.NewReader(`{}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 without CSRF cookie, got %d", resp.StatusCode)
	}

	var e errorResponse
	c.call(http.MethodPost, "/api/login", loginRequest{Username: "stud", Password: "wrong"}, http.StatusUnauthorized, &e)
	if e.Error != "Invalid username or password." {
		t.Errorf("unexpected error message %q", e.Error)
	}
	c.call(http.MethodPost, "/api/login", map[string]string{"username": "stud"}, http.StatusBadRequest, &e)
	if _, ok := e.Fields["password"]; !ok {
		t.Errorf("expected a password field error, got %+v", e.Fields)
	}

	var me model.User
	c.call(http.MethodPost, "/api/login", loginRequest{Username: "stud", Password: "secret1"}, http.StatusOK, &me)
	c.call(http.MethodGet, "/api/me", nil, http.StatusOK, &me)
	if me.Username != "stud" || me.Role != model.RoleStudent {
		t.Errorf("unexpected user %+v", me)
	}

	c.call(http.MethodPost, "/api/logout", nil, http.StatusOK, nil)
	c.call(http.MethodGet, "/api/me", nil, http.StatusUnauthorized, nil)
}

func TestCSRFMismatch(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t)
	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/login", strings.NewReader(`{}`))
	req.Header.Set(csrfHeaderName, "not-the-cookie")
	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for mismatched token, got %d", resp.StatusCode)
	}
}

func TestExamLifecycleAPI(t *testing.T) {
	ts := newTestServer(t)
	prof := ts.login(t, "prof")

	var verr errorResponse
	bad := openExam()
	bad.Title = ""
	prof.call(http.MethodPost, "/api/exams", bad, http.StatusBadRequest, &verr)
	if verr.Fields["title"] != "title is required." {
		t.Errorf("expected localized title error, got %+v", verr.Fields)
	}
	inverted := openExam()
	inverted.EndTime = inverted.StartTime.Add(-time.Minute)
	prof.call(http.MethodPost, "/api/exams", inverted, http.StatusBadRequest, nil)

	var e model.Exam
	prof.call(http.MethodPost, "/api/exams", openExam(), http.StatusCreated, &e)
	if e.DepartmentID != ts.csID || e.ExamType != model.ExamTypeManual {
		t.Errorf("unexpected exam %+v", e)
	}

	var q model.Question
	prof.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/questions", e.ID), questionRequest{
		QuestionText: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22", CorrectAnswer: "b",
	}, http.StatusCreated, &q)
	if q.CorrectAnswer != "B" || q.QuestionNumber != 1 {
		t.Errorf("unexpected question %+v", q)
	}

	var gen generationResponse
	prof.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/generate", e.ID), generateRequest{
		Topic: "HTML", Difficulty: "EASY", Count: 2,
	}, http.StatusOK, &gen)
	if gen.Report.Source != exam.SourceFallback || gen.Report.Saved != 2 {
		t.Errorf("expected 2 fallback questions, got %+v", gen.Report)
	}
	if !strings.Contains(gen.Message, "2 questions saved.") {
		t.Errorf("unexpected message %q", gen.Message)
	}

	var qs []model.Question
	prof.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/questions", e.ID), nil, http.StatusOK, &qs)
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}

	// Student side.
	stud := ts.login(t, "stud")
	stud.call(http.MethodPost, "/api/exams", openExam(), http.StatusForbidden, nil)
	stud.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/questions", e.ID), nil, http.StatusForbidden, nil)

	var avail []model.Exam
	stud.call(http.MethodGet, "/api/attempts/available", nil, http.StatusOK, &avail)
	if len(avail) != 1 {
		t.Fatalf("expected 1 available exam, got %d", len(avail))
	}

	var el map[string]any
	stud.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/eligibility", e.ID), nil, http.StatusOK, &el)
	if el["eligible"] != true {
		t.Errorf("expected eligible, got %v", el)
	}

	var view exam.AttemptView
	stud.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/attempt", e.ID), nil, http.StatusOK, &view)
	answers := map[string]string{}
	for _, vq := range view.Questions {
		if vq.CorrectAnswer != "" {
			t.Fatalf("answer key leaked for question %d", vq.ID)
		}
		answers[fmt.Sprintf("question_%d", vq.ID)] = "Z"
	}
	answers[fmt.Sprintf("question_%d", q.ID)] = "B"

	var sub struct {
		Result model.ExamResult `json:"result"`
		Grade  string           `json:"grade"`
	}
	stud.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/submit", e.ID), submitRequest{
		Answers:   answers,
		StartTime: time.Now().Add(-5 * time.Minute).UnixMilli(),
	}, http.StatusCreated, &sub)
	if sub.Result.Score != 1 || sub.Result.TotalQuestions != 3 || sub.Result.TimeTaken != 5 {
		t.Errorf("unexpected result %+v", sub.Result)
	}
	if sub.Grade != "F" {
		t.Errorf("expected grade F for 33%%, got %s", sub.Grade)
	}

	var dup errorResponse
	stud.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/submit", e.ID), submitRequest{Answers: answers}, http.StatusConflict, &dup)
	if dup.Error != "You have already taken this exam." {
		t.Errorf("unexpected duplicate message %q", dup.Error)
	}
	stud.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/eligibility", e.ID), nil, http.StatusOK, &el)
	if el["reason"] != string(exam.ReasonAlreadyTaken) {
		t.Errorf("expected already_taken, got %v", el)
	}

	var mine []model.ExamResult
	stud.call(http.MethodGet, "/api/results/mine", nil, http.StatusOK, &mine)
	if len(mine) != 1 {
		t.Fatalf("expected 1 result, got %d", len(mine))
	}

	var detail struct {
		Answers map[string]string `json:"answers"`
		Grade   string            `json:"grade"`
	}
	stud.call(http.MethodGet, fmt.Sprintf("/api/results/%d", mine[0].ID), nil, http.StatusOK, &detail)
	if detail.Answers[fmt.Sprint(q.ID)] != "B" {
		t.Errorf("stored answers did not round trip: %v", detail.Answers)
	}

	mech := ts.login(t, "mech")
	mech.call(http.MethodGet, fmt.Sprintf("/api/results/%d", mine[0].ID), nil, http.StatusForbidden, nil)
	mech.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/attempt", e.ID), nil, http.StatusForbidden, nil)

	// Faculty reports.
	var results []model.ExamResult
	prof.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/results", e.ID), nil, http.StatusOK, &results)
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
	var export model.ResultsExport
	prof.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/export", e.ID), nil, http.StatusOK, &export)
	if len(export.Exams) != 1 || len(export.Exams[0].Results) != 1 {
		t.Errorf("unexpected export %+v", export)
	}
	var sums []model.StudentSummary
	prof.call(http.MethodGet, "/api/reports/students", nil, http.StatusOK, &sums)
	if len(sums) != 1 || sums[0].Student.Username != "stud" {
		t.Errorf("unexpected summaries %+v", sums)
	}

	hod := ts.login(t, "hod")
	var perf []model.DepartmentPerformance
	hod.call(http.MethodGet, "/api/reports/departments", nil, http.StatusOK, &perf)
	if len(perf) != 1 || perf[0].ResultCount != 1 {
		t.Errorf("unexpected performance %+v", perf)
	}

	prof.call(http.MethodDelete, fmt.Sprintf("/api/exams/%d", e.ID), nil, http.StatusNoContent, nil)
	prof.call(http.MethodGet, fmt.Sprintf("/api/exams/%d", e.ID), nil, http.StatusNotFound, nil)
}

func TestAttemptPageFormSubmit(t *testing.T) {
	ts := newTestServer(t)
	prof := ts.login(t, "prof")
	var e model.Exam
	prof.call(http.MethodPost, "/api/exams", openExam(), http.StatusCreated, &e)
	var q model.Question
	prof.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/questions", e.ID), questionRequest{
		QuestionText: "Largest <h> tag?", OptionA: "h1", OptionB: "h6", OptionC: "h3", OptionD: "h9", CorrectAnswer: "A",
	}, http.StatusCreated, &q)

	mech := ts.login(t, "mech")
	resp := mech.send(http.MethodGet, fmt.Sprintf("/exams/%d/take", e.ID), "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for another department, got %d", resp.StatusCode)
	}

	stud := ts.login(t, "stud")
	resp = stud.send(http.MethodGet, fmt.Sprintf("/exams/%d/take", e.ID), "", nil)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("attempt page: status %d; body %s", resp.StatusCode, page)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML, got %q", ct)
	}
	for _, want := range []string{
		fmt.Sprintf(`action="/api/exams/%d/submit"`, e.ID),
		fmt.Sprintf(`name="question_%d"`, q.ID),
		"Largest &lt;h&gt; tag?",
		"Submit answers",
	} {
		if !strings.Contains(string(page), want) {
			t.Errorf("attempt page missing %q", want)
		}
	}
	if strings.Contains(string(page), "Largest <h> tag?") {
		t.Error("question text was not escaped")
	}

	// The browser form carries the token in a field, not a header, and
	// declares a charset.
	form := url.Values{
		"csrf_token":                     {stud.csrf()},
		"startTime":                      {fmt.Sprint(time.Now().Add(-2 * time.Minute).UnixMilli())},
		fmt.Sprintf("question_%d", q.ID): {"A"},
	}
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+fmt.Sprintf("/api/exams/%d/submit", e.ID), strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	resp, err = stud.http.Do(req)
	if err != nil {
		t.Fatalf("submit form: %v", err)
	}
	result, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit form: status %d; body %s", resp.StatusCode, result)
	}
	if !strings.HasPrefix(resp.Request.URL.Path, "/results/") {
		t.Errorf("expected redirect to the result page, ended at %s", resp.Request.URL.Path)
	}
	for _, want := range []string{"Score: 1 of 1 (100.0%)", "Grade: A", "Your answer: A"} {
		if !strings.Contains(string(result), want) {
			t.Errorf("result page missing %q; body %s", want, result)
		}
	}

	var mine []model.ExamResult
	stud.call(http.MethodGet, "/api/results/mine", nil, http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].Score != 1 || mine[0].TimeTaken != 2 {
		t.Errorf("unexpected stored results %+v", mine)
	}
	resp = mech.send(http.MethodGet, fmt.Sprintf("/results/%d", mine[0].ID), "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 viewing another student's result, got %d", resp.StatusCode)
	}
}

func TestInactiveExamNotAttemptable(t *testing.T) {
	ts := newTestServer(t)
	prof := ts.login(t, "prof")
	var e model.Exam
	prof.call(http.MethodPost, "/api/exams", openExam(), http.StatusCreated, &e)
	prof.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/questions", e.ID), questionRequest{
		QuestionText: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22", CorrectAnswer: "B",
	}, http.StatusCreated, nil)
	prof.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/toggle", e.ID), nil, http.StatusOK, &e)
	if e.IsActive {
		t.Fatal("expected exam inactive after toggle")
	}

	stud := ts.login(t, "stud")
	var el map[string]any
	stud.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/eligibility", e.ID), nil, http.StatusOK, &el)
	if el["reason"] != string(exam.ReasonInactive) || el["message"] != "This exam is not active." {
		t.Errorf("unexpected eligibility %v", el)
	}
	stud.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/attempt", e.ID), nil, http.StatusConflict, nil)
	stud.call(http.MethodPost, fmt.Sprintf("/api/exams/%d/submit", e.ID), submitRequest{
		Answers: map[string]string{"question_1": "B"},
	}, http.StatusConflict, nil)

	var mine []model.ExamResult
	stud.call(http.MethodGet, "/api/results/mine", nil, http.StatusOK, &mine)
	if len(mine) != 0 {
		t.Errorf("expected no results for an inactive exam, got %+v", mine)
	}
}

func TestCreateExamFromCSVAndUpload(t *testing.T) {
	ts := newTestServer(t)
	prof := ts.login(t, "prof")

	content := "question,a,b,c,d,answer\n" +
		"Capital of France?,Paris,Rome,Berlin,Madrid,A\n" +
		"broken,row\n" +
		"Largest planet?,Mars,Jupiter,Venus,Earth,B,Jupiter is the largest\n"
	var out struct {
		Exam    model.Exam `json:"exam"`
		Saved   int        `json:"saved"`
		Skipped int        `json:"skipped"`
		Message string     `json:"message"`
	}
	prof.call(http.MethodPost, "/api/exams/csv", csvExamRequest{Exam: openExam(), Content: content}, http.StatusCreated, &out)
	if out.Saved != 2 || out.Skipped != 1 || out.Exam.TotalQuestions != 2 || out.Exam.ExamType != model.ExamTypeCSVUpload {
		t.Errorf("unexpected CSV import %+v", out)
	}
	if out.Message != "2 questions saved. 1 row was skipped." {
		t.Errorf("unexpected message %q", out.Message)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "more.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte("header\nWhat is 1+1?,1,2,3,4,B\n"))
	mw.Close()

	resp := prof.send(http.MethodPost, fmt.Sprintf("/api/exams/%d/questions/import", out.Exam.ID), mw.FormDataContentType(), &buf)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload: status %d, body %s", resp.StatusCode, body)
	}
	var qs []model.Question
	prof.call(http.MethodGet, fmt.Sprintf("/api/exams/%d/questions", out.Exam.ID), nil, http.StatusOK, &qs)
	if len(qs) != 3 || qs[2].QuestionNumber != 3 {
		t.Errorf("expected the upload appended as question 3, got %+v", qs)
	}
}

func TestCreateExamWithAIFallsBack(t *testing.T) {
	ts := newTestServer(t)
	prof := ts.login(t, "prof")

	req := aiExamRequest{Exam: openExam(), Topic: "JavaScript", Difficulty: "MEDIUM"}
	req.Exam.TotalQuestions = 3
	var out generationResponse
	prof.call(http.MethodPost, "/api/exams/ai", req, http.StatusCreated, &out)
	if out.Exam == nil || out.Exam.ExamType != model.ExamTypeAIGenerated || out.Exam.TotalQuestions != 3 {
		t.Errorf("unexpected exam %+v", out.Exam)
	}
	if out.Report.Source != exam.SourceFallback || out.Report.Warning == "" {
		t.Errorf("expected a fallback warning, got %+v", out.Report)
	}
	if !strings.HasPrefix(out.Message, "The AI service was unavailable") {
		t.Errorf("unexpected message %q", out.Message)
	}

	var preview struct {
		Questions []model.QuestionDraft `json:"questions"`
	}
	prof.call(http.MethodPost, "/api/questions/preview", generateRequest{Topic: "Python", Count: 2}, http.StatusOK, &preview)
	if len(preview.Questions) != 2 {
		t.Errorf("expected 2 preview questions, got %d", len(preview.Questions))
	}
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "admin")

	var d model.Department
	admin.call(http.MethodPost, "/api/departments", departmentRequest{Name: "Physics", Code: "phy"}, http.StatusCreated, &d)
	if d.Code != "PHY" {
		t.Errorf("expected upper-case code, got %q", d.Code)
	}
	admin.call(http.MethodPost, "/api/departments", departmentRequest{Name: "Physics", Code: "PHY"}, http.StatusBadRequest, nil)
	active := false
	admin.call(http.MethodPost, fmt.Sprintf("/api/departments/%d/active", d.ID), activeRequest{Active: &active}, http.StatusOK, &d)
	if d.Active {
		t.Error("department should be inactive")
	}

	var u model.User
	admin.call(http.MethodPost, "/api/users", createUserRequest{
		Username: "newbie", Password: "secret1", Role: "student", DepartmentID: &ts.csID, Email: "n@example.com",
	}, http.StatusCreated, &u)
	if u.Role != model.RoleStudent {
		t.Errorf("unexpected user %+v", u)
	}
	admin.call(http.MethodPost, "/api/users", createUserRequest{
		Username: "bad", Password: "secret1", Role: "student", DepartmentID: &ts.csID, Email: "not-an-email",
	}, http.StatusBadRequest, nil)

	hod := ts.login(t, "hod")
	var users []model.User
	hod.call(http.MethodGet, "/api/users?role=STUDENT", nil, http.StatusOK, &users)
	for _, x := range users {
		if x.DepartmentID == nil || *x.DepartmentID != ts.csID {
			t.Errorf("HOD saw user outside its department: %+v", x)
		}
	}
	hod.call(http.MethodPost, "/api/departments", departmentRequest{Name: "Chem", Code: "CH"}, http.StatusForbidden, nil)
	hod.call(http.MethodPost, fmt.Sprintf("/api/users/%d/toggle", u.ID), nil, http.StatusOK, &u)
	if u.Active {
		t.Error("user should be inactive after toggle")
	}
	hod.call(http.MethodDelete, fmt.Sprintf("/api/users/%d", u.ID), nil, http.StatusNoContent, nil)

	stud := ts.login(t, "stud")
	stud.call(http.MethodGet, "/api/users", nil, http.StatusForbidden, nil)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", model.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("x: %w", model.ErrNotFound), http.StatusNotFound},
		{model.ErrDuplicateAttempt, http.StatusConflict},
		{fmt.Errorf("x: %w", model.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("x: %w", model.ErrValidation), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(ts.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
		if path == "/metrics" && !bytes.Contains(body, []byte("go_goroutines")) {
			t.Error("metrics output missing runtime collectors")
		}
	}
}
