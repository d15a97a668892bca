package handler

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/pavelanni/exammgr/internal/exam"
	appI18n "github.com/pavelanni/exammgr/internal/i18n"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/views"
)

var reasonMessages = map[exam.Reason]string{
	exam.ReasonWrongDepartment: "ExamWrongDepartment",
	exam.ReasonInactive:        "ExamInactive",
	exam.ReasonAlreadyTaken:    "ErrDuplicateAttempt",
	exam.ReasonNotStarted:      "ExamNotStarted",
	exam.ReasonEnded:           "ExamEnded",
	exam.ReasonNoQuestions:     "ExamNoQuestions",
}

// submitRequest carries answers keyed "question_<id>" and the epoch-millisecond
// time the student opened the exam.
type submitRequest struct {
	Answers   map[string]string `json:"answers"`
	StartTime int64             `json:"start_time" validate:"gte=0"`
}

func (h *Handler) handleAvailableExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.engine.AvailableExams(actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	el, err := h.engine.Check(actor(r), id, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := map[string]any{"eligible": el.Eligible, "reason": el.Reason}
	if msgID, ok := reasonMessages[el.Reason]; ok {
		resp["message"] = appI18n.T(r.Context(), msgID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.engine.StartAttempt(actor(r), id, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSubmit accepts either a JSON submitRequest or a form with question_<id>
// fields and a startTime field. Form posts come from the attempt page and are
// redirected to the result page.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req submitRequest
	form := isFormPost(r)
	if form {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, r, err)
			return
		}
		req.Answers = make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			req.Answers[k] = r.PostForm.Get(k)
		}
		req.StartTime, _ = strconv.ParseInt(r.PostForm.Get("startTime"), 10, 64)
	} else if !h.decode(w, r, &req) {
		return
	}

	result, err := h.engine.Submit(actor(r), id, exam.Submission{
		Answers:         exam.ParseSubmission(req.Answers),
		StartTimeMillis: req.StartTime,
	}, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if form {
		http.Redirect(w, r, h.path(fmt.Sprintf("/results/%d", result.ID)), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"result": result,
		"grade":  result.Grade(),
	})
}

func (h *Handler) handleMyResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.engine.MyResults(actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleResultDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	detail, err := h.engine.ResultDetail(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// isFormPost reports whether the body is URL-encoded form data. Parameters such
// as charset are ignored.
func isFormPost(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

func (h *Handler) handleAttemptPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.engine.StartAttempt(actor(r), id, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	action := h.path(fmt.Sprintf("/api/exams/%d/submit", id))
	token := model.CSRFTokenFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.AttemptPage(*view, action, token).Render(r.Context(), w); err != nil {
		slog.Error("render attempt page", "exam_id", id, "error", err)
	}
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	detail, err := h.engine.ResultDetail(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ResultPage(*detail).Render(r.Context(), w); err != nil {
		slog.Error("render result page", "result_id", id, "error", err)
	}
}
