package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/exammgr/internal/exam"
	appI18n "github.com/pavelanni/exammgr/internal/i18n"
	"github.com/pavelanni/exammgr/internal/model"
)

const maxUploadBytes = 10 << 20

type examRequest struct {
	Title          string    `json:"title" validate:"required,max=200"`
	Description    string    `json:"description" validate:"max=2000"`
	TotalQuestions int       `json:"total_questions" validate:"gte=0,lte=200"`
	TimeLimit      int       `json:"time_limit" validate:"required,gt=0"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

func (e examRequest) spec() exam.ExamSpec {
	return exam.ExamSpec{
		Title:          e.Title,
		Description:    e.Description,
		TotalQuestions: e.TotalQuestions,
		TimeLimit:      e.TimeLimit,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
	}
}

type csvExamRequest struct {
	Exam    examRequest `json:"exam"`
	Content string      `json:"content" validate:"required"`
}

type aiExamRequest struct {
	Exam       examRequest `json:"exam"`
	Topic      string      `json:"topic" validate:"required,max=200"`
	Difficulty string      `json:"difficulty" validate:"omitempty,oneof=EASY MEDIUM HARD easy medium hard"`
}

type generateRequest struct {
	Topic      string `json:"topic" validate:"required,max=200"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=EASY MEDIUM HARD easy medium hard"`
	Count      int    `json:"count" validate:"required,gt=0,lte=50"`
	Replace    bool   `json:"replace"`
}

type questionRequest struct {
	QuestionText  string `json:"question_text" validate:"required"`
	OptionA       string `json:"option_a" validate:"required"`
	OptionB       string `json:"option_b" validate:"required"`
	OptionC       string `json:"option_c" validate:"required"`
	OptionD       string `json:"option_d" validate:"required"`
	CorrectAnswer string `json:"correct_answer" validate:"required"`
	Explanation   string `json:"explanation"`
}

// generationResponse carries a report plus a localized notice.
type generationResponse struct {
	Exam    *model.Exam            `json:"exam,omitempty"`
	Report  *exam.GenerationReport `json:"report"`
	Message string                 `json:"message"`
}

func (h *Handler) generationMessage(r *http.Request, rep *exam.GenerationReport) string {
	msg := appI18n.Tp(r.Context(), "QuestionsSaved", rep.Saved)
	if rep.Source == exam.SourceFallback {
		msg = appI18n.T(r.Context(), "FallbackUsed") + " " + msg
	}
	return msg
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.manager.ListExams(actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.manager.GetExam(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.manager.CreateExam(actor(r), req.spec())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleCreateExamFromCSV(w http.ResponseWriter, r *http.Request) {
	var req csvExamRequest
	if !h.decode(w, r, &req) {
		return
	}
	_, skipped := exam.ParseDelimited(req.Content)
	e, n, err := h.manager.CreateExamFromDelimited(actor(r), req.Exam.spec(), req.Content)
	if err != nil && e == nil {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		slog.Error("CSV exam created with errors", "exam_id", e.ID, "error", err)
	}
	msg := appI18n.Tp(r.Context(), "QuestionsSaved", n)
	if len(skipped) > 0 {
		msg += " " + appI18n.Tp(r.Context(), "RowsSkipped", len(skipped))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"exam":    e,
		"saved":   n,
		"skipped": len(skipped),
		"message": msg,
	})
}

func (h *Handler) handleCreateExamWithAI(w http.ResponseWriter, r *http.Request) {
	var req aiExamRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, rep, err := h.manager.CreateExamWithGeneratedQuestions(r.Context(), actor(r), req.Exam.spec(), req.Topic, req.Difficulty)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, generationResponse{Exam: e, Report: rep, Message: h.generationMessage(r, rep)})
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req examRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.manager.UpdateExam(actor(r), id, req.spec())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleToggleExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.manager.ToggleActive(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.manager.DeleteExam(actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	qs, err := h.manager.ListQuestions(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req questionRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.manager.AddQuestion(actor(r), id, model.QuestionDraft{
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// handleImportQuestions appends questions from an uploaded delimited-text file.
func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, r, model.ErrValidation)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, model.ErrValidation)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	content := string(data)
	_, skipped := exam.ParseDelimited(content)
	n, err := h.manager.ImportDelimited(actor(r), id, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("uploaded questions", "exam_id", id, "filename", header.Filename, "count", n)

	msg := appI18n.Tp(r.Context(), "QuestionsSaved", n)
	if len(skipped) > 0 {
		msg += " " + appI18n.Tp(r.Context(), "RowsSkipped", len(skipped))
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": n, "skipped": len(skipped), "message": msg})
}

func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req generateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rep, err := h.manager.GenerateQuestions(r.Context(), actor(r), id, exam.GenerateRequest{
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Count:      req.Count,
		Replace:    req.Replace,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generationResponse{Report: rep, Message: h.generationMessage(r, rep)})
}

func (h *Handler) handlePreviewQuestions(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decode(w, r, &req) {
		return
	}
	drafts, rep, err := h.manager.PreviewQuestions(r.Context(), actor(r), req.Topic, req.Difficulty, req.Count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": drafts, "report": rep})
}

func (h *Handler) handleCleanupPlaceholders(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.manager.CleanupPlaceholders(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"removed": n,
		"message": appI18n.Tp(r.Context(), "PlaceholdersRemoved", n),
	})
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.manager.DeleteQuestion(actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleExamResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results, err := h.manager.ExamResults(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleExportExam returns the results export of one exam the actor may review.
func (h *Handler) handleExportExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.manager.ExamResults(actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	export, err := h.exporter.ExportResults(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleStudentSummaries(w http.ResponseWriter, r *http.Request) {
	sums, err := h.manager.StudentSummaries(actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results, err := h.manager.StudentResults(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleDepartmentPerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := h.manager.DepartmentPerformance(actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perf)
}
