// Package handler exposes the exam manager as a JSON API over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/exammgr/internal/directory"
	"github.com/pavelanni/exammgr/internal/exam"
	appI18n "github.com/pavelanni/exammgr/internal/i18n"
	"github.com/pavelanni/exammgr/internal/model"
)

const maxBodyBytes = 1 << 20

// Sessions is the login session storage used by the auth middleware.
type Sessions interface {
	CreateAuthSession(userID int64) (string, error)
	GetAuthSession(token string) (*model.AuthSession, error)
	DeleteAuthSession(token string) error
	GetUserByID(id int64) (*model.User, error)
}

// Exporter builds result exports.
type Exporter interface {
	ExportResults(examID int64) (*model.ResultsExport, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions  Sessions
	exporter  Exporter
	directory *directory.Service
	manager   *exam.Manager
	engine    *exam.Engine
	config    model.AppConfig
	validate  *validator.Validate
	now       func() time.Time
}

// New creates a new Handler.
func New(sessions Sessions, exporter Exporter, dir *directory.Service, mgr *exam.Manager, eng *exam.Engine, cfg model.AppConfig) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Handler{
		sessions:  sessions,
		exporter:  exporter,
		directory: dir,
		manager:   mgr,
		engine:    eng,
		config:    cfg,
		validate:  v,
		now:       time.Now,
	}
}

// Router builds the complete HTTP router, mounted at the configured base path.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(h.config.Lang))

	if h.config.BasePath != "" {
		r.Route(h.config.BasePath, h.Routes)
		return r
	}
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Post("/me/password", h.handleChangePassword)

			r.Get("/departments", h.handleListDepartments)
			r.With(requireCapability(model.CapManageDepartments)).Group(func(r chi.Router) {
				r.Post("/departments", h.handleCreateDepartment)
				r.Put("/departments/{id}", h.handleUpdateDepartment)
				r.Post("/departments/{id}/active", h.handleSetDepartmentActive)
			})

			r.With(requireCapability(model.CapManageUsers)).Group(func(r chi.Router) {
				r.Get("/users", h.handleListUsers)
				r.Post("/users", h.handleCreateUser)
				r.Get("/users/{id}", h.handleGetUser)
				r.Put("/users/{id}", h.handleUpdateUser)
				r.Post("/users/{id}/password", h.handleResetPassword)
				r.Post("/users/{id}/toggle", h.handleToggleUserActive)
				r.Delete("/users/{id}", h.handleDeleteUser)
			})

			r.Get("/exams", h.handleListExams)
			r.Get("/exams/{id}", h.handleGetExam)
			r.Get("/exams/{id}/questions", h.handleListQuestions)
			r.Get("/exams/{id}/results", h.handleExamResults)
			r.Get("/exams/{id}/export", h.handleExportExam)

			r.With(requireCapability(model.CapAuthorExams)).Group(func(r chi.Router) {
				r.Post("/exams", h.handleCreateExam)
				r.Post("/exams/csv", h.handleCreateExamFromCSV)
				r.Post("/exams/ai", h.handleCreateExamWithAI)
				r.Put("/exams/{id}", h.handleUpdateExam)
				r.Delete("/exams/{id}", h.handleDeleteExam)
				r.Post("/exams/{id}/toggle", h.handleToggleExam)
				r.Post("/exams/{id}/questions", h.handleAddQuestion)
				r.Post("/exams/{id}/questions/import", h.handleImportQuestions)
				r.Post("/exams/{id}/generate", h.handleGenerateQuestions)
				r.Post("/exams/{id}/cleanup", h.handleCleanupPlaceholders)
				r.Delete("/questions/{id}", h.handleDeleteQuestion)
				r.Post("/questions/preview", h.handlePreviewQuestions)
				r.Get("/reports/students", h.handleStudentSummaries)
				r.Get("/reports/students/{id}/results", h.handleStudentResults)
			})
			r.Get("/reports/departments", h.handleDepartmentPerformance)

			r.With(requireCapability(model.CapTakeExams)).Group(func(r chi.Router) {
				r.Get("/attempts/available", h.handleAvailableExams)
				r.Get("/exams/{id}/eligibility", h.handleEligibility)
				r.Post("/exams/{id}/attempt", h.handleStartAttempt)
				r.Post("/exams/{id}/submit", h.handleSubmit)
				r.Get("/results/mine", h.handleMyResults)
			})
			r.Get("/results/{id}", h.handleResultDetail)
		})
	})

	// HTML pages for students; the attempt form posts to the JSON submit route.
	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Use(h.requireAuth)
		r.With(requireCapability(model.CapTakeExams)).Get("/exams/{id}/take", h.handleAttemptPage)
		r.Get("/results/{id}", h.handleResultPage)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// path prepends the configured base path to p.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	return h.path("/")
}

// actor returns the authenticated actor. requireAuth guarantees a user.
func actor(r *http.Request) model.Actor {
	if u := model.UserFromContext(r.Context()); u != nil {
		return u.Actor()
	}
	return model.Actor{}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, chi.URLParam(r, name), model.ErrValidation)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps a domain error to an HTTP status and a message ID.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden, "ErrUnauthorized"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, model.ErrDuplicateAttempt):
		return http.StatusConflict, "ErrDuplicateAttempt"
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict, "ErrInvalidState"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "ErrValidation"
	}
	return http.StatusInternalServerError, "ErrInternal"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := statusFor(err)
	resp := errorResponse{Error: appI18n.T(r.Context(), msgID)}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into dst and validates it. It writes the error response
// and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, fmt.Errorf("decode request body: %v: %w", err, model.ErrValidation))
		return false
	}
	return h.check(w, r, dst)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		h.writeError(w, r, err)
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msgID := "FieldInvalid"
		if fe.Tag() == "required" {
			msgID = "FieldRequired"
		}
		fields[fe.Field()] = appI18n.Td(r.Context(), msgID, map[string]any{"Field": fe.Field()})
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  appI18n.T(r.Context(), "ErrValidation"),
		Fields: fields,
	})
	return false
}
