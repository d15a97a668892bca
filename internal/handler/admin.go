package handler

import (
	"net/http"
	"strconv"

	"github.com/pavelanni/exammgr/internal/directory"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

type departmentRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=10"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	depts, err := h.directory.ListDepartments(activeOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depts)
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.directory.CreateDepartment(actor(r), model.Department{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req departmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.directory.UpdateDepartment(actor(r), model.Department{
		ID:          id,
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) handleSetDepartmentActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req activeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.directory.SetDepartmentActive(actor(r), id, *req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := h.directory.GetDepartment(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type createUserRequest struct {
	Username     string `json:"username" validate:"required,max=50"`
	Password     string `json:"password" validate:"required,min=6"`
	FirstName    string `json:"first_name" validate:"max=100"`
	LastName     string `json:"last_name" validate:"max=100"`
	Email        string `json:"email" validate:"omitempty,email"`
	Role         string `json:"role" validate:"required"`
	DepartmentID *int64 `json:"department_id"`
	ExternalID   string `json:"external_id" validate:"max=50"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var f store.UserFilter
	q := r.URL.Query()
	if role := q.Get("role"); role != "" {
		parsed, err := model.ParseRole(role)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.Role = parsed
	}
	if dept := q.Get("department_id"); dept != "" {
		id, err := strconv.ParseInt(dept, 10, 64)
		if err != nil {
			h.writeError(w, r, model.ErrValidation)
			return
		}
		f.DepartmentID = id
	}
	users, err := h.directory.ListUsers(actor(r), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.directory.CreateUser(actor(r), directory.NewUser{
		Username:     req.Username,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Role:         role,
		DepartmentID: req.DepartmentID,
		ExternalID:   req.ExternalID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.directory.GetUser(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	FirstName    string `json:"first_name" validate:"max=100"`
	LastName     string `json:"last_name" validate:"max=100"`
	Email        string `json:"email" validate:"omitempty,email"`
	DepartmentID *int64 `json:"department_id"`
	ExternalID   string `json:"external_id" validate:"max=50"`
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.directory.UpdateProfile(actor(r), id, directory.Profile{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		ExternalID:   req.ExternalID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.directory.ResetPassword(actor(r), id, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.directory.ToggleActive(actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.directory.GetUser(actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.directory.DeleteUser(actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
