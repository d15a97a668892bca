package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

// NewUser holds the fields for creating an account.
type NewUser struct {
	Username     string
	Password     string
	FirstName    string
	LastName     string
	Email        string
	Role         model.Role
	DepartmentID *int64
	ExternalID   string
}

// Profile holds the editable fields of an account.
type Profile struct {
	FirstName    string
	LastName     string
	Email        string
	DepartmentID *int64
	ExternalID   string
}

// manages reports whether actor may act on a user with role and department dept.
// HOD and ASSISTANT are limited to their own department.
func manages(actor model.Actor, role model.Role, dept *int64) bool {
	if !actor.Can(model.CapManageUsers) || !actor.Role.CanManage(role) {
		return false
	}
	if actor.Role.DepartmentScoped() {
		return dept != nil && actor.InDepartment(*dept)
	}
	return true
}

// resolveDepartment checks the department a user with role should belong to.
// Department-scoped roles need an active department; others have none.
func (s *Service) resolveDepartment(role model.Role, dept *int64) (*int64, error) {
	if !role.DepartmentScoped() {
		return nil, nil
	}
	if dept == nil {
		return nil, fmt.Errorf("role %s requires a department: %w", role, model.ErrValidation)
	}
	d, err := s.department(*dept)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("department %d does not exist: %w", *dept, model.ErrValidation)
		}
		return nil, err
	}
	if !d.Active {
		return nil, fmt.Errorf("department %s is inactive: %w", d.Code, model.ErrValidation)
	}
	return &d.ID, nil
}

// CreateUser adds an account. A department-scoped actor that gives no department
// creates the user in its own department.
func (s *Service) CreateUser(actor model.Actor, nu NewUser) (*model.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	if nu.Username == "" {
		return nil, fmt.Errorf("username is required: %w", model.ErrValidation)
	}
	if !nu.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", nu.Role, model.ErrValidation)
	}
	if nu.DepartmentID == nil && actor.Role.DepartmentScoped() {
		nu.DepartmentID = actor.DepartmentID
	}
	if !manages(actor, nu.Role, nu.DepartmentID) {
		return nil, fmt.Errorf("role %s cannot create %s users here: %w", actor.Role, nu.Role, model.ErrUnauthorized)
	}
	return s.createUser(nu)
}

func (s *Service) createUser(nu NewUser) (*model.User, error) {
	dept, err := s.resolveDepartment(nu.Role, nu.DepartmentID)
	if err != nil {
		return nil, err
	}
	h, err := s.hash(nu.Password)
	if err != nil {
		return nil, err
	}
	u := model.User{
		Username:     nu.Username,
		PasswordHash: h,
		FirstName:    strings.TrimSpace(nu.FirstName),
		LastName:     strings.TrimSpace(nu.LastName),
		Email:        strings.TrimSpace(nu.Email),
		Role:         nu.Role,
		DepartmentID: dept,
		ExternalID:   strings.TrimSpace(nu.ExternalID),
		Active:       true,
	}
	id, err := s.store.CreateUser(u)
	if err != nil {
		return nil, err
	}
	return s.user(id)
}

// managedUser loads user id and checks the actor may manage it.
func (s *Service) managedUser(actor model.Actor, id int64) (*model.User, error) {
	u, err := s.user(id)
	if err != nil {
		return nil, err
	}
	if !manages(actor, u.Role, u.DepartmentID) {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrUnauthorized)
	}
	return u, nil
}

// GetUser returns a user the actor may see. Everyone may see themselves.
func (s *Service) GetUser(actor model.Actor, id int64) (*model.User, error) {
	if id == actor.ID {
		return s.user(id)
	}
	return s.managedUser(actor, id)
}

// UpdateProfile changes a managed user's profile fields.
func (s *Service) UpdateProfile(actor model.Actor, id int64, p Profile) (*model.User, error) {
	u, err := s.managedUser(actor, id)
	if err != nil {
		return nil, err
	}
	dept := p.DepartmentID
	if dept == nil {
		dept = u.DepartmentID
	}
	if !manages(actor, u.Role, dept) {
		return nil, fmt.Errorf("cannot move user %d out of the department: %w", id, model.ErrUnauthorized)
	}
	dept, err = s.resolveDepartment(u.Role, dept)
	if err != nil {
		return nil, err
	}
	u.FirstName = strings.TrimSpace(p.FirstName)
	u.LastName = strings.TrimSpace(p.LastName)
	u.Email = strings.TrimSpace(p.Email)
	u.ExternalID = strings.TrimSpace(p.ExternalID)
	u.DepartmentID = dept
	if err := s.store.UpdateUser(*u); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return s.user(id)
}

// ResetPassword sets a managed user's password.
func (s *Service) ResetPassword(actor model.Actor, id int64, password string) error {
	if _, err := s.managedUser(actor, id); err != nil {
		return err
	}
	h, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.store.SetUserPassword(id, h); err != nil {
		return fmt.Errorf("set password of user %d: %w", id, err)
	}
	s.revokeSessions(id)
	return nil
}

// revokeSessions logs a user out everywhere. Failure is logged; the change that
// triggered it has already been stored.
func (s *Service) revokeSessions(id int64) {
	n, err := s.store.DeleteUserSessions(id)
	if err != nil {
		slog.Warn("failed to revoke sessions", "user_id", id, "error", err)
		return
	}
	if n > 0 {
		slog.Info("revoked sessions", "user_id", id, "count", n)
	}
}

// ToggleActive flips a managed user's active flag.
func (s *Service) ToggleActive(actor model.Actor, id int64) error {
	if id == actor.ID {
		return fmt.Errorf("%w: %w", ErrSelf, model.ErrInvalidState)
	}
	u, err := s.managedUser(actor, id)
	if err != nil {
		return err
	}
	if err := s.store.ToggleUserActive(id); err != nil {
		return fmt.Errorf("toggle user %d: %w", id, err)
	}
	if u.Active {
		s.revokeSessions(id)
	}
	slog.Info("user active flag toggled", "id", id, "active", !u.Active, "by", actor.ID)
	return nil
}

// DeleteUser removes a managed user. Users who own exams or results cannot be deleted.
func (s *Service) DeleteUser(actor model.Actor, id int64) error {
	if id == actor.ID {
		return fmt.Errorf("%w: %w", ErrSelf, model.ErrInvalidState)
	}
	if _, err := s.managedUser(actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteUser(id); err != nil {
		return err
	}
	slog.Info("user deleted", "id", id, "by", actor.ID)
	return nil
}

// ListUsers returns the users the actor may manage, narrowed by f. Department-scoped
// actors only see their own department.
func (s *Service) ListUsers(actor model.Actor, f store.UserFilter) ([]model.User, error) {
	if !actor.Can(model.CapManageUsers) {
		return nil, fmt.Errorf("role %s cannot list users: %w", actor.Role, model.ErrUnauthorized)
	}
	if actor.Role.DepartmentScoped() {
		if actor.DepartmentID == nil {
			return nil, nil
		}
		f.DepartmentID = *actor.DepartmentID
	}
	users, err := s.store.ListUsers(f)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := users[:0]
	for _, u := range users {
		if manages(actor, u.Role, u.DepartmentID) {
			out = append(out, u)
		}
	}
	return out, nil
}

// SeedSuperAdmin creates a superadmin account when no user exists yet. It reports
// whether an account was created.
func (s *Service) SeedSuperAdmin(username, password string) (bool, error) {
	n, err := s.store.UserCount()
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	u, err := s.createUser(NewUser{
		Username:  username,
		Password:  password,
		FirstName: "Super",
		LastName:  "Admin",
		Role:      model.RoleSuperAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("seed superadmin: %w", err)
	}
	slog.Info("created default superadmin", "username", u.Username)
	return true, nil
}

// Bootstrap creates any account, bypassing the role hierarchy. It is used by the
// command line, which runs with operator privileges.
func (s *Service) Bootstrap(nu NewUser) (*model.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	if nu.Username == "" {
		return nil, fmt.Errorf("username is required: %w", model.ErrValidation)
	}
	if !nu.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", nu.Role, model.ErrValidation)
	}
	return s.createUser(nu)
}
