// Package directory manages departments and user accounts.
package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/exammgr/internal/metrics"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

// MinPasswordLength is the shortest password accepted for new or changed passwords.
const MinPasswordLength = 6

// Store is the persistence the directory needs.
type Store interface {
	CreateDepartment(d model.Department) (int64, error)
	UpdateDepartment(d model.Department) error
	SetDepartmentActive(id int64, active bool) error
	GetDepartment(id int64) (*model.Department, error)
	GetDepartmentByCode(code string) (*model.Department, error)
	ListDepartments(activeOnly bool) ([]model.Department, error)
	DepartmentCount() (int, error)

	CreateUser(u model.User) (int64, error)
	GetUserByUsername(username string) (*model.User, error)
	GetUserByID(id int64) (*model.User, error)
	ListUsers(f store.UserFilter) ([]model.User, error)
	UpdateUser(u model.User) error
	SetUserPassword(id int64, hash string) error
	ToggleUserActive(id int64) error
	DeleteUser(id int64) error
	UserCount() (int, error)

	DeleteUserSessions(userID int64) (int64, error)
}

// Service applies the role hierarchy to directory changes.
type Service struct {
	store Store
	cost  int
}

// New creates a Service hashing passwords at bcrypt.DefaultCost.
func New(st Store) *Service {
	return &Service{store: st, cost: bcrypt.DefaultCost}
}

// WithCost returns a copy of s hashing at cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	c := *s
	c.cost = cost
	return &c
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, model.ErrValidation)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Authenticate checks a username and password. Unknown users, inactive users and wrong
// passwords all fail with model.ErrUnauthorized.
func (s *Service) Authenticate(username, password string) (*model.User, error) {
	u, err := s.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	if u == nil || !u.Active {
		metrics.Logins.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		metrics.Logins.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	metrics.Logins.WithLabelValues("success").Inc()
	slog.Info("user logged in", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// ChangePassword replaces the actor's own password after checking the current one.
func (s *Service) ChangePassword(actor model.Actor, current, next string) error {
	u, err := s.user(actor.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return fmt.Errorf("current password does not match: %w", model.ErrUnauthorized)
	}
	h, err := s.hash(next)
	if err != nil {
		return err
	}
	return s.store.SetUserPassword(u.ID, h)
}

func (s *Service) user(id int64) (*model.User, error) {
	u, err := s.store.GetUserByID(id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return u, nil
}

func (s *Service) department(id int64) (*model.Department, error) {
	d, err := s.store.GetDepartment(id)
	if err != nil {
		return nil, fmt.Errorf("get department %d: %w", id, err)
	}
	if d == nil {
		return nil, fmt.Errorf("department %d: %w", id, model.ErrNotFound)
	}
	return d, nil
}

// ErrSelf is returned when an actor tries to deactivate or delete their own account.
var ErrSelf = errors.New("cannot change own account status")
