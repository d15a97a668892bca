package directory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/exammgr/internal/model"
)

// EssentialDepartments are created on first start when no department exists.
var EssentialDepartments = []model.Department{
	{Name: "Computer Science", Code: "CS", Description: "Computer Science and Engineering"},
	{Name: "Electronics and Communication", Code: "ECE", Description: "Electronics and Communication Engineering"},
	{Name: "Mechanical Engineering", Code: "ME", Description: "Mechanical Engineering"},
	{Name: "Civil Engineering", Code: "CE", Description: "Civil Engineering"},
	{Name: "Mathematics", Code: "MATH", Description: "Mathematics and Statistics"},
}

func normalizeDepartment(d model.Department) (model.Department, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	d.Description = strings.TrimSpace(d.Description)
	if d.Name == "" || d.Code == "" {
		return d, fmt.Errorf("department name and code are required: %w", model.ErrValidation)
	}
	return d, nil
}

func requireDepartmentAdmin(actor model.Actor) error {
	if !actor.Can(model.CapManageDepartments) {
		return fmt.Errorf("role %s cannot manage departments: %w", actor.Role, model.ErrUnauthorized)
	}
	return nil
}

// CreateDepartment adds a department. Codes are stored upper case.
func (s *Service) CreateDepartment(actor model.Actor, d model.Department) (*model.Department, error) {
	if err := requireDepartmentAdmin(actor); err != nil {
		return nil, err
	}
	d, err := normalizeDepartment(d)
	if err != nil {
		return nil, err
	}
	id, err := s.store.CreateDepartment(d)
	if err != nil {
		return nil, err
	}
	return s.department(id)
}

// UpdateDepartment changes a department's name, code and description.
func (s *Service) UpdateDepartment(actor model.Actor, d model.Department) (*model.Department, error) {
	if err := requireDepartmentAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.department(d.ID); err != nil {
		return nil, err
	}
	d, err := normalizeDepartment(d)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateDepartment(d); err != nil {
		return nil, err
	}
	return s.department(d.ID)
}

// SetDepartmentActive activates or deactivates a department. Departments are never deleted.
func (s *Service) SetDepartmentActive(actor model.Actor, id int64, active bool) error {
	if err := requireDepartmentAdmin(actor); err != nil {
		return err
	}
	if _, err := s.department(id); err != nil {
		return err
	}
	if err := s.store.SetDepartmentActive(id, active); err != nil {
		return fmt.Errorf("set department %d active=%v: %w", id, active, err)
	}
	slog.Info("department status changed", "id", id, "active", active, "by", actor.ID)
	return nil
}

// GetDepartment returns a department by ID.
func (s *Service) GetDepartment(id int64) (*model.Department, error) {
	return s.department(id)
}

// ListDepartments returns all departments, or only active ones.
func (s *Service) ListDepartments(activeOnly bool) ([]model.Department, error) {
	return s.store.ListDepartments(activeOnly)
}

// SeedDepartments creates EssentialDepartments when the table is empty and reports
// how many were created.
func (s *Service) SeedDepartments() (int, error) {
	n, err := s.store.DepartmentCount()
	if err != nil {
		return 0, fmt.Errorf("count departments: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	created := 0
	for _, d := range EssentialDepartments {
		if _, err := s.store.CreateDepartment(d); err != nil {
			return created, fmt.Errorf("seed department %s: %w", d.Code, err)
		}
		created++
	}
	slog.Info("seeded departments", "count", created)
	return created, nil
}
