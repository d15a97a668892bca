package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
)

const departmentColumns = `id, name, code, description, active, created_at`

func scanDepartment(row interface{ Scan(...any) error }) (model.Department, error) {
	var d model.Department
	err := row.Scan(&d.ID, &d.Name, &d.Code, &d.Description, &d.Active, &d.CreatedAt)
	return d, err
}

// CreateDepartment inserts a department. A duplicate name or code is a validation error.
func (s *Store) CreateDepartment(d model.Department) (int64, error) {
	id, err := s.insert(s.db,
		`INSERT INTO departments (name, code, description, active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.Name, d.Code, d.Description, true, time.Now(),
	)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("department %q (%s) already exists: %w", d.Name, d.Code, model.ErrValidation)
	}
	if err != nil {
		return 0, err
	}
	slog.Info("created department", "id", id, "code", d.Code)
	return id, nil
}

// UpdateDepartment changes name, code and description.
func (s *Store) UpdateDepartment(d model.Department) error {
	_, err := s.exec(s.db,
		`UPDATE departments SET name = ?, code = ?, description = ? WHERE id = ?`,
		d.Name, d.Code, d.Description, d.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("department %q (%s) already exists: %w", d.Name, d.Code, model.ErrValidation)
	}
	return err
}

// SetDepartmentActive activates or deactivates a department.
func (s *Store) SetDepartmentActive(id int64, active bool) error {
	_, err := s.exec(s.db, `UPDATE departments SET active = ? WHERE id = ?`, active, id)
	return err
}

// GetDepartment returns a department by ID.
func (s *Store) GetDepartment(id int64) (*model.Department, error) {
	d, err := scanDepartment(s.queryRow(s.db,
		`SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDepartmentByCode returns a department by its short code.
func (s *Store) GetDepartmentByCode(code string) (*model.Department, error) {
	d, err := scanDepartment(s.queryRow(s.db,
		`SELECT `+departmentColumns+` FROM departments WHERE code = ?`, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDepartments returns departments ordered by name.
func (s *Store) ListDepartments(activeOnly bool) ([]model.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments`
	var args []any
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name`
	rows, err := s.query(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var depts []model.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

// DepartmentCount returns the total number of departments.
func (s *Store) DepartmentCount() (int, error) {
	var count int
	err := s.queryRow(s.db, `SELECT COUNT(*) FROM departments`).Scan(&count)
	return count, err
}
