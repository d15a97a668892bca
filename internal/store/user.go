package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
)

const userColumns = `id, username, password_hash, first_name, last_name, email, role,
	department_id, external_id, active, created_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var dept sql.NullInt64
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email,
		&u.Role, &dept, &u.ExternalID, &u.Active, &u.CreatedAt)
	u.DepartmentID = scanNullableID(dept)
	return u, err
}

// UserFilter narrows ListUsers. Zero values mean no filtering on that field.
type UserFilter struct {
	Role         model.Role
	DepartmentID int64
}

// CreateUser inserts a new user. A duplicate username is a validation error.
func (s *Store) CreateUser(u model.User) (int64, error) {
	id, err := s.insert(s.db,
		`INSERT INTO users (username, password_hash, first_name, last_name, email, role,
			department_id, external_id, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Email, u.Role,
		nullableID(u.DepartmentID), u.ExternalID, u.Active, time.Now(),
	)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("username %q already exists: %w", u.Username, model.ErrValidation)
	}
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	u, err := scanUser(s.queryRow(s.db,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	u, err := scanUser(s.queryRow(s.db,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns users matching f, ordered by ID.
func (s *Store) ListUsers(f UserFilter) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []any
	if f.Role != "" {
		query += ` AND role = ?`
		args = append(args, f.Role)
	}
	if f.DepartmentID != 0 {
		query += ` AND department_id = ?`
		args = append(args, f.DepartmentID)
	}
	query += ` ORDER BY id`
	rows, err := s.query(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser changes the profile fields of a user. Role and username are immutable.
func (s *Store) UpdateUser(u model.User) error {
	_, err := s.exec(s.db,
		`UPDATE users SET first_name = ?, last_name = ?, email = ?, department_id = ?, external_id = ?
		 WHERE id = ?`,
		u.FirstName, u.LastName, u.Email, nullableID(u.DepartmentID), u.ExternalID, u.ID,
	)
	return err
}

// SetUserPassword replaces a user's password hash.
func (s *Store) SetUserPassword(id int64, hash string) error {
	_, err := s.exec(s.db, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	return err
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(id int64) error {
	_, err := s.exec(s.db, `UPDATE users SET active = NOT active WHERE id = ?`, id)
	return err
}

// DeleteUser removes a user and their login sessions.
func (s *Store) DeleteUser(id int64) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := s.exec(tx, `DELETE FROM auth_sessions WHERE user_id = ?`, id); err != nil {
			return err
		}
		_, err := s.exec(tx, `DELETE FROM users WHERE id = ?`, id)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %d still owns exams or results: %w", id, model.ErrInvalidState)
		}
		return err
	})
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.queryRow(s.db, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
