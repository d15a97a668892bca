package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
)

const examColumns = `id, title, description, faculty_id, department_id, total_questions, time_limit,
	start_time, end_time, is_active, exam_type, created_at`

func scanExam(row interface{ Scan(...any) error }) (model.Exam, error) {
	var e model.Exam
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.FacultyID, &e.DepartmentID, &e.TotalQuestions,
		&e.TimeLimit, &e.StartTime, &e.EndTime, &e.IsActive, &e.ExamType, &e.CreatedAt)
	return e, err
}

// ExamFilter narrows ListExams. Zero values mean no filtering on that field.
type ExamFilter struct {
	FacultyID    int64
	DepartmentID int64
	ActiveOnly   bool
}

// CreateExam inserts an exam.
func (s *Store) CreateExam(e model.Exam) (int64, error) {
	return s.insert(s.db,
		`INSERT INTO exams (title, description, faculty_id, department_id, total_questions, time_limit,
			start_time, end_time, is_active, exam_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.FacultyID, e.DepartmentID, e.TotalQuestions, e.TimeLimit,
		e.StartTime, e.EndTime, e.IsActive, e.ExamType, time.Now(),
	)
}

// UpdateExam saves the editable fields of an exam.
func (s *Store) UpdateExam(e model.Exam) error {
	_, err := s.exec(s.db,
		`UPDATE exams SET title = ?, description = ?, time_limit = ?, start_time = ?, end_time = ?,
			total_questions = ?
		 WHERE id = ?`,
		e.Title, e.Description, e.TimeLimit, e.StartTime, e.EndTime, e.TotalQuestions, e.ID,
	)
	return err
}

// SetExamTotalQuestions overwrites the declared question count.
func (s *Store) SetExamTotalQuestions(id int64, n int) error {
	_, err := s.exec(s.db, `UPDATE exams SET total_questions = ? WHERE id = ?`, n, id)
	return err
}

// ToggleExamActive flips the is_active flag on an exam.
func (s *Store) ToggleExamActive(id int64) error {
	_, err := s.exec(s.db, `UPDATE exams SET is_active = NOT is_active WHERE id = ?`, id)
	return err
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(id int64) (*model.Exam, error) {
	e, err := scanExam(s.queryRow(s.db, `SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExams returns exams matching f, newest first.
func (s *Store) ListExams(f ExamFilter) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE 1=1`
	var args []any
	if f.FacultyID != 0 {
		query += ` AND faculty_id = ?`
		args = append(args, f.FacultyID)
	}
	if f.DepartmentID != 0 {
		query += ` AND department_id = ?`
		args = append(args, f.DepartmentID)
	}
	if f.ActiveOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := s.query(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// DeleteExam removes an exam with its questions, results and import records in
// one transaction.
func (s *Store) DeleteExam(id int64) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM exam_results WHERE exam_id = ?`,
			`DELETE FROM questions WHERE exam_id = ?`,
			`DELETE FROM imported_files WHERE exam_id = ?`,
			`DELETE FROM exams WHERE id = ?`,
		} {
			if _, err := s.exec(tx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}
