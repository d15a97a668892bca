package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/exammgr/internal/model"
)

const resultColumns = `id, exam_id, student_id, score, total_questions, percentage, submitted_at,
	time_taken, answers`

func scanResult(row interface{ Scan(...any) error }) (model.ExamResult, error) {
	var r model.ExamResult
	err := row.Scan(&r.ID, &r.ExamID, &r.StudentID, &r.Score, &r.TotalQuestions, &r.Percentage,
		&r.SubmittedAt, &r.TimeTaken, &r.Answers)
	return r, err
}

// InsertResult stores a graded submission. If the student already has a result for
// the exam, nothing is written and the error wraps model.ErrDuplicateAttempt. The
// existence check is a fast path; the UNIQUE(exam_id, student_id) constraint is what
// rejects concurrent submissions.
func (s *Store) InsertResult(r model.ExamResult) (int64, error) {
	var id int64
	err := s.inTx(func(tx *sql.Tx) error {
		var n int
		if err := s.queryRow(tx,
			`SELECT COUNT(*) FROM exam_results WHERE exam_id = ? AND student_id = ?`,
			r.ExamID, r.StudentID,
		).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return model.ErrDuplicateAttempt
		}
		var err error
		id, err = s.insert(tx,
			`INSERT INTO exam_results (exam_id, student_id, score, total_questions, percentage,
				submitted_at, time_taken, answers)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ExamID, r.StudentID, r.Score, r.TotalQuestions, r.Percentage,
			r.SubmittedAt, r.TimeTaken, r.Answers,
		)
		return err
	})
	if errors.Is(err, model.ErrDuplicateAttempt) || isUniqueViolation(err) {
		slog.Warn("duplicate submission rejected", "exam_id", r.ExamID, "student_id", r.StudentID)
		return 0, fmt.Errorf("exam %d, student %d: %w", r.ExamID, r.StudentID, model.ErrDuplicateAttempt)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetResult returns a result by ID.
func (s *Store) GetResult(id int64) (*model.ExamResult, error) {
	r, err := scanResult(s.queryRow(s.db, `SELECT `+resultColumns+` FROM exam_results WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// HasResult reports whether the student already has a result for the exam.
func (s *Store) HasResult(examID, studentID int64) (bool, error) {
	var n int
	err := s.queryRow(s.db,
		`SELECT COUNT(*) FROM exam_results WHERE exam_id = ? AND student_id = ?`, examID, studentID,
	).Scan(&n)
	return n > 0, err
}

// ListResultsByExam returns the results of an exam, highest score first.
func (s *Store) ListResultsByExam(examID int64) ([]model.ExamResult, error) {
	return s.listResults(
		`SELECT `+resultColumns+` FROM exam_results WHERE exam_id = ?
		 ORDER BY score DESC, submitted_at`, examID)
}

// ListResultsByStudent returns a student's results, newest first.
func (s *Store) ListResultsByStudent(studentID int64) ([]model.ExamResult, error) {
	return s.listResults(
		`SELECT `+resultColumns+` FROM exam_results WHERE student_id = ?
		 ORDER BY submitted_at DESC, id DESC`, studentID)
}

func (s *Store) listResults(query string, args ...any) ([]model.ExamResult, error) {
	rows, err := s.query(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ExamResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// StudentSummaries aggregates results per student over the exams of one faculty member.
func (s *Store) StudentSummaries(facultyID int64) ([]model.StudentSummary, error) {
	rows, err := s.query(s.db,
		`SELECT r.student_id, COUNT(*), AVG(r.percentage), MAX(r.percentage)
		 FROM exam_results r JOIN exams e ON e.id = r.exam_id
		 WHERE e.faculty_id = ?
		 GROUP BY r.student_id
		 ORDER BY r.student_id`, facultyID)
	if err != nil {
		return nil, err
	}
	type agg struct {
		studentID int64
		taken     int
		avg, best float64
	}
	var aggs []agg
	for rows.Next() {
		var a agg
		if err := rows.Scan(&a.studentID, &a.taken, &a.avg, &a.best); err != nil {
			rows.Close()
			return nil, err
		}
		aggs = append(aggs, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summaries := make([]model.StudentSummary, 0, len(aggs))
	for _, a := range aggs {
		u, err := s.GetUserByID(a.studentID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", a.studentID, err)
		}
		if u == nil {
			continue
		}
		summaries = append(summaries, model.StudentSummary{
			Student:      *u,
			ExamsTaken:   a.taken,
			AverageScore: a.avg,
			BestScore:    a.best,
		})
	}
	return summaries, nil
}
