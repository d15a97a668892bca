package store

import (
	"database/sql"

	"github.com/pavelanni/exammgr/internal/model"
)

const questionColumns = `id, exam_id, question_text, option_a, option_b, option_c, option_d,
	correct_answer, explanation, question_number`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	err := row.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
		&q.CorrectAnswer, &q.Explanation, &q.QuestionNumber)
	return q, err
}

// InsertQuestions appends qs to an exam. Numbering continues from the exam's current
// question count; the count and the inserts share one transaction. The stored
// questions are returned with IDs and numbers set.
func (s *Store) InsertQuestions(examID int64, qs []model.Question) ([]model.Question, error) {
	var saved []model.Question
	err := s.inTx(func(tx *sql.Tx) error {
		var err error
		saved, err = s.insertQuestions(tx, examID, qs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ReplaceQuestions removes every question of an exam and stores qs numbered from 1.
func (s *Store) ReplaceQuestions(examID int64, qs []model.Question) ([]model.Question, error) {
	var saved []model.Question
	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := s.exec(tx, `DELETE FROM questions WHERE exam_id = ?`, examID); err != nil {
			return err
		}
		var err error
		saved, err = s.insertQuestions(tx, examID, qs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) insertQuestions(tx *sql.Tx, examID int64, qs []model.Question) ([]model.Question, error) {
	var count int
	if err := s.queryRow(tx, `SELECT COUNT(*) FROM questions WHERE exam_id = ?`, examID).Scan(&count); err != nil {
		return nil, err
	}
	saved := make([]model.Question, 0, len(qs))
	for i, q := range qs {
		q.ExamID = examID
		q.QuestionNumber = count + i + 1
		if q.Explanation == "" {
			q.Explanation = model.DefaultExplanation
		}
		id, err := s.insert(tx,
			`INSERT INTO questions (exam_id, question_text, option_a, option_b, option_c, option_d,
				correct_answer, explanation, question_number)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ExamID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
			q.CorrectAnswer, q.Explanation, q.QuestionNumber,
		)
		if err != nil {
			return nil, err
		}
		q.ID = id
		saved = append(saved, q)
	}
	return saved, nil
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (*model.Question, error) {
	q, err := scanQuestion(s.queryRow(s.db, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuestions returns the questions of an exam ordered by question number.
func (s *Store) ListQuestions(examID int64) ([]model.Question, error) {
	rows, err := s.query(s.db,
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = ? ORDER BY question_number, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of questions stored for an exam.
func (s *Store) QuestionCount(examID int64) (int, error) {
	var count int
	err := s.queryRow(s.db, `SELECT COUNT(*) FROM questions WHERE exam_id = ?`, examID).Scan(&count)
	return count, err
}

// DeleteQuestion removes one question. Remaining questions keep their numbers.
func (s *Store) DeleteQuestion(id int64) error {
	_, err := s.exec(s.db, `DELETE FROM questions WHERE id = ?`, id)
	return err
}
