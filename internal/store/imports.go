package store

import (
	"database/sql"
	"time"
)

// ImportedFile records a delimited-text file already loaded into an exam by the
// import command. The same file may be imported once into each exam.
type ImportedFile struct {
	Hash          string
	Filename      string
	ExamID        int64
	QuestionCount int
	ImportedAt    time.Time
}

// GetImportedFile returns the import record for a content hash and exam, or nil.
func (s *Store) GetImportedFile(hash string, examID int64) (*ImportedFile, error) {
	var f ImportedFile
	err := s.queryRow(s.db,
		`SELECT hash, filename, exam_id, question_count, imported_at FROM imported_files
		 WHERE hash = ? AND exam_id = ?`, hash, examID,
	).Scan(&f.Hash, &f.Filename, &f.ExamID, &f.QuestionCount, &f.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// RecordImportedFile upserts the import record for a content hash and exam.
func (s *Store) RecordImportedFile(f ImportedFile) error {
	_, err := s.exec(s.db,
		`INSERT INTO imported_files (hash, filename, exam_id, question_count, imported_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(hash, exam_id) DO UPDATE SET filename = excluded.filename,
			question_count = excluded.question_count, imported_at = excluded.imported_at`,
		f.Hash, f.Filename, f.ExamID, f.QuestionCount, time.Now(),
	)
	return err
}
