package model

import "time"

// ResultsExport is the top-level JSON structure for exam result export.
type ResultsExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Exams      []ExamExport `json:"exams"`
}

// ExamExport holds one exam and every submitted result for it.
type ExamExport struct {
	ExamID         int64           `json:"exam_id"`
	Title          string          `json:"title"`
	Department     string          `json:"department"`
	Faculty        string          `json:"faculty"`
	ExamType       ExamType        `json:"exam_type"`
	TotalQuestions int             `json:"total_questions"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	Results        []StudentResult `json:"results"`
}

// StudentResult holds one student's graded submission for export.
type StudentResult struct {
	Username    string    `json:"username"`
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Percentage  float64   `json:"percentage"`
	Grade       string    `json:"grade"`
	TimeTaken   int       `json:"time_taken"`
	SubmittedAt time.Time `json:"submitted_at"`
}
