package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
)

// ExportResults builds export-ready results for one exam, or for every exam when examID is 0.
func (s *Store) ExportResults(examID int64) (*model.ResultsExport, error) {
	var exams []model.Exam
	if examID != 0 {
		e, err := s.GetExam(examID)
		if err != nil {
			return nil, fmt.Errorf("get exam %d: %w", examID, err)
		}
		if e == nil {
			return nil, fmt.Errorf("exam %d: %w", examID, model.ErrNotFound)
		}
		exams = append(exams, *e)
	} else {
		var err error
		exams, err = s.ListExams(ExamFilter{})
		if err != nil {
			return nil, fmt.Errorf("list exams: %w", err)
		}
	}

	// Users and departments repeat across exams.
	users := make(map[int64]*model.User)
	lookupUser := func(id int64) (*model.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := s.GetUserByID(id)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", id, err)
		}
		users[id] = u
		return u, nil
	}
	depts := make(map[int64]string)

	out := &model.ResultsExport{ExportedAt: time.Now()}
	for _, e := range exams {
		if _, ok := depts[e.DepartmentID]; !ok {
			d, err := s.GetDepartment(e.DepartmentID)
			if err != nil {
				return nil, fmt.Errorf("get department %d: %w", e.DepartmentID, err)
			}
			if d != nil {
				depts[e.DepartmentID] = d.Name
			}
		}
		faculty, err := lookupUser(e.FacultyID)
		if err != nil {
			return nil, err
		}

		ee := model.ExamExport{
			ExamID:         e.ID,
			Title:          e.Title,
			Department:     depts[e.DepartmentID],
			ExamType:       e.ExamType,
			TotalQuestions: e.TotalQuestions,
			StartTime:      e.StartTime,
			EndTime:        e.EndTime,
			Results:        []model.StudentResult{},
		}
		if faculty != nil {
			ee.Faculty = faculty.DisplayName()
		}

		results, err := s.ListResultsByExam(e.ID)
		if err != nil {
			return nil, fmt.Errorf("list results for exam %d: %w", e.ID, err)
		}
		for _, r := range results {
			student, err := lookupUser(r.StudentID)
			if err != nil {
				return nil, err
			}
			sr := model.StudentResult{
				Score:       r.Score,
				Total:       r.TotalQuestions,
				Percentage:  r.Percentage,
				Grade:       r.Grade(),
				TimeTaken:   r.TimeTaken,
				SubmittedAt: r.SubmittedAt,
			}
			if student != nil {
				sr.Username = student.Username
				sr.ExternalID = student.ExternalID
				sr.DisplayName = student.DisplayName()
			}
			ee.Results = append(ee.Results, sr)
		}
		out.Exams = append(out.Exams, ee)
	}
	return out, nil
}
