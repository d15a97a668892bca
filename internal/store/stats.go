package store

import (
	"database/sql"
	"math"

	"github.com/pavelanni/exammgr/internal/model"
)

// DepartmentPerformance aggregates result statistics over the exams of one department.
// Averages are rounded to two decimals; a department without results reports zeros.
func (s *Store) DepartmentPerformance(d model.Department) (model.DepartmentPerformance, error) {
	p := model.DepartmentPerformance{Department: d}
	if err := s.queryRow(s.db,
		`SELECT COUNT(*) FROM users WHERE role = ? AND department_id = ?`, model.RoleStudent, d.ID,
	).Scan(&p.StudentCount); err != nil {
		return p, err
	}

	var avg sql.NullFloat64
	var passed sql.NullInt64
	if err := s.queryRow(s.db,
		`SELECT COUNT(*), AVG(r.percentage), SUM(CASE WHEN r.percentage >= ? THEN 1 ELSE 0 END)
		 FROM exam_results r JOIN exams e ON e.id = r.exam_id
		 WHERE e.department_id = ?`, model.PassMark, d.ID,
	).Scan(&p.ResultCount, &avg, &passed); err != nil {
		return p, err
	}
	if p.ResultCount > 0 {
		p.AverageScore = round2(avg.Float64)
		p.PassRate = round2(float64(passed.Int64) / float64(p.ResultCount) * 100)
	}
	return p, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
