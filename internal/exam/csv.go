package exam

import (
	"fmt"
	"strings"

	"github.com/pavelanni/exammgr/internal/model"
)

// minDelimitedFields is question, four options and the correct answer.
const minDelimitedFields = 6

// RowError describes a skipped line of delimited input. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ParseDelimited reads comma-separated question rows:
//
//	question,optionA,optionB,optionC,optionD,correctAnswer[,explanation]
//
// The first line is a header and is skipped, as are blank lines. Double quotes are
// removed from every field and fields are trimmed; there is no escaping, so a field
// cannot contain a comma. Trailing blank fields are dropped before counting. Rows
// with fewer than six fields, or with a blank question, option or answer, are
// returned as RowErrors.
func ParseDelimited(raw string) ([]model.QuestionDraft, []RowError) {
	var drafts []model.QuestionDraft
	var skipped []RowError
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := trimTrailingEmpty(strings.Split(line, ","))
		if len(fields) < minDelimitedFields {
			skipped = append(skipped, RowError{
				Line: i + 1,
				Err:  fmt.Errorf("%d fields, need at least %d: %w", len(fields), minDelimitedFields, model.ErrValidation),
			})
			continue
		}
		d := model.QuestionDraft{
			QuestionText:  cleanField(fields[0]),
			OptionA:       cleanField(fields[1]),
			OptionB:       cleanField(fields[2]),
			OptionC:       cleanField(fields[3]),
			OptionD:       cleanField(fields[4]),
			CorrectAnswer: cleanField(fields[5]),
		}
		if len(fields) > minDelimitedFields {
			d.Explanation = cleanField(fields[6])
		}
		if !d.Complete() {
			skipped = append(skipped, RowError{
				Line: i + 1,
				Err:  fmt.Errorf("blank question text, option or answer: %w", model.ErrValidation),
			})
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, skipped
}

// trimTrailingEmpty drops blank fields from the end of a row.
func trimTrailingEmpty(fields []string) []string {
	for len(fields) > 0 && cleanField(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
