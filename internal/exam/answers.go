package exam

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pavelanni/exammgr/internal/model"
)

// AnswerKeyPrefix prefixes question IDs in a submission payload.
const AnswerKeyPrefix = "question_"

// EncodeAnswers serializes a question ID to letter map into the stored answers text.
func EncodeAnswers(answers map[int64]string) (string, error) {
	m := make(map[string]string, len(answers))
	for id, letter := range answers {
		m[strconv.FormatInt(id, 10)] = letter
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(b), nil
}

// DecodeAnswers parses stored answers text. Keys that are not integer question IDs are skipped.
// An empty string decodes to an empty map.
func DecodeAnswers(s string) (map[int64]string, error) {
	out := make(map[int64]string)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return out, fmt.Errorf("decode answers: %v: %w", err, model.ErrValidation)
	}
	for k, v := range m {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}

// ParseSubmission extracts answers from form-style fields keyed "question_<id>".
// Fields with any other key, or a non-integer id, are ignored.
func ParseSubmission(fields map[string]string) map[int64]string {
	out := make(map[int64]string)
	for k, v := range fields {
		rest, ok := strings.CutPrefix(k, AnswerKeyPrefix)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}
