// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"intake-bot/internal/models"
)

func LoadRegistry(path string) (*QuestionRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg QuestionRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse question registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadQuestions returns the configured question set, or the defaults when path is empty.
func LoadQuestions(path string) (models.QuestionSet, error) {
	if path == "" {
		return DefaultQuestions(), nil
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	qs := models.QuestionSet(reg.Questions)
	for i := range qs {
		qs[i].OrderIndex = i
	}
	if err := Validate(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// Validate checks codes are unique and length bounds are coherent.
func Validate(qs models.QuestionSet) error {
	if len(qs) == 0 {
		return fmt.Errorf("question set is empty")
	}
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if q.Code == "" {
			return fmt.Errorf("question at index %d has no code", q.OrderIndex)
		}
		if seen[q.Code] {
			return fmt.Errorf("duplicate question code %q", q.Code)
		}
		seen[q.Code] = true

		if q.Type != models.QuestionShort && q.Type != models.QuestionLong {
			return fmt.Errorf("question %q has unknown type %q", q.Code, q.Type)
		}
		if q.MinLen < 0 || (q.MaxLen > 0 && q.MinLen > q.MaxLen) {
			return fmt.Errorf("question %q has invalid length bounds %d..%d", q.Code, q.MinLen, q.MaxLen)
		}
	}
	return nil
}
