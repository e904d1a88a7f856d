package synthesis

import (
	"encoding/json"
	"fmt"

	"github.com/hyperjump/kangae/internal/models"
)

var requiredKeys = []string{"themes", "connections", "questions"}

// Validate parses candidate and checks it is an object with exactly the keys themes,
// connections and questions, each an array of exactly three strings.
func Validate(candidate string) (*models.SynthesisResult, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("not a JSON object: %v", err))
	}
	if obj == nil {
		return nil, models.NewValidationError("not a JSON object")
	}
	if len(obj) != len(requiredKeys) {
		return nil, models.NewValidationError(fmt.Sprintf("expected %d keys, got %d", len(requiredKeys), len(obj)))
	}

	arrays := make(map[string][]string, len(requiredKeys))
	for _, key := range requiredKeys {
		raw, ok := obj[key]
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("missing key %q", key))
		}
		values, err := stringTriple(raw)
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("%s: %v", key, err))
		}
		arrays[key] = values
	}

	return &models.SynthesisResult{
		Themes:      arrays["themes"],
		Connections: arrays["connections"],
		Questions:   arrays["questions"],
	}, nil
}

func stringTriple(raw json.RawMessage) ([]string, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, fmt.Errorf("not an array")
	}
	if len(entries) != models.SynthesisArity {
		return nil, fmt.Errorf("expected %d entries, got %d", models.SynthesisArity, len(entries))
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		if err := json.Unmarshal(e, &out[i]); err != nil || string(e) == "null" {
			return nil, fmt.Errorf("entry %d is not a string", i)
		}
	}
	return out, nil
}
