package generate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Validator validates raw provider output into a typed value. The
// caller supplies one per request; the orchestrator treats a rejection
// as non-transient.
type Validator[T any] interface {
	Validate(raw string) (T, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc[T any] func(raw string) (T, error)

func (f ValidatorFunc[T]) Validate(raw string) (T, error) { return f(raw) }

// JSONValidator returns a Validator that strictly decodes the
// completion as JSON into T, rejecting unknown fields. Markdown code
// fences around the payload are tolerated since some models wrap JSON
// despite instructions.
func JSONValidator[T any]() Validator[T] {
	return ValidatorFunc[T](func(raw string) (T, error) {
		var out T
		dec := json.NewDecoder(bytes.NewReader([]byte(StripCodeFence(raw))))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return out, fmt.Errorf("invalid JSON payload: %w", err)
		}
		return out, nil
	})
}

// StripCodeFence removes a single wrapping markdown code fence
// (``` or ```json) from a completion, if present.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
