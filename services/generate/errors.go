package generate

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError means the feature is disabled or misconfigured.
// It fails fast and is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "ai configuration error: " + e.Reason
}

// BudgetExceededError is raised by the admission gate when a usage
// ceiling is exhausted. It propagates verbatim before any provider
// call.
type BudgetExceededError struct {
	Tenant  string
	Ceiling string // "calls_per_hour" or "usd_per_day"
	Limit   float64
	Used    float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("ai budget exceeded for tenant %q: %s limit %g reached (used %g)",
		e.Tenant, e.Ceiling, e.Limit, e.Used)
}

// SchemaValidationError means the provider returned text that failed
// structured validation. Treated as non-transient: a prompt/model
// pairing that cannot satisfy the schema once is unlikely to on retry.
type SchemaValidationError struct {
	Model string
	Err   error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("completion failed schema validation: %v", e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// transientPhrases are matched case-insensitively against the error
// message. The list is intentionally conservative: a retryable error
// misread as fatal is safer than burning the retry budget on a request
// that will deterministically fail again.
var transientPhrases = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"aborted",
	"network",
	"connection reset",
	"connection refused",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"overloaded",
}

// IsTransient reports whether err is likely to succeed on retry.
// Typed configuration, budget, and schema errors are always
// non-transient regardless of their message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var cfgErr *ConfigurationError
	var budgetErr *BudgetExceededError
	var schemaErr *SchemaValidationError
	if errors.As(err, &cfgErr) || errors.As(err, &budgetErr) || errors.As(err, &schemaErr) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
