// Package generate implements the completion orchestration core: budget
// admission, retryable provider invocation with multi-model fallback,
// and redacted outcome telemetry.
package generate

import (
	"context"
	"time"
)

// ProviderID identifies an upstream completion provider.
type ProviderID string

const (
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOpenAI    ProviderID = "openai"
)

// SafetyMode controls how aggressively prompts are constrained.
type SafetyMode string

const (
	SafetyStrict   SafetyMode = "strict"
	SafetyBalanced SafetyMode = "balanced"
	SafetyOff      SafetyMode = "off"
)

// Budgets holds per-tenant usage ceilings. A zero or negative ceiling
// disables that check.
type Budgets struct {
	MaxCallsPerHour int     `yaml:"max_calls_per_hour"`
	MaxUSDPerDay    float64 `yaml:"max_usd_per_day"`
}

// RuntimeConfig is the resolved configuration for one call. It is
// derived fresh per invocation and never mutated afterward.
type RuntimeConfig struct {
	Enabled        bool       `yaml:"enabled"`
	Tenant         string     `yaml:"tenant"`
	Provider       ProviderID `yaml:"provider"`
	Model          string     `yaml:"model"`
	FallbackModels []string   `yaml:"fallback_models"`
	MaxTokens      int        `yaml:"max_tokens"`
	Temperature    float64    `yaml:"temperature"`
	SafetyMode     SafetyMode `yaml:"safety_mode"`
	Timeout        time.Duration
	Budgets        Budgets `yaml:"budgets"`
}

// ConfigSource resolves the runtime configuration for a call. Loading
// happens once per call so tenant changes take effect without restarts.
type ConfigSource interface {
	RuntimeConfig(ctx context.Context) (RuntimeConfig, error)
}

// StaticConfig is a ConfigSource that always returns the same config.
type StaticConfig RuntimeConfig

func (s StaticConfig) RuntimeConfig(ctx context.Context) (RuntimeConfig, error) {
	return RuntimeConfig(s), nil
}

// Usage contains token usage and cost for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// Completion is a provider's successful output. Ownership transfers to
// the caller; the orchestrator never caches it.
type Completion struct {
	Text      string
	Provider  ProviderID
	Model     string
	RequestID string
	Usage     Usage
}

// Request describes one generation call.
type Request struct {
	System string
	User   string

	// CallType selects timeout/retry tuning. Unknown values get the
	// default tier.
	CallType string

	// Audit fields, all optional.
	RequestID        string
	ActorID          string
	IP               string
	UserAgent        string
	PromptTemplateID string
	PromptVersion    string
	Metadata         map[string]any
}

// Result is the outcome of a successful call, including the resolved
// config so callers can see which provider and model actually served
// the request.
type Result struct {
	Data       any
	Completion *Completion
	Config     RuntimeConfig
}

// TypedResult is Result with the validated payload carried as T.
type TypedResult[T any] struct {
	Data       T
	Completion *Completion
	Config     RuntimeConfig
}
