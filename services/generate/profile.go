package generate

import (
	"time"

	"github.com/stacksos/aicore/pkg/config"
)

// RetryProfile holds the timeout and retry tuning resolved for one
// call. Derived once per invocation and never mutated.
type RetryProfile struct {
	// Timeout bounds the first attempt.
	Timeout time.Duration
	// MaxAttempts is the attempt budget for the first model in the
	// plan. Fallback models get FallbackAttempts instead.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
	// RetryTimeout bounds attempts after the first. Retries get a
	// longer budget than the first attempt because upstream latency
	// variance is the dominant transient-failure cause.
	RetryTimeout time.Duration
}

// TierOverrides carries optional per-tier tuning. Zero values mean
// "not set"; everything is clamped at resolution time so a bad value
// cannot cause retry storms or zero backoff.
type TierOverrides struct {
	Timeout      time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
	RetryTimeout time.Duration
}

// Tuning is the immutable tuning table consulted by the resolvers.
// Tests supply their own; production code uses LoadTuning.
type Tuning struct {
	// InteractiveClasses is the set of call classifications considered
	// latency-sensitive and user-facing.
	InteractiveClasses map[string]bool

	Shared      TierOverrides
	Interactive TierOverrides

	// FallbackAttempts is the attempt budget for each fallback model.
	FallbackAttempts int
}

// DefaultInteractiveClasses returns the built-in interactive tier tags.
func DefaultInteractiveClasses() map[string]bool {
	return map[string]bool{
		"copilot":       true,
		"ask_librarian": true,
	}
}

// DefaultTuning returns tuning with built-in defaults and no overrides.
func DefaultTuning() Tuning {
	return Tuning{InteractiveClasses: DefaultInteractiveClasses()}
}

// LoadTuning reads tuning overrides from the environment. Non-numeric
// values fall back to "unset"; clamping happens in the resolver.
func LoadTuning() Tuning {
	return Tuning{
		InteractiveClasses: DefaultInteractiveClasses(),
		Shared: TierOverrides{
			Timeout:      time.Duration(config.EnvInt("STACKSOS_AI_TIMEOUT_MS", 0)) * time.Millisecond,
			MaxAttempts:  config.EnvInt("STACKSOS_AI_RETRY_ATTEMPTS", 0),
			BaseDelay:    time.Duration(config.EnvInt("STACKSOS_AI_RETRY_BASE_DELAY_MS", 0)) * time.Millisecond,
			RetryTimeout: time.Duration(config.EnvInt("STACKSOS_AI_RETRY_TIMEOUT_MS", 0)) * time.Millisecond,
		},
		Interactive: TierOverrides{
			Timeout:      time.Duration(config.EnvInt("STACKSOS_AI_TIMEOUT_MS_INTERACTIVE", 0)) * time.Millisecond,
			MaxAttempts:  config.EnvInt("STACKSOS_AI_RETRY_ATTEMPTS_INTERACTIVE", 0),
			BaseDelay:    time.Duration(config.EnvInt("STACKSOS_AI_RETRY_BASE_DELAY_MS_INTERACTIVE", 0)) * time.Millisecond,
			RetryTimeout: time.Duration(config.EnvInt("STACKSOS_AI_RETRY_TIMEOUT_MS_INTERACTIVE", 0)) * time.Millisecond,
		},
		FallbackAttempts: config.EnvInt("STACKSOS_AI_FALLBACK_ATTEMPTS", 0),
	}
}

// Hard-coded profile defaults per tier.
const (
	defaultAttemptsInteractive = 3
	defaultAttemptsDefault     = 2

	defaultBaseDelayInteractive = 500 * time.Millisecond
	defaultBaseDelayDefault     = 400 * time.Millisecond

	minAttempts = 1
	maxAttempts = 6

	minBaseDelay = 100 * time.Millisecond
	maxBaseDelay = 5 * time.Second

	maxRetryTimeoutOverride = 60 * time.Second
)

// ResolveRetryProfile derives the retry profile for a call
// classification. Unknown classifications get default-tier tuning.
func ResolveRetryProfile(callType string, cfg RuntimeConfig, tuning Tuning) RetryProfile {
	interactive := tuning.InteractiveClasses[callType]

	tier := tuning.Shared
	if interactive {
		tier = merged(tuning.Interactive, tuning.Shared)
	}

	attempts := tier.MaxAttempts
	if attempts == 0 {
		if interactive {
			attempts = defaultAttemptsInteractive
		} else {
			attempts = defaultAttemptsDefault
		}
	}
	attempts = clampInt(attempts, minAttempts, maxAttempts)

	baseDelay := tier.BaseDelay
	if baseDelay == 0 {
		if interactive {
			baseDelay = defaultBaseDelayInteractive
		} else {
			baseDelay = defaultBaseDelayDefault
		}
	}
	baseDelay = clampDuration(baseDelay, minBaseDelay, maxBaseDelay)

	timeout := tier.Timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	timeout = clampDuration(timeout, time.Second, 60*time.Second)

	return RetryProfile{
		Timeout:      timeout,
		MaxAttempts:  attempts,
		BaseDelay:    baseDelay,
		RetryTimeout: resolveRetryTimeout(tier.RetryTimeout, timeout, interactive),
	}
}

// resolveRetryTimeout picks the timeout applied to attempts after the
// first: an explicit positive override is used verbatim (capped),
// otherwise it is derived from the base timeout with extra slack for
// interactive calls, whose users have already committed to waiting.
func resolveRetryTimeout(override, timeout time.Duration, interactive bool) time.Duration {
	if override > 0 {
		return clampDuration(override, 0, maxRetryTimeoutOverride)
	}

	if interactive {
		derived := time.Duration(float64(timeout) * 2.35)
		return clampDuration(derived, 14*time.Second, 55*time.Second)
	}
	derived := time.Duration(float64(timeout) * 1.5)
	return clampDuration(derived, 8*time.Second, 20*time.Second)
}

// ResolveFallbackAttempts resolves the per-model attempt budget for fallback
// plan slots. Fallback models are a last resort, not a second full
// retry cycle.
func (t Tuning) ResolveFallbackAttempts() int {
	if t.FallbackAttempts == 0 {
		return 1
	}
	return clampInt(t.FallbackAttempts, 1, 2)
}

// merged returns tier overrides where unset interactive fields fall
// back to the shared override.
func merged(tier, shared TierOverrides) TierOverrides {
	if tier.Timeout == 0 {
		tier.Timeout = shared.Timeout
	}
	if tier.MaxAttempts == 0 {
		tier.MaxAttempts = shared.MaxAttempts
	}
	if tier.BaseDelay == 0 {
		tier.BaseDelay = shared.BaseDelay
	}
	if tier.RetryTimeout == 0 {
		tier.RetryTimeout = shared.RetryTimeout
	}
	return tier
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
