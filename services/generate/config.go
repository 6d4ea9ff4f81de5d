package generate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacksos/aicore/pkg/config"
)

// tenantConfig is the YAML shape of a tenant's AI settings. Pointer
// fields distinguish "unset" from zero values.
type tenantConfig struct {
	Enabled        *bool    `yaml:"enabled"`
	Tenant         string   `yaml:"tenant"`
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	FallbackModels []string `yaml:"fallback_models"`
	MaxTokens      *int     `yaml:"max_tokens"`
	Temperature    *float64 `yaml:"temperature"`
	SafetyMode     string   `yaml:"safety_mode"`
	TimeoutMs      *int     `yaml:"timeout_ms"`
	Budgets        struct {
		MaxCallsPerHour *int     `yaml:"max_calls_per_hour"`
		MaxUSDPerDay    *float64 `yaml:"max_usd_per_day"`
	} `yaml:"budgets"`
}

// DefaultRuntimeConfig returns the built-in runtime defaults. The
// feature ships disabled; enabling it is an explicit tenant or
// operator decision.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Enabled:     false,
		Tenant:      "default",
		MaxTokens:   1024,
		Temperature: 0.2,
		SafetyMode:  SafetyStrict,
		Timeout:     12 * time.Second,
		Budgets: Budgets{
			MaxCallsPerHour: 120,
			MaxUSDPerDay:    5,
		},
	}
}

// LoadRuntimeConfig resolves the runtime configuration: built-in
// defaults, overlaid by the tenant YAML file (when path is non-empty),
// overlaid by STACKSOS_AI_* environment variables. All numeric values
// are clamped to sane bounds.
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read tenant config: %w", err)
		}
		var tc tenantConfig
		if err := yaml.Unmarshal(data, &tc); err != nil {
			return cfg, fmt.Errorf("failed to parse tenant config: %w", err)
		}
		applyTenantConfig(&cfg, tc)
	}

	applyEnvOverrides(&cfg)
	clampRuntimeConfig(&cfg)
	return cfg, nil
}

// FileConfigSource loads the runtime config from a tenant YAML file on
// every call, so tenant edits take effect without restarts.
type FileConfigSource struct {
	Path string
}

func (s FileConfigSource) RuntimeConfig(ctx context.Context) (RuntimeConfig, error) {
	return LoadRuntimeConfig(s.Path)
}

func applyTenantConfig(cfg *RuntimeConfig, tc tenantConfig) {
	if tc.Enabled != nil {
		cfg.Enabled = *tc.Enabled
	}
	if tc.Tenant != "" {
		cfg.Tenant = tc.Tenant
	}
	if tc.Provider != "" {
		cfg.Provider = ProviderID(tc.Provider)
	}
	if tc.Model != "" {
		cfg.Model = tc.Model
	}
	if len(tc.FallbackModels) > 0 {
		cfg.FallbackModels = tc.FallbackModels
	}
	if tc.MaxTokens != nil {
		cfg.MaxTokens = *tc.MaxTokens
	}
	if tc.Temperature != nil {
		cfg.Temperature = *tc.Temperature
	}
	if tc.SafetyMode != "" {
		cfg.SafetyMode = parseSafetyMode(tc.SafetyMode)
	}
	if tc.TimeoutMs != nil {
		cfg.Timeout = time.Duration(*tc.TimeoutMs) * time.Millisecond
	}
	if tc.Budgets.MaxCallsPerHour != nil {
		cfg.Budgets.MaxCallsPerHour = *tc.Budgets.MaxCallsPerHour
	}
	if tc.Budgets.MaxUSDPerDay != nil {
		cfg.Budgets.MaxUSDPerDay = *tc.Budgets.MaxUSDPerDay
	}
}

func applyEnvOverrides(cfg *RuntimeConfig) {
	cfg.Enabled = config.EnvBool("STACKSOS_AI_ENABLED", cfg.Enabled)
	cfg.Tenant = config.Env("STACKSOS_AI_TENANT", cfg.Tenant)
	if v := config.Env("STACKSOS_AI_PROVIDER", ""); v != "" {
		cfg.Provider = ProviderID(v)
	}
	cfg.Model = config.Env("STACKSOS_AI_MODEL", cfg.Model)
	if v := config.Env("STACKSOS_AI_FALLBACK_MODELS", ""); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		cfg.FallbackModels = models
	}
	cfg.MaxTokens = config.EnvInt("STACKSOS_AI_MAX_TOKENS", cfg.MaxTokens)
	cfg.Temperature = config.EnvFloat("STACKSOS_AI_TEMPERATURE", cfg.Temperature)
	if v := config.Env("STACKSOS_AI_SAFETY_MODE", ""); v != "" {
		cfg.SafetyMode = parseSafetyMode(v)
	}
	if ms := config.EnvInt("STACKSOS_AI_TIMEOUT_MS", 0); ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	cfg.Budgets.MaxCallsPerHour = config.EnvInt("STACKSOS_AI_MAX_CALLS_PER_HOUR", cfg.Budgets.MaxCallsPerHour)
	cfg.Budgets.MaxUSDPerDay = config.EnvFloat("STACKSOS_AI_MAX_USD_PER_DAY", cfg.Budgets.MaxUSDPerDay)
}

func parseSafetyMode(s string) SafetyMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "balanced":
		return SafetyBalanced
	case "off":
		return SafetyOff
	default:
		return SafetyStrict
	}
}

func clampRuntimeConfig(cfg *RuntimeConfig) {
	cfg.MaxTokens = clampInt(cfg.MaxTokens, 1, 8192)
	if cfg.Temperature < 0 {
		cfg.Temperature = 0
	}
	if cfg.Temperature > 2 {
		cfg.Temperature = 2
	}
	cfg.Timeout = clampDuration(cfg.Timeout, time.Second, 60*time.Second)
}
