package generate

import "strings"

// ModelDefaults names a provider's built-in primary model and, when it
// has one, a cheaper fallback appended to plans that lead with the
// primary.
type ModelDefaults struct {
	Primary  string
	Fallback string
}

// Catalog maps providers to their built-in model defaults. It is
// immutable configuration data passed into the resolver so tests can
// supply alternate tables.
type Catalog map[ProviderID]ModelDefaults

// DefaultCatalog returns the built-in model defaults. Only Anthropic
// defines a primary/fallback pairing; other providers pick their own
// default model when the plan slot is empty.
func DefaultCatalog() Catalog {
	return Catalog{
		ProviderAnthropic: {
			Primary:  "claude-sonnet-4-20250514",
			Fallback: "claude-3-5-haiku-20241022",
		},
	}
}

// providerDefaultKey is the dedup identity of the "ask the provider to
// pick" slot, which is represented in a plan as the empty string.
const providerDefaultKey = "__provider_default__"

// ResolveModelPlan builds the ordered, deduplicated list of models to
// try for one call. An empty entry means "use the provider's default
// model". The result always has at least one entry.
func ResolveModelPlan(cfg RuntimeConfig, catalog Catalog) []string {
	defaults := catalog[cfg.Provider]

	primary := strings.TrimSpace(cfg.Model)
	if primary == "" {
		primary = defaults.Primary
	}

	candidates := make([]string, 0, len(cfg.FallbackModels)+2)
	candidates = append(candidates, primary)
	for _, m := range cfg.FallbackModels {
		candidates = append(candidates, strings.TrimSpace(m))
	}

	// A plan that leads with the catalog primary also gets the
	// catalog's cheaper fallback as a last resort.
	if defaults.Fallback != "" && primary == defaults.Primary {
		candidates = append(candidates, defaults.Fallback)
	}

	seen := make(map[string]bool, len(candidates))
	plan := make([]string, 0, len(candidates))
	for _, m := range candidates {
		key := m
		if key == "" {
			key = providerDefaultKey
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		plan = append(plan, m)
	}

	if len(plan) == 0 {
		plan = []string{""}
	}
	return plan
}
