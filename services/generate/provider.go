package generate

import (
	"context"
	"time"
)

// CallParams describes one synchronous provider call.
type CallParams struct {
	RequestID string

	// Model to invoke; empty means the provider's default.
	Model string

	MaxTokens   int
	Temperature float64

	// Timeout bounds this attempt. Providers enforce it on the
	// transport; the orchestrator has no independent cancellation.
	Timeout time.Duration

	System string
	User   string
}

// Provider performs one synchronous completion call against an
// upstream service. Implementations must return an error on any
// failure (network, non-2xx, empty response) rather than a sentinel
// value, and should surface HTTP status text in the error message so
// the transient classifier can act on it.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderID

	// Models returns the models this adapter knows about.
	Models() []string

	// Available reports whether the provider is usable (e.g. has
	// credentials).
	Available(ctx context.Context) bool

	// CompleteJSON performs one call biased toward a JSON response.
	CompleteJSON(ctx context.Context, params CallParams) (*Completion, error)
}

// Registry manages available providers.
type Registry struct {
	providers map[ProviderID]Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderID]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name ProviderID) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// List returns all registered providers.
func (r *Registry) List() []Provider {
	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// Available returns all providers that report themselves usable.
func (r *Registry) Available(ctx context.Context) []Provider {
	var available []Provider
	for _, p := range r.providers {
		if p.Available(ctx) {
			available = append(available, p)
		}
	}
	return available
}
