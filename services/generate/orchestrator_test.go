package generate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stacksos/aicore/pkg/testutil"
)

// mockProvider returns scripted errors in order; a nil entry (or
// running past the script) yields a successful completion.
type mockProvider struct {
	id   ProviderID
	text string

	mu    sync.Mutex
	calls []CallParams
	errs  []error
}

func (p *mockProvider) Name() ProviderID                   { return p.id }
func (p *mockProvider) Models() []string                   { return nil }
func (p *mockProvider) Available(ctx context.Context) bool { return true }

func (p *mockProvider) CompleteJSON(ctx context.Context, params CallParams) (*Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.calls)
	p.calls = append(p.calls, params)
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	return &Completion{
		Text:      p.text,
		Provider:  p.id,
		Model:     params.Model,
		RequestID: params.RequestID,
		Usage:     Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, CostUSD: 0.01},
	}, nil
}

func (p *mockProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *mockProvider) call(i int) CallParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

type mockGate struct {
	enforceErr error

	mu       sync.Mutex
	enforced int
	spent    []float64
}

func (g *mockGate) Enforce(ctx context.Context, cfg RuntimeConfig, callType string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enforced++
	return g.enforceErr
}

func (g *mockGate) RecordSpend(ctx context.Context, cfg RuntimeConfig, costUSD float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spent = append(g.spent, costUSD)
	return nil
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []CallOutcome
}

func (r *mockRecorder) Record(ctx context.Context, outcome CallOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *mockRecorder) last(t *testing.T) CallOutcome {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		t.Fatal("no outcome recorded")
	}
	return r.outcomes[len(r.outcomes)-1]
}

func enabledConfig() RuntimeConfig {
	return RuntimeConfig{
		Enabled:     true,
		Tenant:      "default",
		Provider:    ProviderAnthropic,
		MaxTokens:   1024,
		Temperature: 0.2,
		Timeout:     12 * time.Second,
	}
}

func newTestOrchestrator(cfg RuntimeConfig, p Provider, gate Gate, rec Recorder) *Orchestrator {
	registry := NewRegistry()
	if p != nil {
		registry.Register(p)
	}
	if gate == nil {
		gate = NopGate{}
	}
	if rec == nil {
		rec = NopRecorder{}
	}

	o := NewOrchestrator(StaticConfig(cfg), registry, gate, rec, testutil.DiscardLogger())
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	o.jitter = func() time.Duration { return 0 }
	return o
}

func passthrough(raw string) (any, error) { return raw, nil }

func TestGenerateDisabled(t *testing.T) {
	provider := &mockProvider{id: ProviderAnthropic}
	cfg := enabledConfig()
	cfg.Enabled = false

	o := newTestOrchestrator(cfg, provider, nil, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi"}, passthrough)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if provider.callCount() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.callCount())
	}
}

func TestGenerateNoProviderConfigured(t *testing.T) {
	cfg := enabledConfig()
	cfg.Provider = ""
	provider := &mockProvider{id: ProviderAnthropic}

	o := newTestOrchestrator(cfg, provider, nil, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi"}, passthrough)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if provider.callCount() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.callCount())
	}
}

func TestGenerateUnregisteredProvider(t *testing.T) {
	o := newTestOrchestrator(enabledConfig(), nil, nil, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi"}, passthrough)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestGenerateBudgetRefusalPropagates(t *testing.T) {
	provider := &mockProvider{id: ProviderAnthropic}
	refusal := &BudgetExceededError{Tenant: "default", Ceiling: "calls_per_hour", Limit: 10, Used: 11}
	gate := &mockGate{enforceErr: refusal}

	o := newTestOrchestrator(enabledConfig(), provider, gate, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi"}, passthrough)

	var budgetErr *BudgetExceededError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("expected BudgetExceededError, got %v", err)
	}
	if budgetErr != refusal {
		t.Error("budget refusal should propagate unchanged")
	}
	if provider.callCount() != 0 {
		t.Errorf("refused call must not reach the provider, got %d calls", provider.callCount())
	}
}

func TestGenerateFirstAttemptSuccess(t *testing.T) {
	provider := &mockProvider{id: ProviderAnthropic, text: `{"ok":true}`}
	gate := &mockGate{}
	recorder := &mockRecorder{}

	o := newTestOrchestrator(enabledConfig(), provider, gate, recorder)
	result, err := o.Generate(context.Background(), Request{
		System:   "system prompt",
		User:     "user prompt",
		CallType: "summarize",
		ActorID:  "patron-42",
	}, passthrough)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	o.Flush()

	if result.Data != `{"ok":true}` {
		t.Errorf("unexpected data: %v", result.Data)
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.callCount())
	}
	if got := provider.call(0).Model; got != "claude-sonnet-4-20250514" {
		t.Errorf("expected catalog primary model, got %q", got)
	}
	if provider.call(0).RequestID == "" {
		t.Error("expected a generated request ID")
	}

	outcome := recorder.last(t)
	if outcome.Status != StatusOK {
		t.Errorf("expected status %q, got %q", StatusOK, outcome.Status)
	}
	if outcome.Attempts != 1 || outcome.ModelIndex != 0 {
		t.Errorf("unexpected attempts=%d modelIndex=%d", outcome.Attempts, outcome.ModelIndex)
	}
	if outcome.PromptHash == "" || outcome.SystemHash == "" || outcome.UserHash == "" {
		t.Error("expected prompt fingerprints on the outcome")
	}
	if outcome.ActorID != "patron-42" {
		t.Errorf("unexpected actor: %q", outcome.ActorID)
	}

	gate.mu.Lock()
	defer gate.mu.Unlock()
	if gate.enforced != 1 {
		t.Errorf("expected 1 gate check, got %d", gate.enforced)
	}
	if len(gate.spent) != 1 || gate.spent[0] != 0.01 {
		t.Errorf("expected spend recorded once, got %v", gate.spent)
	}
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	transient := errors.New("connection reset by peer")
	provider := &mockProvider{
		id:   ProviderAnthropic,
		text: "done",
		errs: []error{transient, transient, nil},
	}
	recorder := &mockRecorder{}

	var slept []time.Duration
	o := newTestOrchestrator(enabledConfig(), provider, nil, recorder)
	o.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	// copilot is interactive: 3 attempts on the primary model.
	result, err := o.Generate(context.Background(), Request{User: "hi", CallType: "copilot"}, passthrough)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	o.Flush()

	if provider.callCount() != 3 {
		t.Fatalf("expected 3 provider calls, got %d", provider.callCount())
	}
	if result.Completion.Text != "done" {
		t.Errorf("unexpected completion text %q", result.Completion.Text)
	}

	// Interactive base delay is 500ms; jitter is zeroed in tests.
	want := []time.Duration{500 * time.Millisecond, 900 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %d", len(want), len(slept))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d: expected %v, got %v", i, want[i], slept[i])
		}
	}

	if got := recorder.last(t); got.Status != StatusOKRetry || got.Attempts != 3 {
		t.Errorf("expected ok_retry after 3 attempts, got %q attempts=%d", got.Status, got.Attempts)
	}
}

func TestGenerateNonTransientStopsImmediately(t *testing.T) {
	hard := errors.New("invalid request payload")
	provider := &mockProvider{id: ProviderAnthropic, errs: []error{hard}}

	o := newTestOrchestrator(enabledConfig(), provider, nil, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi", CallType: "copilot"}, passthrough)

	if !errors.Is(err, hard) {
		t.Fatalf("expected the provider error unchanged, got %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("expected exactly 1 provider call, got %d", provider.callCount())
	}
}

func TestGenerateFallsBackToNextModel(t *testing.T) {
	transient := errors.New("request timeout")
	provider := &mockProvider{
		id:   ProviderAnthropic,
		text: "rescued",
		errs: []error{transient, transient, nil},
	}
	recorder := &mockRecorder{}

	cfg := enabledConfig()
	cfg.Model = "model-a"
	cfg.FallbackModels = []string{"model-b"}

	o := newTestOrchestrator(cfg, provider, nil, recorder)

	// Default tier: 2 attempts on model-a, then 1 on model-b.
	result, err := o.Generate(context.Background(), Request{User: "hi"}, passthrough)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	o.Flush()

	if provider.callCount() != 3 {
		t.Fatalf("expected 3 provider calls, got %d", provider.callCount())
	}
	for i, wantModel := range []string{"model-a", "model-a", "model-b"} {
		if got := provider.call(i).Model; got != wantModel {
			t.Errorf("call %d: expected model %q, got %q", i, wantModel, got)
		}
	}
	if result.Completion.Model != "model-b" {
		t.Errorf("expected fallback model, got %q", result.Completion.Model)
	}

	outcome := recorder.last(t)
	if outcome.Status != StatusOKFallback || outcome.ModelIndex != 1 || outcome.Attempts != 1 {
		t.Errorf("unexpected outcome status=%q modelIndex=%d attempts=%d",
			outcome.Status, outcome.ModelIndex, outcome.Attempts)
	}
}

func TestGeneratePlanExhaustedReturnsLastError(t *testing.T) {
	first := errors.New("503 service unavailable")
	last := errors.New("connection refused")
	provider := &mockProvider{
		id:   ProviderAnthropic,
		errs: []error{first, first, last},
	}

	cfg := enabledConfig()
	cfg.Model = "model-a"
	cfg.FallbackModels = []string{"model-b"}

	o := newTestOrchestrator(cfg, provider, nil, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi"}, passthrough)

	if !errors.Is(err, last) {
		t.Fatalf("expected the final transient error, got %v", err)
	}
	if provider.callCount() != 3 {
		t.Errorf("expected 3 provider calls, got %d", provider.callCount())
	}
}

func TestGenerateSchemaRejectionIsTerminal(t *testing.T) {
	provider := &mockProvider{id: ProviderAnthropic, text: "not json"}

	o := newTestOrchestrator(enabledConfig(), provider, nil, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi", CallType: "copilot"}, func(raw string) (any, error) {
		return nil, errors.New("missing required field")
	})

	var schemaErr *SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaValidationError, got %v", err)
	}
	if schemaErr.Model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected model on schema error: %q", schemaErr.Model)
	}
	if provider.callCount() != 1 {
		t.Errorf("schema rejection must not be retried, got %d calls", provider.callCount())
	}
}

func TestGenerateAttemptTimeouts(t *testing.T) {
	transient := errors.New("request timeout")
	provider := &mockProvider{
		id:   ProviderAnthropic,
		text: "ok",
		errs: []error{transient, nil},
	}

	o := newTestOrchestrator(enabledConfig(), provider, nil, nil)
	_, err := o.Generate(context.Background(), Request{User: "hi"}, passthrough)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	o.Flush()

	// First attempt uses the base timeout; retries get 1.5x for the
	// default tier.
	if got := provider.call(0).Timeout; got != 12*time.Second {
		t.Errorf("first attempt timeout: expected 12s, got %v", got)
	}
	if got := provider.call(1).Timeout; got != 18*time.Second {
		t.Errorf("retry timeout: expected 18s, got %v", got)
	}
}

func TestGenerateContextCancelledDuringBackoff(t *testing.T) {
	transient := errors.New("502 bad gateway")
	provider := &mockProvider{id: ProviderAnthropic, errs: []error{transient, transient}}

	o := newTestOrchestrator(enabledConfig(), provider, nil, nil)
	o.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Generate(ctx, Request{User: "hi", CallType: "copilot"}, passthrough)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("expected 1 provider call before cancellation, got %d", provider.callCount())
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	// Default jitter stays in place here so the bounds hold under
	// randomness.
	o := NewOrchestrator(StaticConfig(enabledConfig()), NewRegistry(), NopGate{}, NopRecorder{}, testutil.DiscardLogger())

	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 100; i++ {
			d := o.backoffDelay(400*time.Millisecond, attempt)
			if d < minBackoff || d > maxBackoff {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, minBackoff, maxBackoff)
			}
		}
	}

	// A tiny base is raised to the floor and a deep attempt is clamped
	// to the ceiling.
	o.jitter = func() time.Duration { return 0 }
	if d := o.backoffDelay(50*time.Millisecond, 1); d != minBackoff {
		t.Errorf("expected floor %v, got %v", minBackoff, d)
	}
	if d := o.backoffDelay(5*time.Second, 10); d != maxBackoff {
		t.Errorf("expected ceiling %v, got %v", maxBackoff, d)
	}
}

func TestGenerateTyped(t *testing.T) {
	type summary struct {
		Title string `json:"title"`
	}

	provider := &mockProvider{id: ProviderAnthropic, text: "```json\n{\"title\":\"Dune\"}\n```"}
	o := newTestOrchestrator(enabledConfig(), provider, nil, nil)

	result, err := Generate(context.Background(), o, Request{User: "summarize"}, JSONValidator[summary]())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	o.Flush()

	if result.Data.Title != "Dune" {
		t.Errorf("unexpected payload: %+v", result.Data)
	}
	if result.Completion == nil || result.Completion.Provider != ProviderAnthropic {
		t.Error("expected completion details on the typed result")
	}
}
