package generate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacksos/aicore/pkg/fingerprint"
	"github.com/stacksos/aicore/pkg/redact"
	"github.com/stacksos/aicore/pkg/telemetry"
)

// Backoff bounds between transient-failure retries.
const (
	backoffFactor = 1.8
	backoffJitter = 125 * time.Millisecond
	minBackoff    = 100 * time.Millisecond
	maxBackoff    = 8 * time.Second
)

// Orchestrator drives the two-level retry loop: attempts per model,
// then model fallback. One invocation proceeds sequentially; no
// concurrent attempts are issued, trading latency for not multiplying
// load on an already-struggling upstream. Instances are safe for
// concurrent use: all per-call state is derived fresh per invocation.
type Orchestrator struct {
	config   ConfigSource
	registry *Registry
	gate     Gate
	recorder Recorder
	tuning   Tuning
	catalog  Catalog
	logger   *slog.Logger
	tracer   trace.Tracer

	// Test seams.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration

	wg sync.WaitGroup
}

// NewOrchestrator creates an orchestrator with default tuning and the
// built-in model catalog.
func NewOrchestrator(source ConfigSource, registry *Registry, gate Gate, recorder Recorder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		config:   source,
		registry: registry,
		gate:     gate,
		recorder: recorder,
		tuning:   DefaultTuning(),
		catalog:  DefaultCatalog(),
		logger:   logger.With("component", "orchestrator"),
		tracer:   otel.Tracer("aicore/generate"),
		sleep:    sleepContext,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(backoffJitter)))
		},
	}
}

// WithTuning sets the retry tuning table.
func (o *Orchestrator) WithTuning(t Tuning) *Orchestrator {
	o.tuning = t
	return o
}

// WithCatalog sets the provider model catalog.
func (o *Orchestrator) WithCatalog(c Catalog) *Orchestrator {
	o.catalog = c
	return o
}

// Flush waits for in-flight telemetry writes to complete. One-shot
// callers (the CLI) call this before exiting.
func (o *Orchestrator) Flush() {
	o.wg.Wait()
}

// Generate runs one orchestrated completion call: admission, the
// retry/fallback loop, schema validation, and outcome telemetry.
// validate is applied to the raw completion text; its rejection is
// treated as non-transient. On plan exhaustion the last provider error
// is returned unchanged, preserving root cause for the caller.
func (o *Orchestrator) Generate(ctx context.Context, req Request, validate func(raw string) (any, error)) (*Result, error) {
	start := time.Now()

	cfg, err := o.config.RuntimeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve runtime config: %w", err)
	}

	if !cfg.Enabled {
		return nil, &ConfigurationError{Reason: "AI is disabled"}
	}
	if cfg.Provider == "" {
		return nil, &ConfigurationError{Reason: "no provider configured"}
	}
	provider, ok := o.registry.Get(cfg.Provider)
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("provider not registered: %s", cfg.Provider)}
	}

	// Budget refusals propagate verbatim: not retried, not reclassified.
	if err := o.gate.Enforce(ctx, cfg, req.CallType); err != nil {
		return nil, err
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	profile := ResolveRetryProfile(req.CallType, cfg, o.tuning)
	plan := ResolveModelPlan(cfg, o.catalog)
	fallbackAttempts := o.tuning.ResolveFallbackAttempts()

	ctx, span := o.tracer.Start(ctx, "generate",
		trace.WithAttributes(
			attribute.String("ai.call_type", req.CallType),
			attribute.String("ai.provider", string(cfg.Provider)),
			attribute.Int("ai.plan_size", len(plan)),
		))
	defer span.End()

	logger := o.logger.With(
		"request_id", req.RequestID,
		"call_type", req.CallType,
		"provider", cfg.Provider,
	)

	var lastErr error
	for modelIndex, model := range plan {
		attemptsForModel := profile.MaxAttempts
		if modelIndex > 0 {
			// Fallback models are a last resort, not a second full
			// retry cycle.
			attemptsForModel = fallbackAttempts
		}

		for attempt := 1; attempt <= attemptsForModel; attempt++ {
			timeout := profile.Timeout
			if attempt > 1 {
				timeout = profile.RetryTimeout
			}

			completion, err := provider.CompleteJSON(ctx, CallParams{
				RequestID:   req.RequestID,
				Model:       model,
				MaxTokens:   cfg.MaxTokens,
				Temperature: cfg.Temperature,
				Timeout:     timeout,
				System:      req.System,
				User:        req.User,
			})
			if err == nil {
				data, verr := validate(completion.Text)
				if verr != nil {
					schemaErr := &SchemaValidationError{Model: completion.Model, Err: verr}
					logger.ErrorContext(ctx, "completion failed schema validation",
						"model", completion.Model,
						"error", redact.Text(verr.Error()),
					)
					span.SetStatus(codes.Error, "schema validation failed")
					return nil, schemaErr
				}

				o.finish(ctx, span, logger, req, cfg, completion, modelIndex, attempt, start)
				return &Result{
					Data:       data,
					Completion: completion,
					Config:     cfg,
				}, nil
			}

			if !IsTransient(err) {
				logger.ErrorContext(ctx, "provider call failed",
					"model", model,
					"attempt", attempt,
					"error", redact.Text(err.Error()),
				)
				span.SetStatus(codes.Error, "provider call failed")
				return nil, err
			}

			lastErr = err
			logger.WarnContext(ctx, "transient provider error",
				"model", model,
				"model_index", modelIndex,
				"attempt", attempt,
				"error", redact.Text(err.Error()),
			)

			if attempt < attemptsForModel {
				if err := o.sleep(ctx, o.backoffDelay(profile.BaseDelay, attempt)); err != nil {
					return nil, err
				}
			}
			// Attempts for this model exhausted: advance the plan
			// without sleeping; the model switch is the recovery
			// action.
		}
	}

	logger.ErrorContext(ctx, "model plan exhausted",
		"models_tried", len(plan),
		"error", redact.Text(lastErr.Error()),
	)
	span.SetStatus(codes.Error, "model plan exhausted")
	return nil, lastErr
}

// finish records the success outcome. Telemetry is fire-and-forget:
// the write happens off the caller's critical path and its failure is
// only logged.
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, logger *slog.Logger, req Request, cfg RuntimeConfig, completion *Completion, modelIndex, attempt int, start time.Time) {
	latency := time.Since(start)

	status := StatusOK
	switch {
	case modelIndex > 0:
		status = StatusOKFallback
	case attempt > 1:
		status = StatusOKRetry
	}

	span.SetAttributes(
		attribute.String("ai.model", completion.Model),
		attribute.String("ai.status", status),
		attribute.Int("ai.attempts", attempt),
		attribute.Int("ai.model_index", modelIndex),
		attribute.Int64("ai.latency_ms", latency.Milliseconds()),
	)

	logger.InfoContext(ctx, "completion succeeded",
		"model", completion.Model,
		"status", status,
		"attempts", attempt,
		"model_index", modelIndex,
		"latency_ms", latency.Milliseconds(),
		"total_tokens", completion.Usage.TotalTokens,
		"cost_usd", completion.Usage.CostUSD,
	)

	meta := fingerprint.PromptMetadata(req.System, req.User)
	outcome := CallOutcome{
		CallType:  req.CallType,
		RequestID: req.RequestID,
		ActorID:   req.ActorID,

		PromptHash:       meta.PromptHash,
		SystemHash:       meta.SystemHash,
		UserHash:         meta.UserHash,
		PromptTemplateID: req.PromptTemplateID,
		PromptVersion:    req.PromptVersion,

		Provider:   completion.Provider,
		Model:      completion.Model,
		Status:     status,
		Attempts:   attempt,
		ModelIndex: modelIndex,

		InputTokens:  completion.Usage.InputTokens,
		OutputTokens: completion.Usage.OutputTokens,
		TotalTokens:  completion.Usage.TotalTokens,
		CostUSD:      completion.Usage.CostUSD,

		LatencyMs: latency.Milliseconds(),
		TraceID:   telemetry.TraceIDFromContext(ctx),

		IP:        req.IP,
		UserAgent: req.UserAgent,
		Metadata:  req.Metadata,
	}

	cost := completion.Usage.CostUSD
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := o.recorder.Record(ctx, outcome); err != nil {
			o.logger.Warn("failed to record call outcome", "error", err)
		}
		if err := o.gate.RecordSpend(ctx, cfg, cost); err != nil {
			o.logger.Warn("failed to record spend", "error", err)
		}
	}()
}

// backoffDelay computes the jittered exponential delay after a failed
// attempt.
func (o *Orchestrator) backoffDelay(base time.Duration, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(backoffFactor, float64(attempt-1)))
	d += o.jitter()
	return clampDuration(d, minBackoff, maxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Generate runs one orchestrated call with a typed validator.
func Generate[T any](ctx context.Context, o *Orchestrator, req Request, v Validator[T]) (*TypedResult[T], error) {
	result, err := o.Generate(ctx, req, func(raw string) (any, error) {
		return v.Validate(raw)
	})
	if err != nil {
		return nil, err
	}

	data, ok := result.Data.(T)
	if !ok {
		return nil, &SchemaValidationError{
			Model: result.Completion.Model,
			Err:   fmt.Errorf("validator returned unexpected type %T", result.Data),
		}
	}

	return &TypedResult[T]{
		Data:       data,
		Completion: result.Completion,
		Config:     result.Config,
	}, nil
}
