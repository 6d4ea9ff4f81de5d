package generate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stacksos/aicore/pkg/redact"
)

// Outcome status values. The distinction matters for observability,
// not correctness.
const (
	StatusOK         = "ok"          // succeeded on the first attempt
	StatusOKRetry    = "ok_retry"    // succeeded after retrying the first model
	StatusOKFallback = "ok_fallback" // succeeded on a fallback model
)

// CallOutcome is the telemetry record for one successful call.
// Write-once from the orchestrator's perspective. Prompt content is
// represented only by fingerprints.
type CallOutcome struct {
	ID        string
	CallType  string
	RequestID string
	ActorID   string

	PromptHash       string
	SystemHash       string
	UserHash         string
	PromptTemplateID string
	PromptVersion    string

	Provider   ProviderID
	Model      string
	Status     string
	Attempts   int
	ModelIndex int

	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64

	LatencyMs int64
	TraceID   string

	IP        string
	UserAgent string
	Metadata  map[string]any

	CreatedAt time.Time
}

// Recorder persists call outcomes. Writes are best-effort: the
// orchestrator swallows recorder failures so telemetry can never fail
// a call.
type Recorder interface {
	Record(ctx context.Context, outcome CallOutcome) error
}

// StoreRecorder writes outcomes to an OutcomeStore, assigning IDs and
// redacting caller metadata on the way in.
type StoreRecorder struct {
	store OutcomeStore
}

// NewStoreRecorder creates a recorder backed by the given store.
func NewStoreRecorder(store OutcomeStore) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(ctx context.Context, outcome CallOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	if outcome.Metadata != nil {
		outcome.Metadata = redact.Object(outcome.Metadata).(map[string]any)
	}
	outcome.UserAgent = redact.Text(outcome.UserAgent)

	return r.store.Insert(ctx, &outcome)
}

// NopRecorder discards outcomes.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, outcome CallOutcome) error { return nil }
