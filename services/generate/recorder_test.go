package generate

import (
	"context"
	"strings"
	"testing"
)

func TestStoreRecorderAssignsIdentity(t *testing.T) {
	store := NewMemoryOutcomeStore()
	recorder := NewStoreRecorder(store)

	err := recorder.Record(context.Background(), CallOutcome{CallType: "summarize", Status: StatusOK})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.List(context.Background(), OutcomeQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Error("expected an assigned ID")
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("expected an assigned timestamp")
	}
}

func TestStoreRecorderRedactsMetadata(t *testing.T) {
	store := NewMemoryOutcomeStore()
	recorder := NewStoreRecorder(store)

	err := recorder.Record(context.Background(), CallOutcome{
		Status:    StatusOK,
		UserAgent: "Mozilla/5.0 reader@example.com",
		Metadata: map[string]any{
			"patron_email": "reader@example.com",
			"patron_name":  "Ada Lovelace",
			"page":         3,
		},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.List(context.Background(), OutcomeQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	outcome := got[0]
	if outcome.Metadata["patron_email"] != "[REDACTED_EMAIL]" {
		t.Errorf("email not redacted: %v", outcome.Metadata["patron_email"])
	}
	if outcome.Metadata["patron_name"] != "[REDACTED_NAME]" {
		t.Errorf("name not redacted: %v", outcome.Metadata["patron_name"])
	}
	if outcome.Metadata["page"] != 3 {
		t.Errorf("non-sensitive metadata altered: %v", outcome.Metadata["page"])
	}
	if strings.Contains(outcome.UserAgent, "reader@example.com") {
		t.Errorf("user agent not redacted: %q", outcome.UserAgent)
	}
}
