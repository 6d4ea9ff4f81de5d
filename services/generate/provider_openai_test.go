package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAICompleteJSON(t *testing.T) {
	var gotReq openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		json.NewEncoder(w).Encode(openAIResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: `{"ok":true}`}},
			},
			Usage: openAIUsage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key").WithBaseURL(server.URL)
	completion, err := p.CompleteJSON(context.Background(), CallParams{
		System: "be terse",
		User:   "answer",
	})
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}

	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", gotReq.Model)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Error("expected JSON response format to be requested")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}

	if completion.Text != `{"ok":true}` {
		t.Errorf("unexpected text %q", completion.Text)
	}
	if completion.Usage.TotalTokens != 100 {
		t.Errorf("expected 100 tokens, got %d", completion.Usage.TotalTokens)
	}
}

func TestOpenAIErrorSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key").WithBaseURL(server.URL)
	_, err := p.CompleteJSON(context.Background(), CallParams{User: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("status code missing from error: %v", err)
	}
	if !IsTransient(err) {
		t.Errorf("502 should classify as transient: %v", err)
	}
}

func TestOpenAINoChoicesRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIResponse{ID: "chatcmpl-1", Model: "gpt-4o-mini"})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key").WithBaseURL(server.URL)
	if _, err := p.CompleteJSON(context.Background(), CallParams{User: "x"}); err == nil {
		t.Fatal("expected an error for an empty choice list")
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewAnthropicProvider("key"))
	registry.Register(NewOpenAIProvider(""))

	if _, ok := registry.Get(ProviderAnthropic); !ok {
		t.Error("expected anthropic to be registered")
	}
	if len(registry.List()) != 2 {
		t.Errorf("expected 2 providers, got %d", len(registry.List()))
	}

	available := registry.Available(context.Background())
	if len(available) != 1 || available[0].Name() != ProviderAnthropic {
		t.Errorf("expected only anthropic available, got %d", len(available))
	}
}
