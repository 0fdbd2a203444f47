package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"devagents/internal/domain"
	"devagents/internal/infra/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestMapHTTPError(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{http.StatusInternalServerError, domain.ErrProviderFault},
		{http.StatusBadRequest, domain.ErrProviderFault},
	}
	for _, tc := range cases {
		err := mapHTTPError(tc.status, []byte("details"))
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
		if !errors.Is(err, domain.ErrIntegration) {
			t.Errorf("status %d: does not unwrap to ErrIntegration", tc.status)
		}
	}
}

func TestAnthropicChat(t *testing.T) {
	var captured anthropicRequest
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			ID:    "msg_1",
			Model: captured.Model,
			Role:  "assistant",
			Content: []anthropicContent{
				{Type: "text", Text: "Hello"},
				{Type: "text", Text: ", world"},
			},
			Usage: anthropicUsage{InputTokens: 10, OutputTokens: 5},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(config.ProviderConfig{
		Name:    "anthropic",
		Type:    "anthropic",
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
	}, testLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		System: "be brief",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "and polite"},
			{Role: domain.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotHeaders.Get("x-api-key") != "test-key" || gotHeaders.Get("anthropic-version") == "" {
		t.Errorf("headers = %v", gotHeaders)
	}
	if captured.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q, want provider default", captured.Model)
	}
	// System turns ride out of band; only the user turn stays in messages.
	if captured.System != "be brief\n\nand polite" {
		t.Errorf("system = %q", captured.System)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != domain.RoleUser {
		t.Errorf("messages = %+v", captured.Messages)
	}
	if captured.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d", captured.MaxTokens)
	}

	if resp.Message.Content != "Hello, world" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestAnthropicChatRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"rate_limit_error"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(config.ProviderConfig{Name: "anthropic", BaseURL: srv.URL, Model: "m"}, testLogger())

	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Fatalf("err = %v, want ErrRateLimit", err)
	}
}

func TestOpenAIChat(t *testing.T) {
	var captured openaiRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(openaiResponse{
			ID:    "chatcmpl-1",
			Model: captured.Model,
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "hey"}, FinishReason: "stop"},
			},
			Usage: openaiUsage{PromptTokens: 8, CompletionTokens: 2, TotalTokens: 10},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{
		Name:    "openai",
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o",
	}, testLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		System:   "be brief",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if auth != "Bearer sk-test" {
		t.Errorf("authorization = %q", auth)
	}
	// System prompt becomes the leading system message.
	if len(captured.Messages) != 2 || captured.Messages[0].Role != domain.RoleSystem {
		t.Errorf("messages = %+v", captured.Messages)
	}
	if resp.Message.Content != "hey" || resp.Usage.TotalTokens != 10 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider: "claude",
		Providers: []config.ProviderConfig{
			{Name: "claude", Type: "anthropic", Model: "m1"},
			{Name: "gpt", Type: "openai", Model: "m2"},
		},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}

	registry, fallback, err := BuildRegistry(cfg, testLogger())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if len(registry.List()) != 2 {
		t.Errorf("providers = %v", registry.List())
	}
	if fallback == nil || fallback.Name() != "claude" {
		t.Errorf("fallback = %v", fallback)
	}
	// Breaker wrapping preserves the provider name.
	if _, ok := fallback.(*CircuitBreakerProvider); !ok {
		t.Errorf("fallback not wrapped: %T", fallback)
	}
}

func TestBuildRegistrySingleProviderFallback(t *testing.T) {
	cfg := config.LLMConfig{
		Providers: []config.ProviderConfig{{Name: "only", Type: "openai", Model: "m"}},
	}

	_, fallback, err := BuildRegistry(cfg, testLogger())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if fallback == nil || fallback.Name() != "only" {
		t.Errorf("fallback = %v", fallback)
	}
}

func TestBuildRegistryUnknownType(t *testing.T) {
	cfg := config.LLMConfig{
		Providers: []config.ProviderConfig{{Name: "x", Type: "mystery"}},
	}
	if _, _, err := BuildRegistry(cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("ghost"); !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("err = %v, want ErrProviderNotFound", err)
	}
}
