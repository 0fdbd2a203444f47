package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"devagents/internal/domain"
	"devagents/internal/infra/config"
)

type flakyProvider struct {
	err   error
	calls int
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: "ok"}}, nil
}

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &flakyProvider{}
	p := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, testLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if p.Name() != "flaky" {
		t.Errorf("name = %q", p.Name())
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("upstream down")}
	p := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{
		MaxFailures: 3,
		Timeout:     time.Minute,
	}, testLogger())

	for i := 0; i < 3; i++ {
		if _, err := p.Chat(context.Background(), domain.ChatRequest{}); err == nil {
			t.Fatal("expected failure")
		}
	}
	if p.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v after trip threshold", p.State())
	}

	// Open circuit fails fast without touching the provider.
	before := inner.calls
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, domain.ErrProviderFault) {
		t.Errorf("open circuit err = %v, want ErrProviderFault", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("open circuit err = %v, want ErrOpenState in chain", err)
	}
	if inner.calls != before {
		t.Errorf("provider called while circuit open")
	}
}

func TestCircuitBreakerRecoversAfterSuccess(t *testing.T) {
	inner := &flakyProvider{err: errors.New("upstream down")}
	p := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{
		MaxFailures: 2,
		Timeout:     10 * time.Millisecond,
	}, testLogger())

	for i := 0; i < 2; i++ {
		p.Chat(context.Background(), domain.ChatRequest{})
	}
	if p.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v", p.State())
	}

	inner.err = nil
	time.Sleep(20 * time.Millisecond) // let the breaker move to half-open

	if _, err := p.Chat(context.Background(), domain.ChatRequest{}); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if p.State() != gobreaker.StateClosed {
		t.Errorf("state = %v after successful probe", p.State())
	}
}
