package chatbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"devagents/internal/domain"
)

type stubLLM struct {
	replies []string
	calls   []domain.ChatRequest
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.calls = append(s.calls, req)
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return &domain.ChatResponse{
		Model:   req.Model,
		Message: domain.Message{Role: domain.RoleAssistant, Content: reply},
	}, nil
}

type memStore struct {
	contexts map[string]domain.ChatContext
}

func newMemStore() *memStore { return &memStore{contexts: make(map[string]domain.ChatContext)} }

func (m *memStore) Save(ctx context.Context, id string, cc domain.ChatContext) error {
	m.contexts[id] = cc
	return nil
}

func (m *memStore) Load(ctx context.Context, id string) (domain.ChatContext, error) {
	return m.contexts[id], nil
}

type captureResponder struct {
	statuses  []string
	responses []string
}

func (r *captureResponder) SendStatus(ctx context.Context, msg string) error {
	r.statuses = append(r.statuses, msg)
	return nil
}

func (r *captureResponder) SendResponse(ctx context.Context, msg string) error {
	r.responses = append(r.responses, msg)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newAgent(t *testing.T, llm *stubLLM, store domain.ContextStore, responder domain.Responder, userMsg string) (*Agent, *domain.Conversation) {
	t.Helper()
	conv := domain.NewConversation("conv-1")
	if userMsg != "" {
		conv.Append(domain.Message{Role: domain.RoleUser, Content: userMsg, Sender: "alice"})
	}
	ectx := domain.NewExecutionContext(domain.ExecutionContextParams{
		ID:        "exec-1",
		Settings:  domain.NewSnapshot(map[string]string{"agents.chatbot.model": "test-model"}),
		Conv:      conv,
		Handles:   domain.Handles{LLM: llm, Store: store},
		Responder: responder,
	})
	agent, err := New(testLogger())(ectx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return agent.(*Agent), conv
}

func TestRunRespondsAndAppends(t *testing.T) {
	llm := &stubLLM{replies: []string{"the build is green"}}
	responder := &captureResponder{}
	agent, conv := newAgent(t, llm, nil, responder, "how is the build?")

	res, err := agent.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "the build is green" {
		t.Errorf("output = %q", res.Output)
	}
	if conv.Len() != 2 || conv.Last().Role != domain.RoleAssistant {
		t.Errorf("conversation not appended: %d turns, last role %q", conv.Len(), conv.Last().Role)
	}
	if len(responder.responses) != 1 || responder.responses[0] != "the build is green" {
		t.Errorf("responder got %v", responder.responses)
	}
	if llm.calls[0].Model != "test-model" {
		t.Errorf("model = %q", llm.calls[0].Model)
	}
}

func TestRunGracefulExitOnEmptyConversation(t *testing.T) {
	agent, _ := newAgent(t, &stubLLM{}, nil, nil, "")

	_, err := agent.Run(context.Background())
	if !errors.Is(err, domain.ErrGracefulExit) {
		t.Fatalf("err = %v, want ErrGracefulExit", err)
	}
}

func TestRunPersistsContextRefs(t *testing.T) {
	llm := &stubLLM{replies: []string{"noted"}}
	store := newMemStore()
	agent, _ := newAgent(t, llm, store, nil, "please look at PR #7 for issue 42")

	if _, err := agent.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cc := store.contexts["conv-1"]
	if cc.PullReqID != "7" || cc.IssueID != "42" {
		t.Errorf("stored context = %+v", cc)
	}
	// The system prompt should carry the known context into the model call.
	if !strings.Contains(llm.calls[0].System, "pull request: 7") {
		t.Errorf("system prompt missing context: %q", llm.calls[0].System)
	}
}

func TestRunMergesWithStoredContext(t *testing.T) {
	llm := &stubLLM{replies: []string{"ok"}}
	store := newMemStore()
	store.contexts["conv-1"] = domain.ChatContext{IssueID: "42", SourceBranch: "feat/x", TargetBranch: "main"}
	agent, _ := newAgent(t, llm, store, nil, "actually it is pull request 9")

	if _, err := agent.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cc := store.contexts["conv-1"]
	if cc.PullReqID != "9" || cc.IssueID != "42" || cc.SourceBranch != "feat/x" {
		t.Errorf("merged context = %+v", cc)
	}
}

func TestRunImpactWithoutDiffSource(t *testing.T) {
	llm := &stubLLM{replies: []string{"I need a PR or branches first"}}
	agent, _ := newAgent(t, llm, newMemStore(), nil, "what is the impact of this?")

	res, err := agent.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no git repository") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestParseContextRefs(t *testing.T) {
	cases := []struct {
		name, message string
		want          domain.ChatContext
	}{
		{
			name:    "issue and pr",
			message: "see issue #42 and PR !7",
			want:    domain.ChatContext{IssueID: "42", PullReqID: "7"},
		},
		{
			name:    "merge request",
			message: "review merge request 15 please",
			want:    domain.ChatContext{PullReqID: "15"},
		},
		{
			name:    "branch pair",
			message: "compare branch feat/login -> main",
			want:    domain.ChatContext{SourceBranch: "feat/login", TargetBranch: "main"},
		},
		{
			name:    "commit range",
			message: "what changed in a1b2c3d..e4f5a6b",
			want:    domain.ChatContext{TargetCommit: "a1b2c3d", SourceCommit: "e4f5a6b"},
		},
		{
			name:    "plain chat",
			message: "good morning team",
			want:    domain.ChatContext{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseContextRefs(tc.message); got != tc.want {
				t.Errorf("ParseContextRefs(%q) = %+v, want %+v", tc.message, got, tc.want)
			}
		})
	}
}
