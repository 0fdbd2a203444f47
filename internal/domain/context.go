package domain

import (
	"context"
	"time"
)

// Responder carries agent output back to whatever interface triggered the
// invocation. SendStatus reports progress ("analyzing 12 files..."); it is
// not part of the conversation. SendResponse delivers user-visible text.
type Responder interface {
	SendStatus(ctx context.Context, message string) error
	SendResponse(ctx context.Context, response string) error
}

// Handles bundles the integration clients an agent may use. Each handle is
// owned by the execution context for the duration of one invocation; agents
// must not retain them past Run. Nil handles mean the integration is not
// configured.
type Handles struct {
	LLM          LLMProvider
	Git          GitClient
	Issues       IssueProvider
	PullRequests PullRequestProvider
	Store        ContextStore
}

// ExecutionContext is the per-invocation bundle of configuration,
// conversation history and integration handles. It is created once per
// inbound request, owned exclusively by that request, and discarded when
// the agent completes or fails. Settings are read-only; the conversation
// is append-only.
type ExecutionContext struct {
	id        string
	settings  Snapshot
	prompts   PromptSet
	conv      *Conversation
	handles   Handles
	budget    time.Duration
	responder Responder
}

// ExecutionContextParams holds the inputs for NewExecutionContext.
type ExecutionContextParams struct {
	ID        string
	Settings  Snapshot
	Prompts   PromptSet
	Conv      *Conversation
	Handles   Handles
	Budget    time.Duration
	Responder Responder
}

// NewExecutionContext builds an execution context. A nil conversation is
// replaced with an empty one; a nil responder with a silent one.
func NewExecutionContext(p ExecutionContextParams) *ExecutionContext {
	if p.Conv == nil {
		p.Conv = NewConversation(p.ID)
	}
	if p.Responder == nil {
		p.Responder = silentResponder{}
	}
	return &ExecutionContext{
		id:        p.ID,
		settings:  p.Settings,
		prompts:   p.Prompts,
		conv:      p.Conv,
		handles:   p.Handles,
		budget:    p.Budget,
		responder: p.Responder,
	}
}

// ID returns the unique execution identifier (ULID).
func (e *ExecutionContext) ID() string { return e.id }

// Settings returns the immutable configuration snapshot.
func (e *ExecutionContext) Settings() Snapshot { return e.settings }

// Prompts returns the resolved prompt templates.
func (e *ExecutionContext) Prompts() PromptSet { return e.prompts }

// Conversation returns the message history. Agents may Append; they must
// not rewrite existing turns.
func (e *ExecutionContext) Conversation() *Conversation { return e.conv }

// Handles returns the integration clients for this invocation.
func (e *ExecutionContext) Handles() Handles { return e.handles }

// Budget returns the caller-supplied execution budget. Zero means the
// caller imposes no bound beyond its own context.
func (e *ExecutionContext) Budget() time.Duration { return e.budget }

// SendStatus reports progress to the calling interface.
func (e *ExecutionContext) SendStatus(ctx context.Context, message string) error {
	return e.responder.SendStatus(ctx, message)
}

// SendResponse delivers user-visible text to the calling interface.
func (e *ExecutionContext) SendResponse(ctx context.Context, response string) error {
	return e.responder.SendResponse(ctx, response)
}

type silentResponder struct{}

func (silentResponder) SendStatus(context.Context, string) error   { return nil }
func (silentResponder) SendResponse(context.Context, string) error { return nil }
