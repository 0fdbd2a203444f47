// Package chatbot implements the conversational git assistant. It keeps
// per-conversation context (issue, PR, branches, commits) in the context
// store, answers with the configured model, and hands off to the impact
// analyzer when the user asks what a change affects.
package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"devagents/internal/agents/impact"
	"devagents/internal/domain"
)

// Name is the registry name of the chatbot agent.
const Name = "gitchatbot"

const defaultSystemPrompt = "You are a development assistant embedded in a team chat. " +
	"You answer questions about the repository, tickets and pull requests. " +
	"Keep answers short and concrete."

// Agent is one chatbot invocation.
type Agent struct {
	ectx       *domain.ExecutionContext
	llm        domain.LLMProvider
	model      string
	maxHistory int
	logger     *slog.Logger
}

var _ domain.Agent = (*Agent)(nil)

// New returns a registry constructor for the chatbot.
func New(logger *slog.Logger) func(ectx *domain.ExecutionContext) (domain.Agent, error) {
	return func(ectx *domain.ExecutionContext) (domain.Agent, error) {
		h := ectx.Handles()
		if h.LLM == nil {
			return nil, domain.NewDomainError("chatbot.New", domain.ErrConfigInvalid, "no LLM provider configured")
		}
		settings := ectx.Settings()
		return &Agent{
			ectx:       ectx,
			llm:        h.LLM,
			model:      settings.String("agents.chatbot.model", settings.String("llm.default_model", "")),
			maxHistory: settings.Int("agents.chatbot.max_history", 40),
			logger:     logger,
		}, nil
	}
}

// Run processes the latest turn of the conversation.
func (a *Agent) Run(ctx context.Context) (domain.Result, error) {
	conv := a.ectx.Conversation()
	last := conv.Last()
	if last.Role != domain.RoleUser || strings.TrimSpace(last.Content) == "" {
		return domain.Result{}, fmt.Errorf("nothing to respond to: %w", domain.ErrGracefulExit)
	}

	cc := a.updateChatContext(ctx, last.Content)

	var warnings []string
	var impactNote string
	if wantsImpactAnalysis(last.Content) {
		note, warn := a.runImpactAnalysis(ctx, cc)
		impactNote = note
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	reply, err := a.respond(ctx, conv, cc, impactNote)
	if err != nil {
		return domain.Result{}, err
	}

	conv.Append(domain.Message{Role: domain.RoleAssistant, Content: reply})
	if err := a.ectx.SendResponse(ctx, reply); err != nil {
		a.logger.Warn("response delivery failed", "execution", a.ectx.ID(), "error", err)
	}
	return domain.Result{Output: reply, Warnings: warnings}, nil
}

// updateChatContext merges references found in the message into the
// persisted context. Store failures degrade to in-memory context only.
func (a *Agent) updateChatContext(ctx context.Context, message string) domain.ChatContext {
	store := a.ectx.Handles().Store
	convID := a.ectx.Conversation().ID

	var cc domain.ChatContext
	if store != nil {
		loaded, err := store.Load(ctx, convID)
		if err != nil {
			a.logger.Warn("chat context load failed", "conversation", convID, "error", err)
		} else {
			cc = loaded
		}
	}

	delta := ParseContextRefs(message)
	if delta.IsZero() {
		return cc
	}
	cc = cc.Merge(delta)
	a.logger.Info("chat context updated", "conversation", convID,
		"issue", cc.IssueID, "pr", cc.PullReqID,
		"source", cc.SourceBranch, "target", cc.TargetBranch)

	if store != nil {
		if err := store.Save(ctx, convID, cc); err != nil {
			a.logger.Warn("chat context save failed", "conversation", convID, "error", err)
		}
	}
	return cc
}

// runImpactAnalysis delegates to the impact analyzer. Failures never
// abort the conversation; the chatbot reports them in its reply instead.
func (a *Agent) runImpactAnalysis(ctx context.Context, cc domain.ChatContext) (note, warning string) {
	h := a.ectx.Handles()
	if h.Git == nil {
		return "", "impact analysis unavailable: no git repository configured"
	}
	if !cc.HasDiffSource() {
		return "", "impact analysis requested but no PR, branch pair or commit pair is known yet"
	}

	settings := a.ectx.Settings()
	analyzer := &impact.Analyzer{
		LLM:            a.llm,
		Git:            h.Git,
		PullRequests:   h.PullRequests,
		Issues:         h.Issues,
		Prompts:        a.ectx.Prompts(),
		Model:          settings.String("agents.impact.model", a.model),
		MaxFiles:       settings.Int("agents.impact.max_files", 25),
		FileTokenLimit: settings.Int("agents.impact.file_token_limit", 6000),
		Logger:         a.logger,
		Status: func(ctx context.Context, msg string) {
			if err := a.ectx.SendStatus(ctx, msg); err != nil {
				a.logger.Debug("status delivery failed", "error", err)
			}
		},
	}

	report, err := analyzer.Analyze(ctx, cc)
	if err != nil {
		a.logger.Error("impact analysis failed", "execution", a.ectx.ID(), "error", err)
		return "", fmt.Sprintf("impact analysis failed: %v", err)
	}
	return report.Text(), ""
}

// respond builds the chat request from the capped history and the
// current context, and returns the model's reply.
func (a *Agent) respond(ctx context.Context, conv *domain.Conversation, cc domain.ChatContext, impactNote string) (string, error) {
	system := a.ectx.Prompts().Get("agents.chatbot.system", defaultSystemPrompt)
	if !cc.IsZero() {
		system += "\n\nKnown conversation context:\n" + describeContext(cc)
	}
	if impactNote != "" {
		system += "\n\nA fresh impact analysis was just completed. Base your answer on it:\n" + impactNote
	}

	history := conv.Messages
	if len(history) > a.maxHistory {
		history = history[len(history)-a.maxHistory:]
	}

	resp, err := a.llm.Chat(ctx, domain.ChatRequest{
		Model:    a.model,
		System:   system,
		Messages: history,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return resp.Message.Content, nil
}

func describeContext(cc domain.ChatContext) string {
	var parts []string
	if cc.IssueID != "" {
		parts = append(parts, "issue: "+cc.IssueID)
	}
	if cc.PullReqID != "" {
		parts = append(parts, "pull request: "+cc.PullReqID)
	}
	if cc.SourceBranch != "" {
		parts = append(parts, "source branch: "+cc.SourceBranch)
	}
	if cc.TargetBranch != "" {
		parts = append(parts, "target branch: "+cc.TargetBranch)
	}
	if cc.SourceCommit != "" {
		parts = append(parts, "source commit: "+cc.SourceCommit)
	}
	if cc.TargetCommit != "" {
		parts = append(parts, "target commit: "+cc.TargetCommit)
	}
	return strings.Join(parts, "\n")
}
