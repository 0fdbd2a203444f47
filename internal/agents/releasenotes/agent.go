// Package releasenotes drafts release notes from a diff and the work
// items it references.
package releasenotes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"devagents/internal/domain"
)

// Name is the registry name of the release notes agent.
const Name = "releasenotes"

const defaultSystemPrompt = "You write release notes for a software team. " +
	"Given changed files and related work items, produce user-facing notes grouped by theme. " +
	"Mention work item IDs where relevant. Skip internal refactoring unless it changes behavior."

var (
	refPairPattern = regexp.MustCompile(`([\w./-]+)\.\.\.?([\w./-]+)`)
	issueIDPattern = regexp.MustCompile(`#(\d+)`)
)

// Agent drafts release notes for one invocation.
type Agent struct {
	ectx   *domain.ExecutionContext
	llm    domain.LLMProvider
	git    domain.GitClient
	issues domain.IssueProvider
	model  string
	logger *slog.Logger
}

var _ domain.Agent = (*Agent)(nil)

// New returns a registry constructor for the agent.
func New(logger *slog.Logger) func(ectx *domain.ExecutionContext) (domain.Agent, error) {
	return func(ectx *domain.ExecutionContext) (domain.Agent, error) {
		h := ectx.Handles()
		if h.LLM == nil {
			return nil, domain.NewDomainError("releasenotes.New", domain.ErrConfigInvalid, "no LLM provider configured")
		}
		if h.Git == nil {
			return nil, domain.NewDomainError("releasenotes.New", domain.ErrConfigInvalid, "no git repository configured")
		}
		settings := ectx.Settings()
		return &Agent{
			ectx:   ectx,
			llm:    h.LLM,
			git:    h.Git,
			issues: h.Issues,
			model:  settings.String("agents.releasenotes.model", settings.String("llm.default_model", "")),
			logger: logger,
		}, nil
	}
}

// Run diffs the requested revisions, loads any referenced work items and
// asks the model for notes.
func (a *Agent) Run(ctx context.Context) (domain.Result, error) {
	src, tgt, err := a.resolveRefs(ctx)
	if err != nil {
		return domain.Result{}, err
	}

	if err := a.ectx.SendStatus(ctx, fmt.Sprintf("Collecting changes %s -> %s...", tgt, src)); err != nil {
		a.logger.Debug("status delivery failed", "error", err)
	}
	diff, err := a.git.DiffRefs(ctx, src, tgt, fmt.Sprintf("Release: %s -> %s", tgt, src), false)
	if err != nil {
		return domain.Result{}, err
	}
	if !diff.HasChanges() {
		out := fmt.Sprintf("No changes between %s and %s.", tgt, src)
		if err := a.ectx.SendResponse(ctx, out); err != nil {
			a.logger.Warn("response delivery failed", "execution", a.ectx.ID(), "error", err)
		}
		return domain.Result{Output: out}, nil
	}

	items, warnings := a.loadWorkItems(ctx)

	notes, err := a.draft(ctx, diff, items)
	if err != nil {
		return domain.Result{}, err
	}
	if err := a.ectx.SendResponse(ctx, notes); err != nil {
		a.logger.Warn("response delivery failed", "execution", a.ectx.ID(), "error", err)
	}
	return domain.Result{Output: notes, Warnings: warnings}, nil
}

// resolveRefs takes the revision pair from the persisted chat context
// when available, otherwise from a "target..source" pair in the latest
// user message.
func (a *Agent) resolveRefs(ctx context.Context) (src, tgt string, err error) {
	if store := a.ectx.Handles().Store; store != nil {
		cc, err := store.Load(ctx, a.ectx.Conversation().ID)
		if err != nil {
			a.logger.Warn("chat context load failed", "execution", a.ectx.ID(), "error", err)
		} else if cc.SourceBranch != "" && cc.TargetBranch != "" {
			return cc.SourceBranch, cc.TargetBranch, nil
		}
	}
	last := a.ectx.Conversation().Last()
	if m := refPairPattern.FindStringSubmatch(last.Content); m != nil {
		return m[2], m[1], nil
	}
	return "", "", domain.NewDomainError("releasenotes.resolveRefs", domain.ErrInvalidInput,
		"no revision pair found; provide one as target..source")
}

// loadWorkItems resolves #NNN references from the latest message.
func (a *Agent) loadWorkItems(ctx context.Context) ([]*domain.WorkItem, []string) {
	if a.issues == nil {
		return nil, nil
	}
	var items []*domain.WorkItem
	var warnings []string
	seen := make(map[string]bool)
	for _, m := range issueIDPattern.FindAllStringSubmatch(a.ectx.Conversation().Last().Content, -1) {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		item, err := a.issues.LoadWorkItem(ctx, id)
		if err != nil {
			a.logger.Warn("work item lookup failed", "id", id, "error", err)
			warnings = append(warnings, fmt.Sprintf("work item #%s could not be loaded", id))
			continue
		}
		items = append(items, item)
	}
	return items, warnings
}

func (a *Agent) draft(ctx context.Context, diff *domain.GitDiffContext, items []*domain.WorkItem) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "%s\n\n%d files changed, +%d -%d.\n\nChanged files:\n",
		diff.Context, diff.Metadata.TotalFiles, diff.Metadata.Insertions, diff.Metadata.Deletions)
	for _, f := range diff.Changed.Files {
		fmt.Fprintf(&prompt, "- %s (%s)\n", f.Path, f.Status)
	}
	if len(items) > 0 {
		prompt.WriteString("\nRelated work items:\n\n")
		for _, item := range items {
			fmt.Fprintf(&prompt, "## #%s\n%s\n\n", item.ID, item.Context)
		}
	}

	resp, err := a.llm.Chat(ctx, domain.ChatRequest{
		Model:  a.model,
		System: a.ectx.Prompts().Get("agents.releasenotes.system", defaultSystemPrompt),
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("draft release notes: %w", err)
	}
	return resp.Message.Content, nil
}
