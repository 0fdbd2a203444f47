package impact

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"devagents/internal/domain"
)

// Name is the registry name of the standalone impact analysis agent.
const Name = "impactanalysis"

var refPairPattern = regexp.MustCompile(`([\w./-]+)\.\.\.?([\w./-]+)`)

// Agent runs impact analysis as a directly dispatchable agent. The diff
// source comes from the persisted chat context when one exists, otherwise
// from a "source..target" ref pair in the latest user message.
type Agent struct {
	ectx     *domain.ExecutionContext
	analyzer *Analyzer
	logger   *slog.Logger
}

var _ domain.Agent = (*Agent)(nil)

// New returns a registry constructor for the agent.
func New(logger *slog.Logger) func(ectx *domain.ExecutionContext) (domain.Agent, error) {
	return func(ectx *domain.ExecutionContext) (domain.Agent, error) {
		h := ectx.Handles()
		if h.LLM == nil {
			return nil, domain.NewDomainError("impact.New", domain.ErrConfigInvalid, "no LLM provider configured")
		}
		if h.Git == nil {
			return nil, domain.NewDomainError("impact.New", domain.ErrConfigInvalid, "no git repository configured")
		}
		settings := ectx.Settings()
		a := &Analyzer{
			LLM:            h.LLM,
			Git:            h.Git,
			PullRequests:   h.PullRequests,
			Issues:         h.Issues,
			Prompts:        ectx.Prompts(),
			Model:          settings.String("agents.impact.model", settings.String("llm.default_model", "")),
			MaxFiles:       settings.Int("agents.impact.max_files", 25),
			FileTokenLimit: settings.Int("agents.impact.file_token_limit", 6000),
			Logger:         logger,
			Status: func(ctx context.Context, msg string) {
				if err := ectx.SendStatus(ctx, msg); err != nil {
					logger.Debug("status delivery failed", "error", err)
				}
			},
		}
		return &Agent{ectx: ectx, analyzer: a, logger: logger}, nil
	}
}

// Run resolves the diff source and produces the impact report.
func (a *Agent) Run(ctx context.Context) (domain.Result, error) {
	cc, err := a.resolveContext(ctx)
	if err != nil {
		return domain.Result{}, err
	}

	report, err := a.analyzer.Analyze(ctx, cc)
	if err != nil {
		return domain.Result{}, err
	}

	text := report.Text()
	if err := a.ectx.SendResponse(ctx, text); err != nil {
		a.logger.Warn("response delivery failed", "execution", a.ectx.ID(), "error", err)
	}
	return domain.Result{Output: text, Warnings: report.Warnings}, nil
}

// resolveContext prefers the persisted chat context; when that has no
// diff source it falls back to a ref pair in the latest user message.
func (a *Agent) resolveContext(ctx context.Context) (domain.ChatContext, error) {
	var cc domain.ChatContext
	if store := a.ectx.Handles().Store; store != nil {
		loaded, err := store.Load(ctx, a.ectx.Conversation().ID)
		if err != nil {
			a.logger.Warn("chat context load failed", "execution", a.ectx.ID(), "error", err)
		} else {
			cc = loaded
		}
	}
	if cc.HasDiffSource() {
		return cc, nil
	}

	last := a.ectx.Conversation().Last()
	if m := refPairPattern.FindStringSubmatch(last.Content); m != nil {
		cc.SourceBranch, cc.TargetBranch = m[2], m[1]
		return cc, nil
	}
	return cc, domain.NewDomainError("impact.resolveContext", domain.ErrInvalidInput,
		fmt.Sprintf("no diff source in context or message for conversation %s", a.ectx.Conversation().ID))
}
