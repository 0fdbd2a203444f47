// Package impact analyzes code changes between two revisions and reports
// what the changes may affect. It runs one model pass per changed file,
// bounded by file count and token limits, then a final pass that folds
// the per-file findings into a single summary.
package impact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"devagents/internal/domain"
)

const defaultFilePrompt = "You are reviewing a single file diff from a larger change set. " +
	"Describe what changed in this file and which behavior, UI or API surfaces could be affected. " +
	"Be concrete and brief."

const defaultSummaryPrompt = "You are writing an impact analysis for a code change. " +
	"Given per-file findings, produce a compact report: overall impact, affected areas, " +
	"and what should be retested. Do not repeat the findings verbatim."

// FileFinding is the model's analysis of a single changed file.
type FileFinding struct {
	Path     string
	Analysis string
}

// Report is the result of one analysis run.
type Report struct {
	Findings []FileFinding
	Summary  string
	Warnings []string
}

// Analyzer runs impact analysis over a diff. It is used both by the
// standalone agent and as a subagent of the chatbot.
type Analyzer struct {
	LLM            domain.LLMProvider
	Git            domain.GitClient
	PullRequests   domain.PullRequestProvider
	Issues         domain.IssueProvider
	Prompts        domain.PromptSet
	Model          string
	MaxFiles       int
	FileTokenLimit int
	Logger         *slog.Logger
	// Status, when set, receives progress messages during long runs.
	Status func(ctx context.Context, message string)

	enc *tiktoken.Tiktoken
}

// Analyze resolves a diff from the chat context and runs the analysis.
func (a *Analyzer) Analyze(ctx context.Context, cc domain.ChatContext) (*Report, error) {
	diff, err := a.loadDiff(ctx, cc)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeDiff(ctx, diff)
}

// AnalyzeDiff runs the analysis over an already loaded diff.
func (a *Analyzer) AnalyzeDiff(ctx context.Context, diff *domain.GitDiffContext) (*Report, error) {
	if !diff.HasChanges() {
		return &Report{Summary: "No changes found between the given revisions."}, nil
	}

	report := &Report{}
	analyzed := 0
	for _, f := range diff.Changed.Files {
		if analyzed >= a.maxFiles() {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("stopped after %d files; %d more not analyzed", analyzed, len(diff.Changed.Files)-analyzed))
			break
		}
		if f.Binary {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: binary file skipped", f.Path))
			continue
		}
		if f.Patch == "" {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: no patch content", f.Path))
			continue
		}
		if tokens := a.countTokens(f.Patch); tokens > a.fileTokenLimit() {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: patch too large (%d tokens, limit %d)", f.Path, tokens, a.fileTokenLimit()))
			continue
		}

		a.status(ctx, fmt.Sprintf("Analyzing %s (%d/%d)...", f.Path, analyzed+1, min(len(diff.Changed.Files), a.maxFiles())))
		finding, err := a.analyzeFile(ctx, diff, f)
		if err != nil {
			return nil, err
		}
		report.Findings = append(report.Findings, finding)
		analyzed++
	}

	summary, err := a.summarize(ctx, diff, report)
	if err != nil {
		return nil, err
	}
	report.Summary = summary
	return report, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, diff *domain.GitDiffContext, f domain.ChangedFile) (FileFinding, error) {
	var prompt strings.Builder
	if diff.Context != "" {
		fmt.Fprintf(&prompt, "Change context:\n%s\n\n", diff.Context)
	}
	fmt.Fprintf(&prompt, "File: %s (status %s, +%d -%d)\n\n```diff\n%s\n```",
		f.Path, f.Status, f.Insertions, f.Deletions, f.Patch)

	resp, err := a.LLM.Chat(ctx, domain.ChatRequest{
		Model:  a.Model,
		System: a.Prompts.Get("agents.impact.file", defaultFilePrompt),
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return FileFinding{}, fmt.Errorf("analyze %s: %w", f.Path, err)
	}
	return FileFinding{Path: f.Path, Analysis: resp.Message.Content}, nil
}

func (a *Analyzer) summarize(ctx context.Context, diff *domain.GitDiffContext, report *Report) (string, error) {
	if len(report.Findings) == 0 {
		return "No analyzable file changes (see warnings).", nil
	}

	var prompt strings.Builder
	if diff.Context != "" {
		fmt.Fprintf(&prompt, "Change context:\n%s\n\n", diff.Context)
	}
	fmt.Fprintf(&prompt, "%d files changed, +%d -%d.\n\nPer-file findings:\n\n",
		diff.Metadata.TotalFiles, diff.Metadata.Insertions, diff.Metadata.Deletions)
	for _, finding := range report.Findings {
		fmt.Fprintf(&prompt, "## %s\n%s\n\n", finding.Path, finding.Analysis)
	}

	a.status(ctx, "Writing impact summary...")
	resp, err := a.LLM.Chat(ctx, domain.ChatRequest{
		Model:  a.Model,
		System: a.Prompts.Get("agents.impact.summary", defaultSummaryPrompt),
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize impact: %w", err)
	}
	return resp.Message.Content, nil
}

// loadDiff builds a GitDiffContext from whatever the chat context offers,
// preferring a pull request over raw branch or commit pairs.
func (a *Analyzer) loadDiff(ctx context.Context, cc domain.ChatContext) (*domain.GitDiffContext, error) {
	if a.Git == nil {
		return nil, domain.NewDomainError("impact.loadDiff", domain.ErrConfigInvalid, "git integration is not configured")
	}

	if cc.PullReqID != "" && a.PullRequests != nil {
		pr, err := a.PullRequests.LoadPullRequest(ctx, cc.PullReqID)
		if err != nil {
			return nil, err
		}
		src, tgt := prRefs(pr)
		if src == "" || tgt == "" {
			return nil, domain.NewDomainError("impact.loadDiff", domain.ErrInvalidInput,
				fmt.Sprintf("pull request %s carries no usable source/target refs", cc.PullReqID))
		}
		description := fmt.Sprintf("Pull Request #%s\n\n%s", pr.ID, pr.Context)
		if cc.IssueID != "" && a.Issues != nil {
			if item, err := a.Issues.LoadWorkItem(ctx, cc.IssueID); err == nil {
				description += "\n\nRelated work item:\n" + item.Context
			} else {
				a.Logger.Warn("work item lookup failed", "id", cc.IssueID, "error", err)
			}
		}
		return a.Git.DiffRefs(ctx, src, tgt, description, true)
	}

	if cc.SourceBranch != "" && cc.TargetBranch != "" {
		description := fmt.Sprintf("Branch comparison: %s -> %s", cc.SourceBranch, cc.TargetBranch)
		return a.Git.DiffRefs(ctx, cc.SourceBranch, cc.TargetBranch, description, true)
	}
	if cc.SourceCommit != "" && cc.TargetCommit != "" {
		description := fmt.Sprintf("Commit comparison: %s -> %s", cc.TargetCommit, cc.SourceCommit)
		return a.Git.DiffRefs(ctx, cc.SourceCommit, cc.TargetCommit, description, true)
	}

	return nil, domain.NewDomainError("impact.loadDiff", domain.ErrInvalidInput,
		"no pull request, branch pair or commit pair in context")
}

// prRefs picks the branch fields when present, otherwise the first entry
// of each refs list.
func prRefs(pr *domain.PullRequest) (src, tgt string) {
	src, tgt = pr.SourceBranch, pr.TargetBranch
	if src == "" && len(pr.SourceRefs) > 0 {
		src = pr.SourceRefs[0]
	}
	if tgt == "" && len(pr.TargetRefs) > 0 {
		tgt = pr.TargetRefs[0]
	}
	return src, tgt
}

// countTokens measures patch size with the model's tokenizer, falling
// back to a bytes/4 estimate for unknown models.
func (a *Analyzer) countTokens(text string) int {
	if a.enc == nil {
		enc, err := tiktoken.EncodingForModel(a.Model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			return len(text) / 4
		}
		a.enc = enc
	}
	return len(a.enc.Encode(text, nil, nil))
}

func (a *Analyzer) maxFiles() int {
	if a.MaxFiles <= 0 {
		return 25
	}
	return a.MaxFiles
}

func (a *Analyzer) fileTokenLimit() int {
	if a.FileTokenLimit <= 0 {
		return 6000
	}
	return a.FileTokenLimit
}

func (a *Analyzer) status(ctx context.Context, msg string) {
	if a.Status != nil {
		a.Status(ctx, msg)
	}
}

// Text renders the report for delivery to the user: summary first, then
// warnings about anything the analysis had to skip.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(r.Summary)
	if len(r.Warnings) > 0 {
		b.WriteString("\n\nNotes:\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
