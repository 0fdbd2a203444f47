package domain

import "context"

// PullRequest is a pull request loaded from any provider.
type PullRequest struct {
	ID           string   `json:"id"`
	Context      string   `json:"context"` // title + description, prompt-ready
	SourceBranch string   `json:"source_branch,omitempty"`
	TargetBranch string   `json:"target_branch,omitempty"`
	SourceRefs   []string `json:"source_refs,omitempty"`
	TargetRefs   []string `json:"target_refs,omitempty"`
}

// WorkItem is an issue or work item loaded from any provider.
type WorkItem struct {
	ID      string `json:"id"`
	Context string `json:"context"` // title + description, prompt-ready
}

// PullRequestProvider loads pull requests (Azure DevOps, GitLab, ...).
// Implementations are read-only.
type PullRequestProvider interface {
	LoadPullRequest(ctx context.Context, id string) (*PullRequest, error)
	Name() string
}

// IssueProvider loads work items / issues. Implementations are read-only.
type IssueProvider interface {
	LoadWorkItem(ctx context.Context, id string) (*WorkItem, error)
	Name() string
}
