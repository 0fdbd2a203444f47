package domain

import "context"

// ChatContext is the slice of conversation state the chatbot persists
// between turns: which issue, PR, branches or commits the dialogue is about.
type ChatContext struct {
	IssueID      string `json:"issue_id,omitempty"`
	PullReqID    string `json:"pull_request_id,omitempty"`
	SourceBranch string `json:"source_branch,omitempty"`
	TargetBranch string `json:"target_branch,omitempty"`
	SourceCommit string `json:"source_commit,omitempty"`
	TargetCommit string `json:"target_commit,omitempty"`
}

// IsZero reports whether no field is set.
func (c ChatContext) IsZero() bool { return c == ChatContext{} }

// HasDiffSource reports whether the context carries enough information to
// build a diff (a PR, a branch pair, or a commit pair).
func (c ChatContext) HasDiffSource() bool {
	if c.PullReqID != "" {
		return true
	}
	if c.SourceBranch != "" && c.TargetBranch != "" {
		return true
	}
	return c.SourceCommit != "" && c.TargetCommit != ""
}

// Merge returns c overlaid with the non-empty fields of other.
func (c ChatContext) Merge(other ChatContext) ChatContext {
	if other.IssueID != "" {
		c.IssueID = other.IssueID
	}
	if other.PullReqID != "" {
		c.PullReqID = other.PullReqID
	}
	if other.SourceBranch != "" {
		c.SourceBranch = other.SourceBranch
	}
	if other.TargetBranch != "" {
		c.TargetBranch = other.TargetBranch
	}
	if other.SourceCommit != "" {
		c.SourceCommit = other.SourceCommit
	}
	if other.TargetCommit != "" {
		c.TargetCommit = other.TargetCommit
	}
	return c
}

// ContextStore persists ChatContext keyed by conversation ID.
type ContextStore interface {
	// Save upserts the context for a conversation.
	Save(ctx context.Context, conversationID string, cc ChatContext) error
	// Load returns the stored context, or a zero ChatContext when none exists.
	Load(ctx context.Context, conversationID string) (ChatContext, error)
}
