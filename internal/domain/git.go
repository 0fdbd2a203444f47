package domain

import "context"

// ChangedFile is a single file changed between two revisions.
type ChangedFile struct {
	// Path is the repository-relative path (new path for renames).
	Path string `json:"path"`
	// Status is the single-letter git status: A/M/D/R/C/T.
	Status string `json:"status"`
	// Insertions and Deletions are line counts; both are -1 for binary diffs.
	Insertions int `json:"insertions"`
	Deletions  int `json:"deletions"`
	// Binary is true if the file is binary in this diff.
	Binary bool `json:"binary"`
	// Patch is the full diff text. Heavy; populated only on demand.
	Patch string `json:"patch,omitempty"`
}

// ChangedFileSet holds all changes unique to source since its divergence
// from target.
type ChangedFileSet struct {
	SourceRef string        `json:"source_ref"`
	TargetRef string        `json:"target_ref"`
	Files     []ChangedFile `json:"files"`
}

// Paths returns just the changed paths.
func (s *ChangedFileSet) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// DiffMetadata summarizes a loaded diff.
type DiffMetadata struct {
	TotalFiles int `json:"total_files"`
	Insertions int `json:"insertions"`
	Deletions  int `json:"deletions"`
}

// GitDiffContext combines git data with the business context it was loaded
// for (work item description, PR title, or a plain ref comparison note).
type GitDiffContext struct {
	Changed   ChangedFileSet `json:"changed"`
	SourceRef string         `json:"source_ref"`
	TargetRef string         `json:"target_ref"`
	RepoPath  string         `json:"repo_path"`
	Context   string         `json:"context"`
	Metadata  DiffMetadata   `json:"metadata"`
}

// HasChanges reports whether any file changes were found.
func (d *GitDiffContext) HasChanges() bool { return len(d.Changed.Files) > 0 }

// GitClient exposes read-only diff queries against a local repository.
// Write operations are deliberately absent.
type GitClient interface {
	// DiffRefs returns the diff context between two refs (branches, tags or
	// commit hashes). When includePatch is set, per-file patches are loaded.
	DiffRefs(ctx context.Context, sourceRef, targetRef, description string, includePatch bool) (*GitDiffContext, error)
	// Refresh fetches remote state, subject to the client's rate limit.
	Refresh(ctx context.Context) error
}
