// Package git implements domain.GitClient on top of the local git binary.
// All queries are read-only; the only mutating command the adapter ever
// runs is a rate-limited fetch.
package git

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"devagents/internal/domain"
	"devagents/internal/infra/config"
	"devagents/internal/infra/tracer"
)

// emptyTreeHash is the well-known hash of git's empty tree object. It is
// used as the merge base when two refs share no history, so a diff against
// a root commit still produces the full file list.
const emptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

const defaultCommandTimeout = 30 * time.Second

// runFunc executes a git command in dir and returns trimmed stdout.
type runFunc func(ctx context.Context, dir string, args ...string) (string, error)

// Repository runs git subprocesses against a single local working copy.
type Repository struct {
	dir              string
	defaultTargetRef string
	cmdTimeout       time.Duration
	autoFetch        bool
	fetchLimit       *rate.Limiter
	logger           *slog.Logger
	run              runFunc
}

var _ domain.GitClient = (*Repository)(nil)

// New builds a Repository from configuration.
func New(cfg config.GitConfig, logger *slog.Logger) (*Repository, error) {
	if cfg.RepoDir == "" {
		return nil, domain.NewDomainError("git.New", domain.ErrConfigInvalid, "git.repo_dir is required")
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	interval := cfg.FetchMinInterval
	if interval <= 0 {
		interval = time.Minute
	}
	r := &Repository{
		dir:              cfg.RepoDir,
		defaultTargetRef: cfg.DefaultTargetRef,
		cmdTimeout:       timeout,
		autoFetch:        cfg.AutoFetch,
		fetchLimit:       rate.NewLimiter(rate.Every(interval), 1),
		logger:           logger,
	}
	r.run = r.runGit
	return r, nil
}

// DiffRefs returns all changes unique to sourceRef since it diverged from
// targetRef, the same view a pull request diff shows. An empty targetRef
// falls back to the configured default.
func (r *Repository) DiffRefs(ctx context.Context, sourceRef, targetRef, description string, includePatch bool) (*domain.GitDiffContext, error) {
	ctx, span := tracer.StartSpan(ctx, "git.diff_refs")
	defer span.End()

	if targetRef == "" {
		targetRef = r.defaultTargetRef
	}
	if sourceRef == "" || targetRef == "" {
		return nil, domain.NewDomainError("git.DiffRefs", domain.ErrInvalidInput, "source and target refs are required")
	}

	r.maybeFetch(ctx)

	src, err := r.resolveRef(ctx, sourceRef)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tgt, err := r.resolveRef(ctx, targetRef)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	base := r.mergeBase(ctx, src, tgt)

	statuses, err := r.nameStatus(ctx, base, src)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	counts, err := r.numstat(ctx, base, src)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	files := make([]domain.ChangedFile, 0, len(statuses))
	meta := domain.DiffMetadata{}
	for path, status := range statuses {
		f := domain.ChangedFile{Path: path, Status: status, Insertions: -1, Deletions: -1, Binary: true}
		if c, ok := counts[path]; ok {
			f.Insertions, f.Deletions, f.Binary = c.insertions, c.deletions, c.binary
		}
		if includePatch && !f.Binary {
			patch, perr := r.run(ctx, r.dir, "diff", base, src, "--", path)
			if perr != nil {
				r.logger.Warn("patch load failed", "path", path, "error", perr)
			} else {
				f.Patch = patch
			}
		}
		meta.TotalFiles++
		if !f.Binary {
			meta.Insertions += f.Insertions
			meta.Deletions += f.Deletions
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	tracer.SetOK(span)
	return &domain.GitDiffContext{
		Changed:   domain.ChangedFileSet{SourceRef: sourceRef, TargetRef: targetRef, Files: files},
		SourceRef: sourceRef,
		TargetRef: targetRef,
		RepoPath:  r.dir,
		Context:   description,
		Metadata:  meta,
	}, nil
}

// Refresh fetches remote state. Calls inside the configured minimum
// interval are dropped without error.
func (r *Repository) Refresh(ctx context.Context) error {
	if !r.fetchLimit.Allow() {
		r.logger.Debug("fetch rate limited", "repo", r.dir)
		return nil
	}
	if _, err := r.run(ctx, r.dir, "fetch", "--prune", "origin"); err != nil {
		return domain.NewDomainError("git.Refresh", domain.ErrIntegration, err.Error())
	}
	r.logger.Debug("fetched remote state", "repo", r.dir)
	return nil
}

// maybeFetch refreshes the working copy before a diff when auto-fetch is
// enabled. Failures are logged, never fatal: a stale diff beats no diff.
func (r *Repository) maybeFetch(ctx context.Context) {
	if !r.autoFetch {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("auto-fetch failed", "repo", r.dir, "error", err)
	}
}

// resolveRef returns the first form of ref git can verify, trying the
// local name first, then its origin-qualified forms.
func (r *Repository) resolveRef(ctx context.Context, ref string) (string, error) {
	for _, candidate := range []string{ref, "origin/" + ref, "remotes/origin/" + ref} {
		if _, err := r.run(ctx, r.dir, "rev-parse", "--verify", "--quiet", candidate); err == nil {
			return candidate, nil
		}
	}
	return "", domain.NewDomainError("git.resolveRef", domain.ErrIntegration,
		fmt.Sprintf("ref %q not found locally or on origin", ref))
}

func (r *Repository) mergeBase(ctx context.Context, src, tgt string) string {
	out, err := r.run(ctx, r.dir, "merge-base", tgt, src)
	if err != nil || out == "" {
		return emptyTreeHash
	}
	return out
}

func (r *Repository) nameStatus(ctx context.Context, base, src string) (map[string]string, error) {
	out, err := r.run(ctx, r.dir, "diff", "--name-status", "-M", "-C", base, src)
	if err != nil {
		return nil, domain.NewDomainError("git.nameStatus", domain.ErrIntegration, err.Error())
	}
	return parseNameStatus(out), nil
}

type lineCounts struct {
	insertions int
	deletions  int
	binary     bool
}

func (r *Repository) numstat(ctx context.Context, base, src string) (map[string]lineCounts, error) {
	out, err := r.run(ctx, r.dir, "diff", "--numstat", "-M", "-C", base, src)
	if err != nil {
		return nil, domain.NewDomainError("git.numstat", domain.ErrIntegration, err.Error())
	}
	return parseNumstat(out), nil
}

// parseNameStatus maps changed paths to their single-letter status. Rename
// and copy lines carry a score suffix (R100) and two paths; the new path
// wins and the score is stripped.
func parseNameStatus(out string) map[string]string {
	statuses := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status := parts[0]
		if strings.HasPrefix(status, "R") || strings.HasPrefix(status, "C") {
			statuses[parts[len(parts)-1]] = status[:1]
		} else {
			statuses[parts[1]] = status
		}
	}
	return statuses
}

// parseNumstat maps changed paths to insertion/deletion counts. Binary
// files report "-" in both columns; they come back with counts of -1 and
// the binary flag set. Rename lines may use either the tab-separated
// "old\tnew" form or the brace form "dir/{old => new}/file".
func parseNumstat(out string) map[string]lineCounts {
	counts := make(map[string]lineCounts)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		c := lineCounts{insertions: -1, deletions: -1, binary: true}
		if parts[0] != "-" && parts[1] != "-" {
			ins, ierr := strconv.Atoi(parts[0])
			del, derr := strconv.Atoi(parts[1])
			if ierr != nil || derr != nil {
				continue
			}
			c = lineCounts{insertions: ins, deletions: del}
		}
		counts[numstatPath(parts[2])] = c
	}
	return counts
}

// numstatPath normalizes the path column of a numstat line to the new
// path of the file.
func numstatPath(raw string) string {
	if i := strings.LastIndex(raw, "\t"); i >= 0 {
		return raw[i+1:]
	}
	if open := strings.Index(raw, "{"); open >= 0 {
		if end := strings.Index(raw[open:], "}"); end >= 0 {
			inner := raw[open+1 : open+end]
			if arrow := strings.Index(inner, " => "); arrow >= 0 {
				replaced := raw[:open] + inner[arrow+4:] + raw[open+end+1:]
				return strings.ReplaceAll(replaced, "//", "/")
			}
		}
	}
	if arrow := strings.Index(raw, " => "); arrow >= 0 {
		return raw[arrow+4:]
	}
	return raw
}

// runGit executes git with the repository's command timeout.
func (r *Repository) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cmdTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running git", "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}
