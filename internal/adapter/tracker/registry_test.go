package tracker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devagents/internal/domain"
	"devagents/internal/infra/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

type staticIssueProvider struct{ name string }

func (p *staticIssueProvider) Name() string { return p.name }
func (p *staticIssueProvider) LoadWorkItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	return &domain.WorkItem{ID: id, Context: "from " + p.name}, nil
}

func TestResolveIssueFirstMatchWins(t *testing.T) {
	r := NewProviderRegistry(testLogger())
	r.RegisterIssueFactory("first", func(opts map[string]string) (domain.IssueProvider, error) {
		return &staticIssueProvider{name: "first"}, nil
	})
	r.RegisterIssueFactory("second", func(opts map[string]string) (domain.IssueProvider, error) {
		return &staticIssueProvider{name: "second"}, nil
	})

	cfg := config.TrackersConfig{Issue: []config.TrackerEntry{{Name: "first"}, {Name: "second"}}}
	p, err := r.ResolveIssue(cfg)
	if err != nil {
		t.Fatalf("ResolveIssue: %v", err)
	}
	if p.Name() != "first" {
		t.Errorf("resolved %q, want first configured entry", p.Name())
	}
}

func TestResolveIssueSkipsFailingFactory(t *testing.T) {
	r := NewProviderRegistry(testLogger())
	r.RegisterIssueFactory("broken", func(opts map[string]string) (domain.IssueProvider, error) {
		return nil, errors.New("missing credentials")
	})
	r.RegisterIssueFactory("working", func(opts map[string]string) (domain.IssueProvider, error) {
		return &staticIssueProvider{name: "working"}, nil
	})

	cfg := config.TrackersConfig{Issue: []config.TrackerEntry{{Name: "broken"}, {Name: "working"}}}
	p, err := r.ResolveIssue(cfg)
	if err != nil {
		t.Fatalf("ResolveIssue: %v", err)
	}
	if p.Name() != "working" {
		t.Errorf("resolved %q, want the entry after the failing one", p.Name())
	}
}

func TestResolveIssueNoneMatch(t *testing.T) {
	r := NewProviderRegistry(testLogger())
	r.RegisterIssueFactory("opt-out", func(opts map[string]string) (domain.IssueProvider, error) {
		return nil, nil
	})

	cfg := config.TrackersConfig{Issue: []config.TrackerEntry{{Name: "opt-out"}, {Name: "unregistered"}}}
	_, err := r.ResolveIssue(cfg)
	if !errors.Is(err, domain.ErrProviderUnresolved) {
		t.Fatalf("err = %v, want ErrProviderUnresolved", err)
	}
}

func TestResolvePullRequest(t *testing.T) {
	dir := writeFixtures(t)
	r := NewProviderRegistry(testLogger())
	RegisterBuiltinFactories(r)

	cfg := config.TrackersConfig{PullRequest: []config.TrackerEntry{
		{Name: "devops"}, // no fixtures_dir, factory opts out
		{Name: "gitlab", Options: map[string]string{"fixtures_dir": dir}},
	}}
	p, err := r.ResolvePullRequest(cfg)
	if err != nil {
		t.Fatalf("ResolvePullRequest: %v", err)
	}
	if p.Name() != "gitlab" {
		t.Errorf("resolved %q, want gitlab", p.Name())
	}
}

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"workitem_42.json": `{"id":"42","context":"Login fails on expired token\n\nUsers report 500 instead of a redirect."}`,
		"pullrequest_7.json": `{"id":"7","context":"Fix token refresh","source_branch":"fix/token-refresh",` +
			`"target_branch":"main","source_refs":["fix/token-refresh"],"target_refs":["main"]}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestFixtureProviderLoads(t *testing.T) {
	dir := writeFixtures(t)
	p, err := NewFixtureProvider("devops", dir)
	if err != nil {
		t.Fatalf("NewFixtureProvider: %v", err)
	}

	item, err := p.LoadWorkItem(context.Background(), "42")
	if err != nil {
		t.Fatalf("LoadWorkItem: %v", err)
	}
	if item.ID != "42" || !strings.Contains(item.Context, "expired token") {
		t.Errorf("work item = %+v", item)
	}

	pr, err := p.LoadPullRequest(context.Background(), "7")
	if err != nil {
		t.Fatalf("LoadPullRequest: %v", err)
	}
	if pr.SourceBranch != "fix/token-refresh" || pr.TargetBranch != "main" {
		t.Errorf("pull request = %+v", pr)
	}
}

func TestFixtureProviderNotFound(t *testing.T) {
	p, err := NewFixtureProvider("devops", writeFixtures(t))
	if err != nil {
		t.Fatalf("NewFixtureProvider: %v", err)
	}

	if _, err := p.LoadWorkItem(context.Background(), "111"); !errors.Is(err, domain.ErrWorkItemNotFound) {
		t.Errorf("work item err = %v, want ErrWorkItemNotFound", err)
	}
	if _, err := p.LoadPullRequest(context.Background(), "999"); !errors.Is(err, domain.ErrPullRequestMissing) {
		t.Errorf("pull request err = %v, want ErrPullRequestMissing", err)
	}
	if _, err := p.LoadWorkItem(context.Background(), "../escape"); !errors.Is(err, domain.ErrWorkItemNotFound) {
		t.Errorf("traversal err = %v, want ErrWorkItemNotFound", err)
	}
}
