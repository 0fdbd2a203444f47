package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"devagents/internal/domain"
)

// FixtureProvider serves work items and pull requests from JSON files on
// disk. It stands in for hosted trackers in development and tests: the
// fixture directory holds workitem_<id>.json and pullrequest_<id>.json
// files shaped like domain.WorkItem and domain.PullRequest.
type FixtureProvider struct {
	name string
	dir  string
}

var (
	_ domain.IssueProvider       = (*FixtureProvider)(nil)
	_ domain.PullRequestProvider = (*FixtureProvider)(nil)
)

// NewFixtureProvider builds a provider reading from dir.
func NewFixtureProvider(name, dir string) (*FixtureProvider, error) {
	if dir == "" {
		return nil, domain.NewDomainError("tracker.NewFixtureProvider", domain.ErrConfigInvalid, "fixtures_dir is required")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, domain.NewDomainError("tracker.NewFixtureProvider", domain.ErrConfigInvalid,
			fmt.Sprintf("fixtures_dir %q is not a directory", dir))
	}
	return &FixtureProvider{name: name, dir: dir}, nil
}

func (p *FixtureProvider) Name() string { return p.name }

// LoadWorkItem reads workitem_<id>.json. A missing file maps to
// ErrWorkItemNotFound.
func (p *FixtureProvider) LoadWorkItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var item domain.WorkItem
	if err := p.load("workitem_"+sanitizeID(id)+".json", &item); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewDomainError("tracker.LoadWorkItem", domain.ErrWorkItemNotFound,
				fmt.Sprintf("work item %s", id))
		}
		return nil, domain.NewDomainError("tracker.LoadWorkItem", domain.ErrIntegration, err.Error())
	}
	if item.ID == "" {
		item.ID = id
	}
	return &item, nil
}

// LoadPullRequest reads pullrequest_<id>.json. A missing file maps to
// ErrPullRequestMissing.
func (p *FixtureProvider) LoadPullRequest(ctx context.Context, id string) (*domain.PullRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pr domain.PullRequest
	if err := p.load("pullrequest_"+sanitizeID(id)+".json", &pr); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewDomainError("tracker.LoadPullRequest", domain.ErrPullRequestMissing,
				fmt.Sprintf("pull request %s", id))
		}
		return nil, domain.NewDomainError("tracker.LoadPullRequest", domain.ErrIntegration, err.Error())
	}
	if pr.ID == "" {
		pr.ID = id
	}
	return &pr, nil
}

func (p *FixtureProvider) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// sanitizeID keeps fixture lookups inside the fixture directory.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

// RegisterBuiltinFactories wires the fixture-backed providers into a
// registry under the names the default configuration uses. The factory
// only activates when the entry carries a fixtures_dir option, so hosted
// entries in the same list pass through untouched.
func RegisterBuiltinFactories(r *ProviderRegistry) {
	fixtureIssue := func(name string) IssueFactory {
		return func(opts map[string]string) (domain.IssueProvider, error) {
			dir, ok := opts["fixtures_dir"]
			if !ok {
				return nil, nil
			}
			return NewFixtureProvider(name, dir)
		}
	}
	fixturePullReq := func(name string) PullRequestFactory {
		return func(opts map[string]string) (domain.PullRequestProvider, error) {
			dir, ok := opts["fixtures_dir"]
			if !ok {
				return nil, nil
			}
			return NewFixtureProvider(name, dir)
		}
	}
	for _, name := range []string{"devops", "gitlab"} {
		r.RegisterIssueFactory(name, fixtureIssue(name))
		r.RegisterPullRequestFactory(name, fixturePullReq(name))
	}
}
