// Package tracker resolves issue and pull-request providers from
// configuration. Providers register factories by name; resolution walks
// the configured entries in order and the first factory that produces a
// provider wins.
package tracker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"devagents/internal/domain"
	"devagents/internal/infra/config"
)

// IssueFactory builds an issue provider from its configured options.
// Returning (nil, nil) means the options don't apply to this factory and
// resolution moves on.
type IssueFactory func(opts map[string]string) (domain.IssueProvider, error)

// PullRequestFactory builds a pull-request provider from its configured
// options, with the same (nil, nil) skip convention.
type PullRequestFactory func(opts map[string]string) (domain.PullRequestProvider, error)

// ProviderRegistry maps provider names to factories.
type ProviderRegistry struct {
	mu      sync.RWMutex
	issue   map[string]IssueFactory
	pullReq map[string]PullRequestFactory
	logger  *slog.Logger
}

func NewProviderRegistry(logger *slog.Logger) *ProviderRegistry {
	return &ProviderRegistry{
		issue:   make(map[string]IssueFactory),
		pullReq: make(map[string]PullRequestFactory),
		logger:  logger,
	}
}

// RegisterIssueFactory adds a named issue provider factory. Later
// registrations under the same name replace earlier ones.
func (r *ProviderRegistry) RegisterIssueFactory(name string, factory IssueFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issue[name] = factory
	r.logger.Debug("registered issue provider factory", "name", name)
}

// RegisterPullRequestFactory adds a named pull-request provider factory.
func (r *ProviderRegistry) RegisterPullRequestFactory(name string, factory PullRequestFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pullReq[name] = factory
	r.logger.Debug("registered pull request provider factory", "name", name)
}

// IssueFactoryNames returns the registered issue factory names, sorted.
func (r *ProviderRegistry) IssueFactoryNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.issue))
	for name := range r.issue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PullRequestFactoryNames returns the registered pull-request factory
// names, sorted.
func (r *ProviderRegistry) PullRequestFactoryNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pullReq))
	for name := range r.pullReq {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveIssue walks the configured issue tracker entries in order and
// returns the first provider a factory produces. Factory errors are
// logged and skipped so a broken entry never shadows a working one.
func (r *ProviderRegistry) ResolveIssue(cfg config.TrackersConfig) (domain.IssueProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tried := make([]string, 0, len(cfg.Issue))
	for _, entry := range cfg.Issue {
		factory, ok := r.issue[entry.Name]
		if !ok {
			continue
		}
		tried = append(tried, entry.Name)
		provider, err := factory(entry.Options)
		if err != nil {
			r.logger.Warn("issue provider factory failed", "name", entry.Name, "error", err)
			continue
		}
		if provider == nil {
			continue
		}
		r.logger.Info("resolved issue provider", "name", entry.Name)
		return provider, nil
	}
	return nil, domain.NewDomainError("tracker.ResolveIssue", domain.ErrProviderUnresolved,
		fmt.Sprintf("no issue provider matched configuration (tried: %s)", strings.Join(tried, ", ")))
}

// ResolvePullRequest is ResolveIssue for pull-request providers.
func (r *ProviderRegistry) ResolvePullRequest(cfg config.TrackersConfig) (domain.PullRequestProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tried := make([]string, 0, len(cfg.PullRequest))
	for _, entry := range cfg.PullRequest {
		factory, ok := r.pullReq[entry.Name]
		if !ok {
			continue
		}
		tried = append(tried, entry.Name)
		provider, err := factory(entry.Options)
		if err != nil {
			r.logger.Warn("pull request provider factory failed", "name", entry.Name, "error", err)
			continue
		}
		if provider == nil {
			continue
		}
		r.logger.Info("resolved pull request provider", "name", entry.Name)
		return provider, nil
	}
	return nil, domain.NewDomainError("tracker.ResolvePullRequest", domain.ErrProviderUnresolved,
		fmt.Sprintf("no pull request provider matched configuration (tried: %s)", strings.Join(tried, ", ")))
}
