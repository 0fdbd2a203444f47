package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"devagents/internal/domain"
)

// Factory produces ready-to-run agents from the registry. It has no side
// effects beyond construction and never invokes the agent itself.
type Factory struct {
	registry *Registry
	logger   *slog.Logger
}

// NewFactory creates a factory over the given registry.
func NewFactory(registry *Registry, logger *slog.Logger) *Factory {
	return &Factory{registry: registry, logger: logger}
}

// Create resolves name and constructs an agent bound to ectx.
// Unknown identifiers propagate domain.ErrAgentNotFound from the registry;
// constructor failures surface as configuration errors.
func (f *Factory) Create(name string, ectx *domain.ExecutionContext) (domain.Agent, error) {
	ctor, err := f.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	agent, err := ctor(ectx)
	if err != nil {
		if !errors.Is(err, domain.ErrConfigInvalid) {
			err = fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
		}
		return nil, domain.WrapOp("Factory.Create "+name, err)
	}

	f.logger.Debug("agent constructed", "agent", name, "execution_id", ectx.ID())
	return agent, nil
}
