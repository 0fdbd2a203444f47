package usecase

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"devagents/internal/domain"
)

// Dispatcher is the single entry point for calling interfaces: given an
// agent identifier and an execution context it resolves, constructs and
// runs the agent, and always returns a terminal Outcome. It holds no
// per-request state; concurrent dispatches are independent.
type Dispatcher struct {
	factory  *Factory
	executor *Executor
	logger   *slog.Logger
}

// NewDispatcher wires a factory and an executor together.
func NewDispatcher(factory *Factory, executor *Executor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{factory: factory, executor: executor, logger: logger}
}

// Dispatch runs the named agent against ectx. Construction failures (an
// unknown identifier, an invalid agent configuration) become failures
// without the agent ever running; execution failures come back classified
// from the executor.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, ectx *domain.ExecutionContext) domain.Outcome {
	agent, err := d.factory.Create(name, ectx)
	if err != nil {
		failure := classifyFailure(ctx, err)
		d.logger.Warn("dispatch failed before execution",
			"agent", name, "execution_id", ectx.ID(),
			"kind", failure.Kind, "error", err)
		return domain.Outcome{Failure: failure}
	}
	return d.executor.Run(ctx, name, agent, ectx)
}

// NewExecutionID returns a fresh ULID for an execution context.
func NewExecutionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
