package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"devagents/internal/domain"
	"devagents/internal/infra/tracer"
)

// Executor runs one agent within the execution context's budget and
// converts every way a run can end into a typed Outcome. There is no
// automatic retry here: retry policy belongs to the integration handles,
// and the calling interface decides what to do with a failure.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger}
}

// Run invokes agent.Run bounded by ectx.Budget. It recovers panics, maps
// context expiry to a timeout failure, and treats domain.ErrGracefulExit
// as an empty success. The returned Outcome has exactly one of Result or
// Failure set.
func (x *Executor) Run(ctx context.Context, name string, agent domain.Agent, ectx *domain.ExecutionContext) domain.Outcome {
	ctx, span := tracer.StartSpan(ctx, "agent.run",
		trace.WithAttributes(
			tracer.StringAttr("agent", name),
			tracer.StringAttr("execution_id", ectx.ID()),
		),
	)
	defer span.End()

	if budget := ectx.Budget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	start := time.Now()
	result, err := x.runGuarded(ctx, agent)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		x.logger.Info("agent completed", "agent", name, "execution_id", ectx.ID(),
			"duration", elapsed, "warnings", len(result.Warnings))
		tracer.SetOK(span)
		return domain.Outcome{Result: &result}

	case errors.Is(err, domain.ErrGracefulExit):
		x.logger.Info("agent exited gracefully", "agent", name, "execution_id", ectx.ID())
		tracer.SetOK(span)
		return domain.Outcome{Result: &domain.Result{}}

	default:
		failure := classifyFailure(ctx, err)
		x.logger.Warn("agent failed", "agent", name, "execution_id", ectx.ID(),
			"duration", elapsed, "kind", failure.Kind, "error", err,
			"code", domain.ErrorCodeOf(err))
		tracer.RecordError(span, err)
		return domain.Outcome{Failure: failure}
	}
}

// runGuarded executes agent.Run on a separate goroutine so an expired
// budget surfaces promptly even if the agent ignores ctx, and so a panic
// inside an agent never escapes to the caller.
func (x *Executor) runGuarded(ctx context.Context, agent domain.Agent) (domain.Result, error) {
	type outcome struct {
		result domain.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("agent panicked: %v", rec)}
			}
		}()
		result, err := agent.Run(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		// The goroutine is abandoned; well-behaved agents observe ctx and
		// unwind on their own. No partial result is salvaged.
		return domain.Result{}, ctx.Err()
	}
}

// classifyFailure maps an error to the failure taxonomy.
func classifyFailure(ctx context.Context, err error) *domain.Failure {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrTimeout):
		return &domain.Failure{Kind: domain.FailureTimeout, Err: fmt.Errorf("%w: %w", domain.ErrTimeout, err)}
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return &domain.Failure{Kind: domain.FailureTimeout, Err: err}
	case errors.Is(err, domain.ErrConfigInvalid):
		return &domain.Failure{Kind: domain.FailureConfig, Err: err}
	case errors.Is(err, domain.ErrAgentNotFound):
		return &domain.Failure{Kind: domain.FailureUnknownAgent, Err: err}
	case errors.Is(err, domain.ErrIntegration),
		errors.Is(err, domain.ErrProviderUnresolved),
		errors.Is(err, domain.ErrWorkItemNotFound),
		errors.Is(err, domain.ErrPullRequestMissing),
		errors.Is(err, domain.ErrStoreUnavailable):
		return &domain.Failure{Kind: domain.FailureIntegration, Err: err}
	default:
		return &domain.Failure{Kind: domain.FailureInternal, Err: err}
	}
}
