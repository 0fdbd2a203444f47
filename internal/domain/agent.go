package domain

import "context"

// Agent is a unit of domain work. It consumes the execution context it was
// constructed with and produces a typed result. An agent that cannot
// complete returns an error; it never returns a silently degraded Result.
type Agent interface {
	Run(ctx context.Context) (Result, error)
}

// Result is the success payload of an agent invocation.
type Result struct {
	// Output is the agent's product: generated text, an analysis report,
	// release notes.
	Output string `json:"output"`
	// Warnings are non-fatal notes accumulated during the run
	// (e.g. files skipped from an analysis).
	Warnings []string `json:"warnings,omitempty"`
}

// FailureKind classifies why an invocation failed.
type FailureKind string

const (
	FailureConfig       FailureKind = "config"
	FailureUnknownAgent FailureKind = "unknown_agent"
	FailureIntegration  FailureKind = "integration"
	FailureTimeout      FailureKind = "timeout"
	FailureInternal     FailureKind = "internal"
)

// Failure describes a failed invocation.
type Failure struct {
	Kind FailureKind `json:"kind"`
	Err  error       `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the terminal state of one agent invocation: exactly one of
// Result or Failure is set.
type Outcome struct {
	Result  *Result  `json:"result,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// OK reports whether the invocation succeeded.
func (o Outcome) OK() bool { return o.Failure == nil }
