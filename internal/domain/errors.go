package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrAgentNotFound  = fmt.Errorf("agent not found")
	ErrAgentDuplicate = fmt.Errorf("agent already registered")
	ErrInvalidInput   = fmt.Errorf("invalid input")
	ErrConfigInvalid  = fmt.Errorf("configuration invalid or missing")
	ErrTimeout        = fmt.Errorf("execution budget exceeded")
	ErrIntegration    = fmt.Errorf("integration call failed")

	// LLM provider errors. All unwrap to ErrIntegration so callers can
	// treat any provider fault as an integration failure.
	ErrProviderNotFound = fmt.Errorf("llm provider not found")
	ErrAuthInvalid      = fmt.Errorf("authentication failed: %w", ErrIntegration)
	ErrRateLimit        = fmt.Errorf("rate limit exceeded: %w", ErrIntegration)
	ErrContextOverflow  = fmt.Errorf("context window exceeded: %w", ErrIntegration)
	ErrProviderFault    = fmt.Errorf("provider error: %w", ErrIntegration)

	// Tracker / store errors.
	ErrProviderUnresolved = fmt.Errorf("no provider resolved from configuration")
	ErrWorkItemNotFound   = fmt.Errorf("work item not found")
	ErrPullRequestMissing = fmt.Errorf("pull request not found")
	ErrStoreUnavailable   = fmt.Errorf("context store unavailable")

	// ErrGracefulExit is raised by agents to end processing without a
	// user-visible result (e.g. the chatbot deciding a message was not
	// addressed to it). It is not a failure.
	ErrGracefulExit = fmt.Errorf("agent exited gracefully")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Resolve")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeAgentNotFound      ErrorCode = "AGENT_NOT_FOUND"
	CodeAgentDuplicate     ErrorCode = "AGENT_DUPLICATE"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeConfigInvalid      ErrorCode = "CONFIG_INVALID"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeIntegration        ErrorCode = "INTEGRATION"
	CodeProviderNotFound   ErrorCode = "PROVIDER_NOT_FOUND"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeContextOverflow    ErrorCode = "CONTEXT_OVERFLOW"
	CodeProviderFault      ErrorCode = "PROVIDER_FAULT"
	CodeProviderUnresolved ErrorCode = "PROVIDER_UNRESOLVED"
	CodeWorkItemNotFound   ErrorCode = "WORK_ITEM_NOT_FOUND"
	CodePullRequestMissing ErrorCode = "PULL_REQUEST_NOT_FOUND"
	CodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	CodeGracefulExit       ErrorCode = "GRACEFUL_EXIT"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
// Order matters for ErrorCodeOf: more specific sentinels are listed before
// the categories they unwrap to.
var errorCodeList = []struct {
	sentinel error
	code     ErrorCode
}{
	{ErrAgentNotFound, CodeAgentNotFound},
	{ErrAgentDuplicate, CodeAgentDuplicate},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrConfigInvalid, CodeConfigInvalid},
	{ErrTimeout, CodeTimeout},
	{ErrProviderNotFound, CodeProviderNotFound},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrRateLimit, CodeRateLimit},
	{ErrContextOverflow, CodeContextOverflow},
	{ErrProviderFault, CodeProviderFault},
	{ErrProviderUnresolved, CodeProviderUnresolved},
	{ErrWorkItemNotFound, CodeWorkItemNotFound},
	{ErrPullRequestMissing, CodePullRequestMissing},
	{ErrStoreUnavailable, CodeStoreUnavailable},
	{ErrGracefulExit, CodeGracefulExit},
	{ErrIntegration, CodeIntegration},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It walks the error chain with errors.Is, matching the most specific
// sentinel first. Returns CodeUnknown if no sentinel matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, entry := range errorCodeList {
		if errors.Is(err, entry.sentinel) {
			return entry.code
		}
	}
	return CodeUnknown
}

// IsRetryableError reports whether err is a transient error that may succeed
// on retry with a fresh invocation (larger budget, lower load). The dispatch
// layer itself never retries; this is advisory for calling interfaces.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}
