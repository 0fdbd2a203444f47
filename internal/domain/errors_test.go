package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorUnwraps(t *testing.T) {
	err := NewDomainError("Registry.Resolve", ErrAgentNotFound, "ghost")

	if !errors.Is(err, ErrAgentNotFound) {
		t.Error("does not unwrap to sentinel")
	}
	if got := err.Error(); got != "Registry.Resolve: ghost: agent not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDomainErrorWithoutDetail(t *testing.T) {
	err := NewDomainError("store.Open", ErrStoreUnavailable, "")
	if got := err.Error(); got != "store.Open: context store unavailable" {
		t.Errorf("Error() = %q", got)
	}
}

func TestProviderErrorsUnwrapToIntegration(t *testing.T) {
	for _, err := range []error{ErrAuthInvalid, ErrRateLimit, ErrContextOverflow, ErrProviderFault} {
		if !errors.Is(err, ErrIntegration) {
			t.Errorf("%v does not unwrap to ErrIntegration", err)
		}
	}
}

func TestErrorCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{nil, CodeUnknown},
		{errors.New("plain"), CodeUnknown},
		{ErrAgentNotFound, CodeAgentNotFound},
		{fmt.Errorf("wrap: %w", ErrTimeout), CodeTimeout},
		{NewDomainError("op", ErrConfigInvalid, "x"), CodeConfigInvalid},
		// Specific provider errors win over the ErrIntegration they wrap.
		{fmt.Errorf("llm: %w", ErrRateLimit), CodeRateLimit},
		{fmt.Errorf("llm: %w", ErrIntegration), CodeIntegration},
		{ErrGracefulExit, CodeGracefulExit},
	}
	for _, tc := range cases {
		if got := ErrorCodeOf(tc.err); got != tc.want {
			t.Errorf("ErrorCodeOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(fmt.Errorf("llm: %w", ErrRateLimit)) {
		t.Error("rate limit should be retryable")
	}
	if !IsRetryableError(ErrTimeout) {
		t.Error("timeout should be retryable")
	}
	if IsRetryableError(ErrAuthInvalid) {
		t.Error("auth failure should not be retryable")
	}
	if IsRetryableError(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestWrapOp(t *testing.T) {
	if WrapOp("op", nil) != nil {
		t.Error("WrapOp(nil) should be nil")
	}
	err := WrapOp("git.DiffRefs", ErrIntegration)
	if !errors.Is(err, ErrIntegration) {
		t.Error("wrapped error lost its sentinel")
	}
}
