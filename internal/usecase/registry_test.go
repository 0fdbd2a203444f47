package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"devagents/internal/domain"
)

type nopAgent struct{}

func (nopAgent) Run(ctx context.Context) (domain.Result, error) { return domain.Result{}, nil }

func nopConstructor(ectx *domain.ExecutionContext) (domain.Agent, error) {
	return nopAgent{}, nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", nopConstructor); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctor, err := r.Resolve("echo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctor == nil {
		t.Fatal("nil constructor")
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", nopConstructor); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := r.Register("echo", nopConstructor)
	if !errors.Is(err, domain.ErrAgentDuplicate) {
		t.Fatalf("err = %v, want ErrAgentDuplicate", err)
	}

	// The original registration survives the rejected one.
	if _, err := r.Resolve("echo"); err != nil {
		t.Errorf("Resolve after duplicate: %v", err)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("  ", nopConstructor); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank name: err = %v, want ErrInvalidInput", err)
	}
	if err := r.Register("echo", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("nil constructor: err = %v, want ErrInvalidInput", err)
	}
}

func TestResolveUnknownListsRegistered(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"beta", "alpha"} {
		if err := r.Register(name, nopConstructor); err != nil {
			t.Fatal(err)
		}
	}

	_, err := r.Resolve("ghost")
	if !errors.Is(err, domain.ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
	var derr *domain.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("err is not a DomainError: %v", err)
	}
	if derr.Detail != "ghost (registered: alpha, beta)" {
		t.Errorf("detail = %q", derr.Detail)
	}

	// A failed lookup never mutates the registry.
	if got := r.Names(); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Errorf("names after failed lookup = %v", got)
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(name, nopConstructor); err != nil {
			t.Fatal(err)
		}
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestRegistryConcurrentResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", nopConstructor); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if _, err := r.Resolve("echo"); err != nil {
					t.Errorf("Resolve: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
