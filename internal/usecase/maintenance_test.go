package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"devagents/internal/domain"
)

type fakeGitClient struct {
	refreshes int
	err       error
}

func (f *fakeGitClient) DiffRefs(ctx context.Context, src, tgt, description string, includePatch bool) (*domain.GitDiffContext, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGitClient) Refresh(ctx context.Context) error {
	f.refreshes++
	return f.err
}

type fakePruner struct {
	calls   int
	lastAge time.Duration
	err     error
}

func (f *fakePruner) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	f.calls++
	f.lastAge = maxAge
	return 2, f.err
}

func TestMaintenanceRunTasks(t *testing.T) {
	git := &fakeGitClient{}
	pruner := &fakePruner{}
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	m := NewMaintenance(git, pruner, 24*time.Hour, "@every 1h", logger)

	m.RunTasks(context.Background())

	if git.refreshes != 1 {
		t.Errorf("refreshes = %d", git.refreshes)
	}
	if pruner.calls != 1 || pruner.lastAge != 24*time.Hour {
		t.Errorf("pruner calls = %d, age = %v", pruner.calls, pruner.lastAge)
	}
}

func TestMaintenanceTaskFailureDoesNotAbort(t *testing.T) {
	git := &fakeGitClient{err: errors.New("remote unreachable")}
	pruner := &fakePruner{}
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	m := NewMaintenance(git, pruner, time.Hour, "@every 1h", logger)

	m.RunTasks(context.Background())

	if pruner.calls != 1 {
		t.Errorf("prune skipped after refresh failure")
	}
}

func TestMaintenanceDisabledPrune(t *testing.T) {
	pruner := &fakePruner{}
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	m := NewMaintenance(nil, pruner, 0, "@every 1h", logger)

	m.RunTasks(context.Background())

	if pruner.calls != 0 {
		t.Errorf("prune ran with zero max age")
	}
}

func TestMaintenanceBadSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	m := NewMaintenance(nil, nil, 0, "not a schedule", logger)

	if err := m.Start(); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
}

func TestMaintenanceStartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	m := NewMaintenance(&fakeGitClient{}, nil, 0, "@every 1h", logger)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Stop()
}
