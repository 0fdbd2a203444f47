package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"devagents/internal/adapter/git"
	"devagents/internal/adapter/llm"
	"devagents/internal/adapter/store"
	"devagents/internal/adapter/tracker"
	"devagents/internal/agents/chatbot"
	"devagents/internal/agents/impact"
	"devagents/internal/agents/releasenotes"
	"devagents/internal/domain"
	"devagents/internal/infra/config"
	"devagents/internal/infra/logger"
	"devagents/internal/infra/tracer"
	"devagents/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath      = flag.String("config", "config/config.yaml", "path to config file")
		agentName    = flag.String("agent", chatbot.Name, "agent to dispatch to")
		input        = flag.String("input", "", "run one message and exit")
		conversation = flag.String("conversation", "console", "conversation id")
	)
	flag.Parse()

	if _, err := os.Stat(*cfgPath); os.IsNotExist(err) {
		fmt.Printf("No configuration found at %s.\nCopy config/config.yaml from the repository and set your provider API key\n(ANTHROPIC_API_KEY or OPENAI_API_KEY).\n", *cfgPath)
		return nil
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	handles, contextStore, cleanup, err := buildHandles(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := usecase.NewRegistry()
	for name, ctor := range map[string]usecase.Constructor{
		chatbot.Name:      chatbot.New(log),
		impact.Name:       impact.New(log),
		releasenotes.Name: releasenotes.New(log),
	} {
		if err := registry.Register(name, ctor); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	dispatcher := usecase.NewDispatcher(
		usecase.NewFactory(registry, log),
		usecase.NewExecutor(log),
		log,
	)

	if cfg.Maintenance.Enabled {
		maint := usecase.NewMaintenance(handles.Git, contextStore, cfg.Store.MaxAge, cfg.Maintenance.Schedule, log)
		if err := maint.Start(); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
		defer maint.Stop()
	}

	prompts := loadPrompts(cfg, log)
	settings := domain.NewSnapshot(cfg.Snapshot())

	console := &consoleSession{
		dispatcher: dispatcher,
		settings:   settings,
		prompts:    prompts,
		handles:    handles,
		budget:     cfg.Agents.Budget,
		agent:      *agentName,
		convID:     *conversation,
		logger:     log,
	}

	if *input != "" {
		return console.runOnce(ctx, *input)
	}
	return console.runLoop(ctx)
}

// buildHandles wires the integration adapters from configuration. Missing
// optional integrations come back as nil handles with a log line, not as
// startup failures.
func buildHandles(cfg *config.Config, log *slog.Logger) (domain.Handles, *store.SQLiteStore, func(), error) {
	noop := func() {}

	_, provider, err := llm.BuildRegistry(cfg.LLM, log)
	if err != nil {
		return domain.Handles{}, nil, noop, fmt.Errorf("llm: %w", err)
	}

	gitClient, err := git.New(cfg.Git, log)
	if err != nil {
		return domain.Handles{}, nil, noop, fmt.Errorf("git: %w", err)
	}

	trackers := tracker.NewProviderRegistry(log)
	tracker.RegisterBuiltinFactories(trackers)
	issues, err := trackers.ResolveIssue(cfg.Trackers)
	if err != nil {
		log.Info("running without issue provider", "reason", err)
	}
	pullRequests, err := trackers.ResolvePullRequest(cfg.Trackers)
	if err != nil {
		log.Info("running without pull request provider", "reason", err)
	}

	contextStore, err := store.Open(cfg.Store, log)
	if err != nil {
		return domain.Handles{}, nil, noop, fmt.Errorf("store: %w", err)
	}

	handles := domain.Handles{
		LLM:          provider,
		Git:          gitClient,
		Issues:       issues,
		PullRequests: pullRequests,
		Store:        contextStore,
	}
	return handles, contextStore, func() { contextStore.Close() }, nil
}

func loadPrompts(cfg *config.Config, log *slog.Logger) domain.PromptSet {
	prompts, err := config.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		log.Warn("prompts not loaded, using built-in defaults", "path", cfg.PromptsPath, "error", err)
		return domain.NewPromptSet(nil)
	}
	return prompts
}

// consoleSession drives agents from the terminal. It is the bootstrap
// front end: the same dispatch path a chat channel adapter would use.
type consoleSession struct {
	dispatcher *usecase.Dispatcher
	settings   domain.Snapshot
	prompts    domain.PromptSet
	handles    domain.Handles
	budget     time.Duration
	agent      string
	convID     string
	logger     *slog.Logger

	conv *domain.Conversation
}

func (s *consoleSession) runOnce(ctx context.Context, input string) error {
	outcome := s.dispatch(ctx, input)
	if !outcome.OK() {
		return fmt.Errorf("%s: %w", outcome.Failure.Kind, outcome.Failure.Err)
	}
	return nil
}

func (s *consoleSession) runLoop(ctx context.Context) error {
	fmt.Printf("devagents console (agent: %s). Ctrl-D to exit.\n", s.agent)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		outcome := s.dispatch(ctx, line)
		if !outcome.OK() {
			fmt.Printf("error (%s): %v\n", outcome.Failure.Kind, outcome.Failure.Err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	fmt.Println()
	return nil
}

func (s *consoleSession) dispatch(ctx context.Context, input string) domain.Outcome {
	if s.conv == nil {
		s.conv = domain.NewConversation(s.convID)
	}
	s.conv.Append(domain.Message{Role: domain.RoleUser, Content: input, Sender: "console"})

	ectx := domain.NewExecutionContext(domain.ExecutionContextParams{
		ID:        usecase.NewExecutionID(),
		Settings:  s.settings,
		Prompts:   s.prompts,
		Conv:      s.conv,
		Handles:   s.handles,
		Budget:    s.budget,
		Responder: consoleResponder{},
	})
	return s.dispatcher.Dispatch(ctx, s.agent, ectx)
}

// consoleResponder prints agent output to stdout.
type consoleResponder struct{}

func (consoleResponder) SendStatus(_ context.Context, message string) error {
	fmt.Printf("... %s\n", message)
	return nil
}

func (consoleResponder) SendResponse(_ context.Context, response string) error {
	fmt.Println(response)
	return nil
}
