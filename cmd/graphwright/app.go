package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/graphwright/graphwright/internal/checkpoint"
	"github.com/graphwright/graphwright/internal/config"
	"github.com/graphwright/graphwright/internal/escalate"
	"github.com/graphwright/graphwright/internal/events"
	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/llm"
	"github.com/graphwright/graphwright/internal/llm/providers"
	"github.com/graphwright/graphwright/internal/observability"
	"github.com/graphwright/graphwright/internal/orchestrator"
	"github.com/graphwright/graphwright/internal/prompt"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/session"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/tool/builtins"
)

// app wires the configured collaborators into a ready orchestrator.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	orch   *orchestrator.Orchestrator
	bus    *events.Bus

	cleanup []func(context.Context)
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, bus: events.NewBus()}
	a.cleanup = append(a.cleanup, func(context.Context) { _ = a.bus.Close() })

	if err := a.buildTracing(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	store, err := a.buildGraphStore(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	completion, err := a.buildProvider()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	checkpoints, err := a.buildCheckpoints()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	registry := tool.NewRegistry()
	if err := builtins.RegisterGraphTools(registry, store); err != nil {
		a.Close(ctx)
		return nil, err
	}

	resolver, err := resolve.NewEntityResolver(cfg.Resolver, resolve.WithLogger(logger))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.orch, err = orchestrator.New(&orchestrator.Services{
		Parser:      intent.NewParser(completion, intent.WithLogger(logger), intent.WithModel(cfg.LLM.DefaultModel)),
		Resolver:    resolver,
		Graph:       store,
		Registry:    registry,
		Executor: tool.NewExecutor(registry,
			tool.WithExecutorLogger(logger),
			tool.WithToolTimeout(cfg.Orchestrator.ToolTimeout)),
		Provider:    completion,
		Context:     prompt.NewContextManager(),
		Escalation:  escalate.NewHandler(escalate.WithTimeout(cfg.Orchestrator.EscalationTimeout)),
		Checkpoints: checkpoints,
		Events:      a.bus,
	},
		orchestrator.WithMaxRetries(cfg.Orchestrator.MaxRetries),
		orchestrator.WithSnapshotDepth(cfg.Orchestrator.SnapshotDepth),
		orchestrator.WithModel(cfg.LLM.DefaultModel),
		orchestrator.WithLogger(logger),
		orchestrator.WithTracer(observability.Tracer("graphwright")),
	)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) buildTracing(ctx context.Context) error {
	provider, err := observability.InitTracing(ctx, traceEnabled)
	if err != nil {
		return err
	}
	a.cleanup = append(a.cleanup, func(ctx context.Context) { _ = provider.Shutdown(ctx) })
	return nil
}

func (a *app) buildGraphStore(ctx context.Context) (graph.Store, error) {
	if dryRun {
		return graph.NewMemoryStore(), nil
	}

	store, err := graph.NewNeo4jStore(a.cfg.Graph)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	a.cleanup = append(a.cleanup, func(ctx context.Context) { _ = store.Close(ctx) })
	return store, nil
}

func (a *app) buildProvider() (llm.Provider, error) {
	return providers.NewOpenAIProvider(a.cfg.LLM)
}

func (a *app) buildCheckpoints() (checkpoint.Store, error) {
	if a.cfg.Checkpoint.Path == "" {
		return checkpoint.NewMemoryStore(), nil
	}

	store, err := checkpoint.OpenBadger(a.cfg.Checkpoint.Path)
	if err != nil {
		return nil, err
	}
	a.cleanup = append(a.cleanup, func(context.Context) { _ = store.Close() })
	return store, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close(ctx context.Context) {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i](ctx)
	}
}

// report prints a finished or suspended session for the caller.
func report(state *session.State) error {
	switch state.Status() {
	case session.StatusCompleted:
		fmt.Println(state.Answer())
		return nil

	case session.StatusSuspended:
		fmt.Printf("Session %s is waiting for input.\n\n", state.ID())
		if resolved := state.Resolved(); resolved != nil {
			for _, pending := range resolved.PendingAmbiguities() {
				fmt.Println(pending.Question)
				fmt.Printf("\nAnswer with: graphwright resume %s --choose %q\n",
					state.ID(), pending.Mention.SurfaceForm+"=<key>")
			}
		}
		if esc := state.Escalation(); esc != nil {
			fmt.Println(esc.Question)
			fmt.Printf("\nAnswer with: graphwright resume %s --answer \"...\"\n", state.ID())
		}
		return nil

	default:
		return fmt.Errorf("session %s failed: %s", state.ID(), state.Answer())
	}
}
