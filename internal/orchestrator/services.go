package orchestrator

import (
	"github.com/graphwright/graphwright/internal/checkpoint"
	"github.com/graphwright/graphwright/internal/escalate"
	"github.com/graphwright/graphwright/internal/events"
	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/llm"
	"github.com/graphwright/graphwright/internal/prompt"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/types"
)

// Services bundles every collaborator a transition may call. The bundle is
// assembled once at startup and passed by reference; transitions never reach
// for process-wide singletons.
type Services struct {
	// Parser turns goal text into an IntentSpec.
	Parser *intent.Parser

	// Resolver links entity mentions to graph identities.
	Resolver *resolve.EntityResolver

	// Graph is the backing property-graph store.
	Graph graph.Store

	// Registry holds the tools the planner may invoke.
	Registry *tool.Registry

	// Executor validates and runs tool signatures.
	Executor *tool.Executor

	// Provider is the completion backend used by the planner.
	Provider llm.Provider

	// Context assembles planner prompts under progressive disclosure.
	Context *prompt.ContextManager

	// Escalation prepares escalations and waits for human answers.
	Escalation *escalate.Handler

	// Checkpoints persists session snapshots after every transition.
	Checkpoints checkpoint.Store

	// Events receives session lifecycle events. Optional; nil disables
	// publishing.
	Events *events.Bus
}

// Validate checks that every required collaborator is present.
func (s *Services) Validate() error {
	switch {
	case s == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle is nil")
	case s.Parser == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires an intent parser")
	case s.Resolver == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires an entity resolver")
	case s.Graph == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires a graph store")
	case s.Registry == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires a tool registry")
	case s.Executor == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires a tool executor")
	case s.Provider == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires a completion provider")
	case s.Context == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires a context manager")
	case s.Escalation == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires an escalation handler")
	case s.Checkpoints == nil:
		return types.NewError(types.VALIDATION_FAILED, "services bundle requires a checkpoint store")
	}
	return nil
}
