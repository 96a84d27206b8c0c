// Package orchestrator runs the session state machine: parse_intent →
// resolve_entities → {disambiguate} → plan_step → execute_tool → evaluate →
// {diagnose → plan_step | escalate} → answer. Every transition is committed
// and checkpointed as one unit, so a session can resume deterministically at
// the node it stopped on after a crash or a human-input suspension.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/graphwright/graphwright/internal/escalate"
	"github.com/graphwright/graphwright/internal/events"
	"github.com/graphwright/graphwright/internal/observability"
	"github.com/graphwright/graphwright/internal/prompt"
	"github.com/graphwright/graphwright/internal/session"
	"github.com/graphwright/graphwright/internal/types"
)

// Orchestrator drives sessions through the state machine.
type Orchestrator struct {
	services      *Services
	planner       *planner
	maxRetries    int
	snapshotDepth int
	logger        *slog.Logger
	tracer        trace.Tracer

	mu      sync.Mutex
	answers map[types.ID]chan escalate.Answer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxRetries bounds how many attempts one step gets before escalation.
// Default: 3.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithSnapshotDepth sets how many hops of graph neighborhood entity
// resolution sees. Default: 2.
func WithSnapshotDepth(depth int) Option {
	return func(o *Orchestrator) {
		if depth >= 0 {
			o.snapshotDepth = depth
		}
	}
}

// WithModel overrides the planner's completion model.
func WithModel(model string) Option {
	return func(o *Orchestrator) {
		o.planner.model = model
	}
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
		o.planner.logger = logger
	}
}

// WithTracer sets the tracer used for session and transition spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// New creates an Orchestrator over a validated services bundle.
func New(services *Services, opts ...Option) (*Orchestrator, error) {
	if err := services.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		services:      services,
		maxRetries:    3,
		snapshotDepth: 2,
		logger:        slog.Default(),
		tracer:        observability.Tracer("orchestrator"),
		answers:       make(map[types.ID]chan escalate.Answer),
		planner: &planner{
			provider:    services.Provider,
			builder:     services.Context,
			temperature: 0.2,
			maxRetries:  3,
			logger:      slog.Default(),
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes a goal from scratch. It returns when the session reaches a
// terminal node or suspends for human input; a suspended session is fully
// checkpointed and can be continued with Resume.
func (o *Orchestrator) Run(ctx context.Context, goal string) (*session.State, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, types.NewError(types.VALIDATION_FAILED, "goal text is empty")
	}

	state := session.New(goal)

	ctx, span := o.tracer.Start(ctx, "session.run",
		trace.WithAttributes(attribute.String("session.id", state.ID().String())))
	defer span.End()

	if err := o.checkpoint(ctx, state); err != nil {
		return nil, err
	}
	o.publish(ctx, events.SessionStarted, state, map[string]any{"goal": goal})
	o.logger.Info("session started",
		"session_id", state.ID(),
		"goal", goal)

	return o.loop(ctx, state)
}

// ResumeOption carries human input into a resumed session.
type ResumeOption func(*resumeInput)

type disambiguationChoice struct {
	mention   string
	chosenKey string
}

type resumeInput struct {
	choices  []disambiguationChoice
	guidance string
}

// WithDisambiguationChoice answers one pending disambiguation question. An
// empty chosenKey requests a new entity instead of any candidate.
func WithDisambiguationChoice(mention, chosenKey string) ResumeOption {
	return func(in *resumeInput) {
		in.choices = append(in.choices, disambiguationChoice{mention: mention, chosenKey: chosenKey})
	}
}

// WithEscalationAnswer supplies human guidance to a session suspended on an
// escalation.
func WithEscalationAnswer(text string) ResumeOption {
	return func(in *resumeInput) {
		in.guidance = text
	}
}

// Resume loads a checkpointed session and continues it at the node it
// suspended on. Without applicable input a suspended session is returned
// unchanged, with its suspension state intact.
func (o *Orchestrator) Resume(ctx context.Context, sessionID types.ID, opts ...ResumeOption) (*session.State, error) {
	data, err := o.services.Checkpoints.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := session.Restore(data)
	if err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "session.resume",
		trace.WithAttributes(attribute.String("session.id", sessionID.String())))
	defer span.End()

	o.publish(ctx, events.SessionResumed, state, nil)
	o.logger.Info("session resumed",
		"session_id", sessionID,
		"node", state.Node(),
		"status", state.Status())

	if state.Node().IsTerminal() {
		return state, nil
	}

	var input resumeInput
	for _, opt := range opts {
		opt(&input)
	}

	if err := o.applyHumanInput(ctx, state, input); err != nil {
		return state, err
	}

	if state.Status() == session.StatusSuspended {
		return state, nil
	}
	return o.loop(ctx, state)
}

// applyHumanInput folds resume-time answers into the session. Each applied
// answer is checkpointed before the loop continues.
func (o *Orchestrator) applyHumanInput(ctx context.Context, state *session.State, input resumeInput) error {
	if len(input.choices) > 0 {
		if state.Node() != session.NodeDisambiguate {
			return types.NewError(types.VALIDATION_FAILED,
				fmt.Sprintf("session %s is not awaiting disambiguation", state.ID()))
		}
		resolved := state.Resolved()
		if resolved == nil {
			return types.NewError(types.VALIDATION_FAILED,
				fmt.Sprintf("session %s has no resolution state", state.ID()))
		}

		for _, choice := range input.choices {
			if _, err := o.services.Resolver.ApplyAnswer(resolved, choice.mention, choice.chosenKey); err != nil {
				return err
			}
		}

		delta := session.Delta{Resolved: resolved}
		if resolved.ReadyToExecute {
			delta.Resume = true
		}
		state.Apply(delta, session.NodeDisambiguate)
		return o.checkpoint(ctx, state)
	}

	if input.guidance != "" {
		if state.Node() != session.NodeEscalate {
			return types.NewError(types.VALIDATION_FAILED,
				fmt.Sprintf("session %s is not awaiting escalation guidance", state.ID()))
		}
		o.applyGuidance(state, input.guidance)
		return o.checkpoint(ctx, state)
	}

	return nil
}

// applyGuidance resumes an escalated session into planning with the human's
// answer disclosed at full context.
func (o *Orchestrator) applyGuidance(state *session.State, guidance string) {
	state.Apply(session.Delta{
		Resume:          true,
		RaiseDisclosure: prompt.LevelFullHistory,
		Progress:        []string{fmt.Sprintf("human guidance: %s", guidance)},
	}, session.NodePlanStep)
}

// ProvideAnswer delivers an escalation answer to a session currently waiting
// in-process. Sessions suspended across a restart take their answer through
// Resume instead.
func (o *Orchestrator) ProvideAnswer(sessionID types.ID, text string) error {
	o.mu.Lock()
	ch, ok := o.answers[sessionID]
	o.mu.Unlock()

	if !ok {
		return types.NewError(types.NOT_FOUND,
			fmt.Sprintf("session %s has no open escalation", sessionID))
	}

	select {
	case ch <- escalate.Answer{Text: text, AnsweredAt: time.Now().UTC()}:
		return nil
	default:
		return types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("session %s already received an answer", sessionID))
	}
}

// loop advances the session until it reaches a terminal node or suspends.
func (o *Orchestrator) loop(ctx context.Context, state *session.State) (*session.State, error) {
	var input any

	for !state.Node().IsTerminal() {
		// The session is checkpointed at every transition, so aborting here
		// loses nothing.
		if err := ctx.Err(); err != nil {
			return state, err
		}

		from := state.Node()
		tctx, span := o.tracer.Start(ctx, "session.transition",
			trace.WithAttributes(attribute.String("node", string(from))))
		delta, next, nextInput, err := o.transition(tctx, state, input)
		span.End()
		if err != nil {
			return state, err
		}

		state.Apply(delta, next)
		if err := o.checkpoint(ctx, state); err != nil {
			return state, err
		}
		input = nextInput

		o.publish(ctx, events.StateTransition, state, map[string]any{
			"from": string(from),
			"to":   string(next),
		})
		o.logger.Debug("transition",
			"session_id", state.ID(),
			"from", from,
			"to", next,
			"attempt", state.Attempt())

		if state.Status() != session.StatusSuspended {
			continue
		}

		if state.Node() == session.NodeEscalate && state.Escalation() != nil {
			proceed, err := o.awaitAnswer(ctx, state)
			if err != nil {
				return state, err
			}
			if !proceed {
				return state, nil
			}
			continue
		}

		// Disambiguation suspends until the caller resumes with an answer.
		o.publish(ctx, events.SessionSuspended, state, nil)
		return state, nil
	}

	switch state.Status() {
	case session.StatusCompleted:
		o.publish(ctx, events.SessionCompleted, state, map[string]any{"answer": state.Answer()})
		o.logger.Info("session completed", "session_id", state.ID())
	default:
		o.publish(ctx, events.SessionFailed, state, map[string]any{"reason": state.Answer()})
		o.logger.Warn("session failed",
			"session_id", state.ID(),
			"reason", state.Answer())
	}
	return state, nil
}

// awaitAnswer blocks on the open escalation. It reports whether the loop
// should continue: an answered escalation resumes planning, an expired one
// fails the session, and a cancelled context leaves the session suspended
// for a later Resume.
func (o *Orchestrator) awaitAnswer(ctx context.Context, state *session.State) (bool, error) {
	esc := state.Escalation()
	ch := o.registerAnswers(state.ID())
	defer o.releaseAnswers(state.ID())

	o.publish(ctx, events.EscalationRaised, state, map[string]any{"question": esc.Question})
	o.publish(ctx, events.SessionSuspended, state, nil)

	answer, err := o.services.Escalation.Wait(ctx, *esc, ch)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		reason := fmt.Sprintf("no human answer arrived in time: %s", esc.Reason)
		state.Apply(session.Delta{Fail: &reason}, session.NodeFailed)
		return true, o.checkpoint(ctx, state)
	}

	o.applyGuidance(state, answer.Text)
	return true, o.checkpoint(ctx, state)
}

func (o *Orchestrator) registerAnswers(sessionID types.ID) chan escalate.Answer {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.answers[sessionID]
	if !ok {
		ch = make(chan escalate.Answer, 1)
		o.answers[sessionID] = ch
	}
	return ch
}

func (o *Orchestrator) releaseAnswers(sessionID types.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.answers, sessionID)
}

func (o *Orchestrator) checkpoint(ctx context.Context, state *session.State) error {
	data, err := state.Snapshot()
	if err != nil {
		return err
	}
	return o.services.Checkpoints.Save(ctx, state.ID(), data)
}

func (o *Orchestrator) publish(ctx context.Context, eventType events.EventType, state *session.State, payload map[string]any) {
	if o.services.Events == nil {
		return
	}
	_ = o.services.Events.Publish(ctx, events.Event{
		Type:      eventType,
		SessionID: state.ID(),
		Node:      string(state.Node()),
		Payload:   payload,
	})
}
