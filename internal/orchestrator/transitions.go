package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphwright/graphwright/internal/diagnose"
	"github.com/graphwright/graphwright/internal/events"
	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/prompt"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/session"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/types"
)

// transition dispatches one state-machine step. Every branch returns a delta
// plus the next node as a single unit; input carries node-specific data from
// the previous transition (the execution result between execute_tool and
// evaluate) and is nil otherwise.
func (o *Orchestrator) transition(ctx context.Context, state *session.State, input any) (session.Delta, session.Node, any, error) {
	switch state.Node() {
	case session.NodeParseIntent:
		return o.parseIntent(ctx, state)
	case session.NodeResolveEntities:
		return o.resolveEntities(ctx, state)
	case session.NodeDisambiguate:
		return o.disambiguate(state)
	case session.NodePlanStep:
		return o.planStep(ctx, state)
	case session.NodeExecuteTool:
		return o.executeTool(ctx, state)
	case session.NodeEvaluate:
		return o.evaluate(state, input)
	case session.NodeDiagnose:
		return o.diagnose(state)
	case session.NodeEscalate:
		return o.raiseEscalation(state)
	default:
		return session.Delta{}, "", nil, types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("session %s is at unknown node %q", state.ID(), state.Node()))
	}
}

func (o *Orchestrator) parseIntent(ctx context.Context, state *session.State) (session.Delta, session.Node, any, error) {
	spec, err := o.services.Parser.Parse(ctx, state.Goal())
	if err != nil {
		reason := fmt.Sprintf("could not understand the goal: %s", err)
		return session.Delta{Fail: &reason}, session.NodeFailed, nil, nil
	}
	return session.Delta{Intent: spec}, session.NodeResolveEntities, nil, nil
}

func (o *Orchestrator) resolveEntities(ctx context.Context, state *session.State) (session.Delta, session.Node, any, error) {
	parsed := state.Intent()
	if parsed == nil {
		return session.Delta{}, session.NodeParseIntent, nil, nil
	}

	snapshot, err := o.services.Graph.GetSubgraph(ctx, graph.Match{}, o.snapshotDepth)
	if err != nil {
		reason := fmt.Sprintf("the graph could not be read: %s", humanizeError(err))
		return session.Delta{Fail: &reason}, session.NodeFailed, nil, nil
	}

	resolved, err := o.services.Resolver.ResolveIntent(*parsed, snapshot)
	if err != nil {
		reason := fmt.Sprintf("entity resolution failed: %s", err)
		return session.Delta{Fail: &reason}, session.NodeFailed, nil, nil
	}

	if !resolved.ReadyToExecute {
		return session.Delta{Resolved: resolved, Suspend: true}, session.NodeDisambiguate, nil, nil
	}

	delta, next := o.routeResolved(state, resolved)
	return delta, next, nil, nil
}

// disambiguate is re-entered after a resume. With every ambiguity answered it
// routes onward; otherwise the session suspends again and waits.
func (o *Orchestrator) disambiguate(state *session.State) (session.Delta, session.Node, any, error) {
	resolved := state.Resolved()
	if resolved == nil {
		return session.Delta{}, session.NodeResolveEntities, nil, nil
	}
	if !resolved.ReadyToExecute {
		return session.Delta{Suspend: true}, session.NodeDisambiguate, nil, nil
	}
	delta, next := o.routeResolved(state, resolved)
	return delta, next, nil, nil
}

// routeResolved decides where a fully resolved goal goes: simple goals get a
// deterministic plan and skip the planner; complex goals route through
// plan_step.
func (o *Orchestrator) routeResolved(state *session.State, resolved *resolve.ResolvedGoalSpec) (session.Delta, session.Node) {
	delta := session.Delta{Resolved: resolved}

	if resolved.Intent.IsSimple() && len(state.Plan()) == 0 {
		if plan := fastPathPlan(resolved); len(plan) > 0 {
			delta.PlanAppend = plan
			return delta, session.NodeExecuteTool
		}
	}
	return delta, session.NodePlanStep
}

func (o *Orchestrator) planStep(ctx context.Context, state *session.State) (session.Delta, session.Node, any, error) {
	decision, err := o.planner.Next(ctx, state, o.services.Registry.List())
	if err != nil {
		if ctx.Err() != nil {
			return session.Delta{}, "", nil, err
		}
		delta := session.Delta{Progress: []string{fmt.Sprintf("planning failed: %s", err)}}
		return delta, session.NodeEscalate, nil, nil
	}

	if decision.Done {
		return session.Delta{Answer: &decision.Answer}, session.NodeAnswer, nil, nil
	}

	var delta session.Delta
	if state.StepIndex() < len(state.Plan()) {
		// A pending step is replanned, not trusted blindly: this covers
		// both a failed step and a queued step reconsidered after success.
		delta.PlanReplace = []tool.ToolSignature{decision.Signature}
	} else {
		delta.PlanAppend = []tool.ToolSignature{decision.Signature}
	}
	return delta, session.NodeExecuteTool, nil, nil
}

func (o *Orchestrator) executeTool(ctx context.Context, state *session.State) (session.Delta, session.Node, any, error) {
	sig, ok := state.CurrentStep()
	if !ok {
		return session.Delta{}, session.NodePlanStep, nil, nil
	}

	result := o.services.Executor.Execute(ctx, sig)
	o.publish(ctx, events.ToolExecuted, state, map[string]any{
		"tool":   sig.Tool,
		"status": string(result.Status),
	})

	if result.Succeeded() {
		delta := session.Delta{
			Progress:  []string{fmt.Sprintf("step %d: %s succeeded", state.StepIndex()+1, sig.Tool)},
			Artifacts: artifactsFromResult(result),
		}
		return delta, session.NodeEvaluate, &result, nil
	}

	failure := failureFromResult(state.Attempt(), result)
	return session.Delta{Failure: &failure}, session.NodeEvaluate, &result, nil
}

// evaluate routes on the execution result. A nil input means the process
// restarted between execution and evaluation; the step is re-run, which is
// safe because every tool is idempotent under its natural key.
func (o *Orchestrator) evaluate(state *session.State, input any) (session.Delta, session.Node, any, error) {
	result, ok := input.(*tool.ExecutionResult)
	if !ok || result == nil {
		return session.Delta{}, session.NodeExecuteTool, nil, nil
	}

	if result.Succeeded() {
		if state.StepIndex()+1 >= len(state.Plan()) {
			if spec := state.Intent(); spec != nil && spec.IsSimple() {
				answer := answerForSimpleGoal(state, result)
				return session.Delta{Answer: &answer}, session.NodeAnswer, nil, nil
			}
		}
		// An incomplete goal always routes back through plan_step, queued
		// steps included; the planner confirms or replaces the next step and
		// declares the goal done when nothing remains.
		return session.Delta{AdvanceStep: true}, session.NodePlanStep, nil, nil
	}

	if state.Attempt() < o.maxRetries {
		return session.Delta{}, session.NodeDiagnose, nil, nil
	}
	return session.Delta{}, session.NodeEscalate, nil, nil
}

func (o *Orchestrator) diagnose(state *session.State) (session.Delta, session.Node, any, error) {
	diagnosis, err := diagnose.Classify(state.Failures())
	if err != nil {
		return session.Delta{IncrementAttempt: true}, session.NodePlanStep, nil, nil
	}

	delta := session.Delta{
		IncrementAttempt: true,
		Progress: []string{fmt.Sprintf("diagnosis: %s failures; %s",
			diagnosis.Class, diagnosis.Remediation)},
	}
	if diagnosis.Class == diagnose.ClassSystematic {
		// A structural problem needs the full picture immediately.
		delta.RaiseDisclosure = prompt.LevelFullHistory
	}
	return delta, session.NodePlanStep, nil, nil
}

func (o *Orchestrator) raiseEscalation(state *session.State) (session.Delta, session.Node, any, error) {
	failures := state.Failures()
	var diagnosis *diagnose.Diagnosis
	if d, err := diagnose.Classify(failures); err == nil {
		diagnosis = &d
	}

	esc := o.services.Escalation.Prepare(state.ID(), state.Goal(), failures, diagnosis)
	return session.Delta{Escalation: &esc}, session.NodeEscalate, nil, nil
}

// fastPathPlan builds the deterministic single-step plan for a simple goal,
// or nil when the goal still needs the planner.
func fastPathPlan(resolved *resolve.ResolvedGoalSpec) []tool.ToolSignature {
	switch resolved.Intent.Type {
	case intent.IntentQuery:
		return []tool.ToolSignature{{
			Tool:      "run_query",
			Args:      map[string]any{"query": "match nodes"},
			Rationale: "simple query answered directly from the graph",
		}}

	case intent.IntentCreate:
		final := finalResolution(resolved)
		if final == nil {
			return nil
		}

		key := final.EntityKey
		if key == "" {
			key = slugify(final.Mention)
		}
		label := "Entity"
		if len(final.Candidates) > 0 && final.Candidates[0].Label != "" {
			label = final.Candidates[0].Label
		}
		return []tool.ToolSignature{{
			Tool: "upsert_node",
			Args: map[string]any{
				"key":   key,
				"label": label,
				"props": map[string]any{"name": final.Mention},
			},
			Rationale: fmt.Sprintf("persist %q by natural key", final.Mention),
		}}
	}
	return nil
}

// finalResolution returns the latest decided resolution record. Records are
// append-only, so the last non-ask_user entry is the effective decision.
func finalResolution(resolved *resolve.ResolvedGoalSpec) *resolve.EntityResolution {
	for i := len(resolved.Resolutions) - 1; i >= 0; i-- {
		if resolved.Resolutions[i].Strategy != resolve.StrategyAskUser {
			return &resolved.Resolutions[i]
		}
	}
	return nil
}

// answerForSimpleGoal summarizes a completed fast-path goal.
func answerForSimpleGoal(state *session.State, result *tool.ExecutionResult) string {
	if count, ok := result.Output["count"]; ok {
		return fmt.Sprintf("query returned %v row(s)", count)
	}
	if key, ok := result.Output["key"].(string); ok {
		return fmt.Sprintf("entity %q is in the graph", key)
	}
	return fmt.Sprintf("completed %q", state.Goal())
}

// failureFromResult converts an execution result into a failure history
// entry, with backend errors mapped to readable messages first.
func failureFromResult(attempt int, result *tool.ExecutionResult) diagnose.Failure {
	return diagnose.Failure{
		Attempt:   attempt,
		Tool:      result.Signature.Tool,
		Args:      result.Signature.Args,
		ErrorCode: result.ErrorCode,
		Message:   humanizeMessage(result.ErrorCode, result.Error),
		Retryable: result.Retryable,
		At:        result.ExecutedAt,
	}
}

// artifactsFromResult records what a successful step produced.
func artifactsFromResult(result *tool.ExecutionResult) []session.Artifact {
	ref := ""
	if key, ok := result.Output["key"].(string); ok {
		ref = key
	}
	return []session.Artifact{{
		Kind:    result.Signature.Tool,
		Ref:     ref,
		Details: result.Output,
	}}
}

// humanizeMessage rewrites backend error text for the failure history; raw
// driver messages never reach the model or the user.
func humanizeMessage(code types.ErrorCode, raw string) string {
	switch code {
	case types.CONSTRAINT_VIOLATION:
		return "the change conflicts with an existing entity under the same natural key"
	case types.NOT_FOUND:
		return "a referenced entity does not exist in the graph"
	case types.GRAPH_UNAVAILABLE:
		return "the graph backend is unreachable"
	default:
		return raw
	}
}

func humanizeError(err error) string {
	return humanizeMessage(types.CodeOf(err), err.Error())
}

// slugify derives a natural key from a surface form.
func slugify(surface string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(surface)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
