// Package prompt assembles the model input for planning calls under the
// progressive disclosure policy: early attempts see a minimal context, and
// each retry may only add to what the previous attempt saw. Level N's
// content is always a superset of level N-1's, so the model never loses
// information between attempts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/session"
	"github.com/graphwright/graphwright/internal/tool"
)

// Disclosure levels. The level is clamped, so attempts beyond the third see
// the full context.
const (
	// LevelMinimal discloses the goal, resolved entities, and tool hints.
	LevelMinimal = 0
	// LevelLatestError adds the most recent failure.
	LevelLatestError = 1
	// LevelFullHistory adds the complete failure history, the plan recap,
	// and the progress log.
	LevelFullHistory = 2
)

// ModelInput is the assembled prompt for one planning call.
type ModelInput struct {
	Level    int
	System   string
	Prompt   string
	Sections []string
}

const plannerSystem = `You plan the next step toward a property-graph goal.
Choose exactly one tool invocation from the available tools. Mutations must
address entities by their resolved natural keys. Respond with JSON only.`

// ContextManager builds model inputs from session state.
type ContextManager struct{}

// NewContextManager creates a ContextManager.
func NewContextManager() *ContextManager {
	return &ContextManager{}
}

// Build assembles the model input at the session's current disclosure
// level. Sections are appended in a fixed order as the level rises, which
// is what guarantees the superset property.
func (m *ContextManager) Build(state *session.State, descriptors []tool.ToolDescriptor) ModelInput {
	level := state.DisclosureLevel()
	if level > LevelFullHistory {
		level = LevelFullHistory
	}

	input := ModelInput{
		Level:  level,
		System: plannerSystem,
	}

	input.add("goal", goalSection(state))
	input.add("entities", entitySection(state.Resolved()))
	input.add("tools", toolSection(descriptors))

	if level >= LevelLatestError {
		input.add("latest_failure", latestFailureSection(state))
	}

	if level >= LevelFullHistory {
		input.add("failure_history", failureHistorySection(state))
		input.add("plan_recap", planRecapSection(state))
		input.add("progress", progressSection(state))
	}

	return input
}

func (in *ModelInput) add(name, content string) {
	if content == "" {
		return
	}
	in.Sections = append(in.Sections, name)
	if in.Prompt != "" {
		in.Prompt += "\n\n"
	}
	in.Prompt += content
}

func goalSection(state *session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s", state.Goal())
	if spec := state.Intent(); spec != nil {
		fmt.Fprintf(&b, "\nIntent: %s (%s)", spec.Type, spec.Complexity)
	}
	fmt.Fprintf(&b, "\nAttempt: %d", state.Attempt())
	return b.String()
}

func entitySection(resolved *resolve.ResolvedGoalSpec) string {
	if resolved == nil || len(resolved.Resolutions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Resolved entities:")
	for _, r := range resolved.Resolutions {
		switch r.Strategy {
		case resolve.StrategyUseExisting:
			fmt.Fprintf(&b, "\n- %q refers to existing entity key=%s", r.Mention, r.EntityKey)
		case resolve.StrategyCreateNew:
			fmt.Fprintf(&b, "\n- %q is a new entity to create", r.Mention)
		}
	}
	return b.String()
}

func toolSection(descriptors []tool.ToolDescriptor) string {
	if len(descriptors) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Available tools:")
	for _, d := range descriptors {
		fmt.Fprintf(&b, "\n- %s: %s", d.Name, d.Description)
	}
	return b.String()
}

func latestFailureSection(state *session.State) string {
	failures := state.Failures()
	if len(failures) == 0 {
		return ""
	}
	last := failures[len(failures)-1]
	return fmt.Sprintf("Latest failure: tool %q returned %s: %s", last.Tool, last.ErrorCode, last.Message)
}

func failureHistorySection(state *session.State) string {
	failures := state.Failures()
	if len(failures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Failure history (oldest first):")
	for _, f := range failures {
		fmt.Fprintf(&b, "\n- attempt %d: %s -> %s: %s", f.Attempt, f.Tool, f.ErrorCode, f.Message)
	}
	return b.String()
}

func planRecapSection(state *session.State) string {
	plan := state.Plan()
	if len(plan) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Plan so far:")
	for i, step := range plan {
		var marker string
		switch {
		case i < state.StepIndex():
			marker = "done"
		case i == state.StepIndex():
			marker = "current"
		default:
			marker = "pending"
		}
		fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, marker, step.Tool)
	}
	return b.String()
}

func progressSection(state *session.State) string {
	progress := state.Progress()
	if len(progress) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Progress log:")
	for _, p := range progress {
		fmt.Fprintf(&b, "\n- %s", p)
	}
	return b.String()
}
