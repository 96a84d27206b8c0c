package session

import (
	"time"

	"github.com/graphwright/graphwright/internal/diagnose"
	"github.com/graphwright/graphwright/internal/escalate"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/tool"
)

// Delta is the state change produced by one transition. A transition returns
// a delta plus the next node as one unit; Apply commits both atomically so
// there is never a state update without a node decision.
type Delta struct {
	// Intent sets the parsed intent.
	Intent *intent.IntentSpec

	// Resolved sets the resolved goal spec.
	Resolved *resolve.ResolvedGoalSpec

	// PlanAppend appends steps to the plan.
	PlanAppend []tool.ToolSignature

	// PlanReplace replaces the remaining plan from the current step on.
	PlanReplace []tool.ToolSignature

	// AdvanceStep moves to the next plan step and resets the attempt
	// counter and disclosure level.
	AdvanceStep bool

	// IncrementAttempt bumps the attempt counter and the disclosure level
	// for the current step.
	IncrementAttempt bool

	// RaiseDisclosure raises the disclosure level to at least this value,
	// skipping intermediate levels. Zero is a no-op.
	RaiseDisclosure int

	// Failure appends to the failure history.
	Failure *diagnose.Failure

	// Progress appends entries to the progress log.
	Progress []string

	// Artifacts appends to the artifact list.
	Artifacts []Artifact

	// Escalation opens an escalation and suspends the session.
	Escalation *escalate.Escalation

	// Suspend suspends the session without an escalation (disambiguation).
	Suspend bool

	// Resume returns a suspended session to running and clears any open
	// escalation.
	Resume bool

	// Answer completes the session with a final answer.
	Answer *string

	// Fail moves the session to the failure terminal with a reason.
	Fail *string
}

// Apply commits the delta and moves the session to next. The whole change is
// performed under one lock acquisition; a checkpoint taken afterwards sees
// either none or all of it.
func (s *State) Apply(delta Delta, next Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delta.Intent != nil {
		s.intentSpec = delta.Intent
	}
	if delta.Resolved != nil {
		s.resolved = delta.Resolved
	}
	if len(delta.PlanAppend) > 0 {
		s.plan = append(s.plan, delta.PlanAppend...)
	}
	if delta.PlanReplace != nil {
		s.plan = append(s.plan[:s.stepIndex], delta.PlanReplace...)
	}
	if delta.AdvanceStep {
		s.stepIndex++
		s.attempt = 1
		s.disclosureLevel = 0
	}
	if delta.IncrementAttempt {
		s.attempt++
		s.disclosureLevel++
	}
	if delta.RaiseDisclosure > s.disclosureLevel {
		s.disclosureLevel = delta.RaiseDisclosure
	}
	if delta.Failure != nil {
		s.failures = appendBounded(s.failures, *delta.Failure, maxFailures)
	}
	for _, p := range delta.Progress {
		s.progress = appendBounded(s.progress, p, maxProgress)
	}
	for _, a := range delta.Artifacts {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		s.artifacts = appendBounded(s.artifacts, a, maxArtifacts)
	}
	if delta.Escalation != nil {
		s.escalation = delta.Escalation
		s.status = StatusSuspended
	}
	if delta.Suspend {
		s.status = StatusSuspended
	}
	if delta.Resume {
		s.status = StatusRunning
		s.escalation = nil
	}
	if delta.Answer != nil {
		s.answer = *delta.Answer
		s.status = StatusCompleted
	}
	if delta.Fail != nil {
		s.answer = *delta.Fail
		s.status = StatusFailed
	}

	s.node = next
	s.updatedAt = time.Now().UTC()
}

// appendBounded appends keeping at most limit entries, dropping the oldest.
func appendBounded[T any](list []T, item T, limit int) []T {
	list = append(list, item)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}
