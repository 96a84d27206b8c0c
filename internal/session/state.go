// Package session holds the durable state of one goal's execution: where the
// state machine is, what has been resolved and planned, and the bounded
// histories the context manager and diagnoser read. All mutation goes
// through deltas so every change is checkpointable as a unit.
package session

import (
	"sync"
	"time"

	"github.com/graphwright/graphwright/internal/diagnose"
	"github.com/graphwright/graphwright/internal/escalate"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/types"
)

// Node names a state-machine node.
type Node string

const (
	NodeParseIntent     Node = "parse_intent"
	NodeResolveEntities Node = "resolve_entities"
	NodeDisambiguate    Node = "disambiguate"
	NodePlanStep        Node = "plan_step"
	NodeExecuteTool     Node = "execute_tool"
	NodeEvaluate        Node = "evaluate"
	NodeDiagnose        Node = "diagnose"
	NodeEscalate        Node = "escalate"
	NodeAnswer          Node = "answer"
	// NodeFailed is the escalation-timeout terminal.
	NodeFailed Node = "failed"
)

// IsTerminal reports whether the node ends the session.
func (n Node) IsTerminal() bool {
	return n == NodeAnswer || n == NodeFailed
}

// Status is the session's lifecycle phase.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// History bounds. Oldest entries are dropped first; the diagnoser and
// context manager only ever need the recent window.
const (
	maxFailures  = 20
	maxProgress  = 50
	maxArtifacts = 50
)

// Artifact is a durable product of a completed step, e.g. the key of an
// upserted node.
type Artifact struct {
	Kind      string         `json:"kind"`
	Ref       string         `json:"ref"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// State is the full durable state of one session. Access is mutex-guarded;
// callers mutate only through Apply.
type State struct {
	mu sync.RWMutex

	id              types.ID
	goal            string
	status          Status
	node            Node
	attempt         int
	disclosureLevel int
	stepIndex       int

	intentSpec *intent.IntentSpec
	resolved   *resolve.ResolvedGoalSpec
	plan       []tool.ToolSignature
	failures   []diagnose.Failure
	progress   []string
	artifacts  []Artifact
	escalation *escalate.Escalation
	answer     string

	createdAt time.Time
	updatedAt time.Time
}

// New creates a fresh session for a goal, positioned at parse_intent.
func New(goal string) *State {
	now := time.Now().UTC()
	return &State{
		id:        types.NewID(),
		goal:      goal,
		status:    StatusRunning,
		node:      NodeParseIntent,
		attempt:   1,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session's identity.
func (s *State) ID() types.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Goal returns the original goal text.
func (s *State) Goal() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.goal
}

// Status returns the lifecycle phase.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Node returns the current state-machine node.
func (s *State) Node() Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.node
}

// Attempt returns the attempt counter for the current step.
func (s *State) Attempt() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempt
}

// DisclosureLevel returns the current context disclosure level.
func (s *State) DisclosureLevel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disclosureLevel
}

// StepIndex returns the index of the current plan step.
func (s *State) StepIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepIndex
}

// Intent returns the parsed intent, or nil before parse_intent completes.
func (s *State) Intent() *intent.IntentSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intentSpec
}

// Resolved returns the resolved goal spec, or nil before resolution.
func (s *State) Resolved() *resolve.ResolvedGoalSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// Plan returns a copy of the planned tool signatures.
func (s *State) Plan() []tool.ToolSignature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan := make([]tool.ToolSignature, len(s.plan))
	copy(plan, s.plan)
	return plan
}

// CurrentStep returns the plan step the session is executing, if any.
func (s *State) CurrentStep() (tool.ToolSignature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stepIndex < 0 || s.stepIndex >= len(s.plan) {
		return tool.ToolSignature{}, false
	}
	return s.plan[s.stepIndex], true
}

// Failures returns a copy of the bounded failure history, oldest first.
func (s *State) Failures() []diagnose.Failure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	failures := make([]diagnose.Failure, len(s.failures))
	copy(failures, s.failures)
	return failures
}

// Progress returns a copy of the bounded progress log, oldest first.
func (s *State) Progress() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress := make([]string, len(s.progress))
	copy(progress, s.progress)
	return progress
}

// Artifacts returns a copy of the bounded artifact list, oldest first.
func (s *State) Artifacts() []Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifacts := make([]Artifact, len(s.artifacts))
	copy(artifacts, s.artifacts)
	return artifacts
}

// Escalation returns the open escalation, or nil.
func (s *State) Escalation() *escalate.Escalation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.escalation
}

// Answer returns the final answer once the session completes.
func (s *State) Answer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answer
}

// UpdatedAt returns the last mutation time.
func (s *State) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
