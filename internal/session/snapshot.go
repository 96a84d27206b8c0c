package session

import (
	"encoding/json"
	"time"

	"github.com/graphwright/graphwright/internal/diagnose"
	"github.com/graphwright/graphwright/internal/escalate"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/types"
)

// snapshot is the serialized form of a session. It mirrors State field for
// field; the version guards future format changes.
type snapshot struct {
	Version         int                       `json:"version"`
	ID              types.ID                  `json:"id"`
	Goal            string                    `json:"goal"`
	Status          Status                    `json:"status"`
	Node            Node                      `json:"node"`
	Attempt         int                       `json:"attempt"`
	DisclosureLevel int                       `json:"disclosure_level"`
	StepIndex       int                       `json:"step_index"`
	Intent          *intent.IntentSpec        `json:"intent,omitempty"`
	Resolved        *resolve.ResolvedGoalSpec `json:"resolved,omitempty"`
	Plan            []tool.ToolSignature      `json:"plan,omitempty"`
	Failures        []diagnose.Failure        `json:"failures,omitempty"`
	Progress        []string                  `json:"progress,omitempty"`
	Artifacts       []Artifact                `json:"artifacts,omitempty"`
	Escalation      *escalate.Escalation      `json:"escalation,omitempty"`
	Answer          string                    `json:"answer,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

const snapshotVersion = 1

// Snapshot serializes the session for checkpointing.
func (s *State) Snapshot() ([]byte, error) {
	s.mu.RLock()
	snap := snapshot{
		Version:         snapshotVersion,
		ID:              s.id,
		Goal:            s.goal,
		Status:          s.status,
		Node:            s.node,
		Attempt:         s.attempt,
		DisclosureLevel: s.disclosureLevel,
		StepIndex:       s.stepIndex,
		Intent:          s.intentSpec,
		Resolved:        s.resolved,
		Plan:            s.plan,
		Failures:        s.failures,
		Progress:        s.progress,
		Artifacts:       s.artifacts,
		Escalation:      s.escalation,
		Answer:          s.answer,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED, "failed to serialize session", err)
	}
	return data, nil
}

// Restore rebuilds a session from a checkpoint snapshot.
func Restore(data []byte) (*State, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED, "failed to deserialize session", err)
	}
	if err := snap.ID.Validate(); err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED, "session snapshot has an invalid id", err)
	}

	return &State{
		id:              snap.ID,
		goal:            snap.Goal,
		status:          snap.Status,
		node:            snap.Node,
		attempt:         snap.Attempt,
		disclosureLevel: snap.DisclosureLevel,
		stepIndex:       snap.StepIndex,
		intentSpec:      snap.Intent,
		resolved:        snap.Resolved,
		plan:            snap.Plan,
		failures:        snap.Failures,
		progress:        snap.Progress,
		artifacts:       snap.Artifacts,
		escalation:      snap.Escalation,
		answer:          snap.Answer,
		createdAt:       snap.CreatedAt,
		updatedAt:       snap.UpdatedAt,
	}, nil
}
