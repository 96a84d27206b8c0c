// Package escalate hands a stuck session to a human. An escalation carries
// everything the human needs to decide; the session itself stays suspended
// and resumable while the question is open.
package escalate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graphwright/graphwright/internal/diagnose"
	"github.com/graphwright/graphwright/internal/types"
)

// Escalation is a request for human input on a stuck session.
type Escalation struct {
	SessionID types.ID            `json:"session_id"`
	Goal      string              `json:"goal"`
	Reason    string              `json:"reason"`
	Question  string              `json:"question"`
	Failures  []diagnose.Failure  `json:"failures,omitempty"`
	Diagnosis *diagnose.Diagnosis `json:"diagnosis,omitempty"`
	RaisedAt  time.Time           `json:"raised_at"`

	// Deadline is when the escalation expires; nil means wait forever.
	Deadline *time.Time `json:"deadline,omitempty"`
}

// Expired reports whether the escalation's deadline has passed.
func (e Escalation) Expired(now time.Time) bool {
	return e.Deadline != nil && now.After(*e.Deadline)
}

// Answer is the human's response to an escalation.
type Answer struct {
	Text       string    `json:"text"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Handler prepares escalations and waits for answers.
type Handler struct {
	timeout time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTimeout bounds how long an escalation waits for an answer. Zero, the
// default, waits forever.
func WithTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout >= 0 {
			h.timeout = timeout
		}
	}
}

// NewHandler creates a Handler.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Prepare builds the escalation record for a stuck session.
func (h *Handler) Prepare(sessionID types.ID, goal string, failures []diagnose.Failure, diagnosis *diagnose.Diagnosis) Escalation {
	now := time.Now().UTC()
	esc := Escalation{
		SessionID: sessionID,
		Goal:      goal,
		Failures:  failures,
		Diagnosis: diagnosis,
		RaisedAt:  now,
		Reason:    reasonFor(failures, diagnosis),
		Question:  questionFor(goal, failures, diagnosis),
	}
	if h.timeout > 0 {
		deadline := now.Add(h.timeout)
		esc.Deadline = &deadline
	}
	return esc
}

// Wait blocks until an answer arrives, the escalation expires, or the
// context is cancelled.
func (h *Handler) Wait(ctx context.Context, esc Escalation, answers <-chan Answer) (Answer, error) {
	var expiry <-chan time.Time
	if esc.Deadline != nil {
		timer := time.NewTimer(time.Until(*esc.Deadline))
		defer timer.Stop()
		expiry = timer.C
	}

	select {
	case answer, ok := <-answers:
		if !ok {
			return Answer{}, types.NewError(types.ESCALATION_TIMEOUT, "answer channel closed without an answer")
		}
		if answer.AnsweredAt.IsZero() {
			answer.AnsweredAt = time.Now().UTC()
		}
		return answer, nil
	case <-expiry:
		return Answer{}, types.NewError(types.ESCALATION_TIMEOUT,
			fmt.Sprintf("no answer for session %s before the deadline", esc.SessionID))
	case <-ctx.Done():
		return Answer{}, types.WrapError(types.ESCALATION_TIMEOUT, "escalation cancelled", ctx.Err())
	}
}

func reasonFor(failures []diagnose.Failure, diagnosis *diagnose.Diagnosis) string {
	if diagnosis != nil {
		return diagnosis.Reason
	}
	if len(failures) > 0 {
		return fmt.Sprintf("%d attempts failed without a diagnosis", len(failures))
	}
	return "session requires human input"
}

func questionFor(goal string, failures []diagnose.Failure, diagnosis *diagnose.Diagnosis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The goal %q is stuck.\n", goal)
	if diagnosis != nil {
		fmt.Fprintf(&b, "Diagnosis: %s (%s)\n", diagnosis.Class, diagnosis.Reason)
	}
	if n := len(failures); n > 0 {
		last := failures[n-1]
		fmt.Fprintf(&b, "Last failure: tool %q returned %s: %s\n", last.Tool, last.ErrorCode, last.Message)
	}
	b.WriteString("How should this proceed?")
	return b.String()
}
