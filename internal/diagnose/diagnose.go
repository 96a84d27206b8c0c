// Package diagnose classifies a session's failure history so the planner can
// change course instead of repeating a losing approach. The classifier is
// pure over the history it is given.
package diagnose

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// Failure is one failed tool attempt, recorded in session order.
type Failure struct {
	Attempt   int             `json:"attempt"`
	Tool      string          `json:"tool"`
	Args      map[string]any  `json:"args,omitempty"`
	ErrorCode types.ErrorCode `json:"error_code"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable"`
	At        time.Time       `json:"at"`
}

// Signature normalizes a failure for exact comparison: tool, error code,
// message, and the full argument set including values. Two failures compare
// equal only when the same call produced the same outcome, so a retry where
// the planner already changed the argument values never reads as identical.
func (f Failure) Signature() string {
	return fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(f.Tool)),
		f.ErrorCode,
		normalizeMessage(f.Message),
		canonicalArgs(f.Args))
}

// patternKey is the looser key for spotting recurring trouble: tool, error
// code, and argument keys only. Value and wording changes that keep hitting
// the same wall still match.
func (f Failure) patternKey() string {
	keys := make([]string, 0, len(f.Args))
	for k := range f.Args {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(f.Tool)),
		f.ErrorCode,
		strings.Join(keys, ","))
}

// normalizeMessage lowercases and collapses whitespace so trivial rewording
// does not defeat comparison.
func normalizeMessage(msg string) string {
	return strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}

// canonicalArgs renders arguments in a stable key order.
func canonicalArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", strings.ToLower(k), args[k])
	}
	return b.String()
}

// FailureClass is the diagnosed shape of a failure history.
type FailureClass string

const (
	// ClassIdentical means the same call is failing the same way on
	// consecutive attempts.
	ClassIdentical FailureClass = "identical"
	// ClassSystematic means a tool or error pattern recurs across
	// non-consecutive attempts.
	ClassSystematic FailureClass = "systematic"
	// ClassRandom means no pattern was found; failures look transient.
	ClassRandom FailureClass = "random"
)

// Diagnosis is the classifier's output: the class plus a remediation hint
// phrased for the planner's next attempt.
type Diagnosis struct {
	Class       FailureClass `json:"class"`
	Reason      string       `json:"reason"`
	Remediation string       `json:"remediation"`
}

// Classify inspects the failure history, most recent last.
//
// Rules, checked in order:
//  1. identical: the latest two (or more) consecutive failures share a
//     full signature, argument values and message included.
//  2. systematic: some pattern key (tool, error code, argument keys)
//     recurs across non-consecutive attempts, or a single tool accounts
//     for every failure in a history of three or more.
//  3. random: everything else.
func Classify(history []Failure) (Diagnosis, error) {
	if len(history) == 0 {
		return Diagnosis{}, types.NewError(types.VALIDATION_FAILED, "cannot diagnose an empty failure history")
	}

	if len(history) == 1 {
		return Diagnosis{
			Class:       ClassRandom,
			Reason:      "only one failure recorded, no pattern yet",
			Remediation: "retry the step; the failure may be transient",
		}, nil
	}

	last := history[len(history)-1]
	prev := history[len(history)-2]
	if last.Signature() == prev.Signature() {
		run := consecutiveRun(history)
		return Diagnosis{
			Class: ClassIdentical,
			Reason: fmt.Sprintf("the last %d attempts failed identically on tool %q with %s",
				run, last.Tool, last.ErrorCode),
			Remediation: fmt.Sprintf("repeating the same call will fail again; change the arguments to %q or pick a different tool", last.Tool),
		}, nil
	}

	if sig, count := recurringSignature(history); count >= 2 {
		return Diagnosis{
			Class: ClassSystematic,
			Reason: fmt.Sprintf("failure pattern %q recurred in %d of %d attempts without being consecutive",
				sig, count, len(history)),
			Remediation: "the approach has a structural problem; rework the plan rather than retrying variations of it",
		}, nil
	}

	if tool, all := singleFailingTool(history); all && len(history) >= 3 {
		return Diagnosis{
			Class:       ClassSystematic,
			Reason:      fmt.Sprintf("every failure involves tool %q", tool),
			Remediation: fmt.Sprintf("tool %q keeps failing under different inputs; plan around it", tool),
		}, nil
	}

	return Diagnosis{
		Class:       ClassRandom,
		Reason:      "failures differ in tool and error; no pattern detected",
		Remediation: "retry the step; if transient errors persist, escalate",
	}, nil
}

// consecutiveRun counts how many trailing failures share the last signature.
func consecutiveRun(history []Failure) int {
	last := history[len(history)-1].Signature()
	run := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Signature() != last {
			break
		}
		run++
	}
	return run
}

// recurringSignature finds a pattern key that appears at least twice with a
// different failure between the occurrences.
func recurringSignature(history []Failure) (string, int) {
	counts := make(map[string]int)
	lastIndex := make(map[string]int)
	nonConsecutive := make(map[string]bool)

	for i, f := range history {
		sig := f.patternKey()
		counts[sig]++
		if prev, seen := lastIndex[sig]; seen && i-prev > 1 {
			nonConsecutive[sig] = true
		}
		lastIndex[sig] = i
	}

	best, bestCount := "", 0
	for sig := range nonConsecutive {
		if counts[sig] > bestCount {
			best, bestCount = sig, counts[sig]
		}
	}
	return best, bestCount
}

// singleFailingTool reports whether every failure names the same tool.
func singleFailingTool(history []Failure) (string, bool) {
	tool := history[0].Tool
	for _, f := range history[1:] {
		if f.Tool != tool {
			return "", false
		}
	}
	return tool, true
}
