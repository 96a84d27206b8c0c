// Package intent turns a raw natural-language goal into a typed IntentSpec.
package intent

import (
	"strings"
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// IntentType classifies what kind of graph operation the goal asks for.
type IntentType string

const (
	IntentCreate  IntentType = "create"
	IntentQuery   IntentType = "query"
	IntentUpdate  IntentType = "update"
	IntentDelete  IntentType = "delete"
	IntentUnknown IntentType = "unknown"
)

// knownIntentTypes is the set the parser accepts from model output.
var knownIntentTypes = map[IntentType]struct{}{
	IntentCreate:  {},
	IntentQuery:   {},
	IntentUpdate:  {},
	IntentDelete:  {},
	IntentUnknown: {},
}

// Complexity classifies whether a goal needs explicit step planning.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// IntentSpec is the parsed form of a goal. Specs are immutable once
// produced; re-parsing creates a new spec.
type IntentSpec struct {
	// Goal is the original goal text, verbatim.
	Goal string `json:"goal"`

	// Type is the operation class the goal asks for.
	Type IntentType `json:"type"`

	// Mentions are the raw entity mention strings extracted from the goal.
	Mentions []string `json:"mentions,omitempty"`

	// Complexity decides routing: simple goals skip explicit planning.
	Complexity Complexity `json:"complexity"`

	// RequiresGraphContext reports whether resolution needs a graph
	// neighborhood snapshot before any decision is safe.
	RequiresGraphContext bool `json:"requires_graph_context"`

	// ParsedAt records when the spec was produced.
	ParsedAt time.Time `json:"parsed_at"`
}

// Validate checks that the spec is well formed.
func (s IntentSpec) Validate() error {
	if strings.TrimSpace(s.Goal) == "" {
		return types.NewError(types.VALIDATION_FAILED, "intent spec requires the original goal text")
	}
	if _, ok := knownIntentTypes[s.Type]; !ok {
		return types.NewError(types.VALIDATION_FAILED, "intent spec has an unrecognized intent type")
	}
	if s.Complexity != ComplexitySimple && s.Complexity != ComplexityComplex {
		return types.NewError(types.VALIDATION_FAILED, "intent spec has an unrecognized complexity")
	}
	return nil
}

// IsSimple reports whether the goal qualifies for the fast path: a
// single-mention create or query the planner can skip. Anything the parser
// was unsure about routes through planning.
func (s IntentSpec) IsSimple() bool {
	if s.Complexity != ComplexitySimple {
		return false
	}
	if len(s.Mentions) > 1 {
		return false
	}
	return s.Type == IntentCreate || s.Type == IntentQuery
}
