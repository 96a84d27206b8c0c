package resolve

import (
	"time"

	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/types"
)

// Strategy is the outcome of resolving one mention: create a new entity,
// reuse an existing one, or ask a human to disambiguate.
type Strategy string

const (
	StrategyCreateNew   Strategy = "create_new"
	StrategyUseExisting Strategy = "use_existing"
	StrategyAskUser     Strategy = "ask_user"
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// EntityMention is a surface-text reference to a real-world entity, not yet
// linked to a graph identity.
type EntityMention struct {
	// SurfaceForm is the raw text of the mention.
	SurfaceForm string `json:"surface_form"`

	// Label is the expected entity type, when the intent parser extracted
	// one. Empty means unknown.
	Label string `json:"label,omitempty"`

	// Props carries property hints extracted alongside the mention.
	Props map[string]any `json:"props,omitempty"`

	// ContextTerms are surrounding terms from the goal text, used for
	// context matching against a candidate's graph neighborhood.
	ContextTerms []string `json:"context_terms,omitempty"`

	// CanonicalID is set once the mention has been resolved to a graph
	// identity.
	CanonicalID types.ID `json:"canonical_id,omitempty"`

	// Candidates is the ordered candidate list from the last resolution
	// pass, best first.
	Candidates []EntityCandidate `json:"candidates,omitempty"`
}

// EntityCandidate is a graph entity proposed as a possible referent for a
// mention.
type EntityCandidate struct {
	CandidateID types.ID       `json:"candidate_id"`
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Label       string         `json:"label"`
	Props       map[string]any `json:"props,omitempty"`

	// Source identifies where the candidate record came from, used by the
	// preserve_most_authoritative merge strategy.
	Source string `json:"source,omitempty"`

	// UpdatedAt orders candidates for the preserve_latest merge strategy.
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	// Score is the overall similarity against the mention, in [0,1].
	Score float64 `json:"score"`
}

// Weights configures the confidence combination. The defaults mirror the
// documented policy (0.4 name, 0.3 type, 0.2 property, 0.1 context) but are
// deliberately a policy parameter, not a constant: nothing downstream
// assumes they are calibrated.
type Weights struct {
	Name     float64 `yaml:"name"`
	Type     float64 `yaml:"type"`
	Property float64 `yaml:"property"`
	Context  float64 `yaml:"context"`
}

// DefaultWeights returns the documented default weighting.
func DefaultWeights() Weights {
	return Weights{Name: 0.4, Type: 0.3, Property: 0.2, Context: 0.1}
}

// Validate checks that all weights are non-negative and at least one is set.
func (w Weights) Validate() error {
	if w.Name < 0 || w.Type < 0 || w.Property < 0 || w.Context < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "confidence weights cannot be negative")
	}
	if w.total() == 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "confidence weights cannot all be zero")
	}
	return nil
}

func (w Weights) total() float64 {
	return w.Name + w.Type + w.Property + w.Context
}

// EntityConfidence carries the four similarity dimensions for one candidate
// plus the derived overall score. Overall is always computed through
// Weights.Overall; it is never re-derived ad hoc.
type EntityConfidence struct {
	NameMatch     float64 `json:"name_match"`
	TypeMatch     float64 `json:"type_match"`
	PropertyMatch float64 `json:"property_match"`
	ContextMatch  float64 `json:"context_match"`
	Overall       float64 `json:"overall"`
}

// Overall combines the four dimensions into a single score using the
// configured weights, normalized by the weight total. Each dimension is
// clamped to [0,1] first, so Overall is also in [0,1].
func (w Weights) Overall(c EntityConfidence) float64 {
	total := w.total()
	if total == 0 {
		return 0
	}
	sum := w.Name*clamp01(c.NameMatch) +
		w.Type*clamp01(c.TypeMatch) +
		w.Property*clamp01(c.PropertyMatch) +
		w.Context*clamp01(c.ContextMatch)
	return sum / total
}

// certainConfidence is the confidence attached to an exact natural-key match.
func certainConfidence() EntityConfidence {
	return EntityConfidence{
		NameMatch:     1.0,
		TypeMatch:     1.0,
		PropertyMatch: 1.0,
		ContextMatch:  1.0,
		Overall:       1.0,
	}
}

// EntityResolution records the decision for one mention. Records are
// immutable once a strategy is chosen: re-resolution creates a new record so
// the audit history is preserved.
type EntityResolution struct {
	ID         types.ID          `json:"id"`
	Mention    string            `json:"mention"`
	Strategy   Strategy          `json:"strategy"`
	EntityID   types.ID          `json:"entity_id,omitempty"`
	EntityKey  string            `json:"entity_key,omitempty"`
	Confidence EntityConfidence  `json:"confidence"`
	Candidates []EntityCandidate `json:"candidates,omitempty"`
	DecidedAt  time.Time         `json:"decided_at"`
}

// AmbiguityStatus tracks whether a disambiguation question has been answered.
type AmbiguityStatus string

const (
	AmbiguityPending  AmbiguityStatus = "pending"
	AmbiguityResolved AmbiguityStatus = "resolved"
)

// AmbiguityResolution is a pending or answered disambiguation for one
// ambiguous mention.
type AmbiguityResolution struct {
	Mention    EntityMention     `json:"mention"`
	Question   string            `json:"question"`
	Candidates []EntityCandidate `json:"candidates"`
	Status     AmbiguityStatus   `json:"status"`

	// ChosenKey is the natural key of the candidate the human selected, or
	// empty with Status resolved to request creation of a new entity.
	ChosenKey string `json:"chosen_key,omitempty"`
}

// ResolvedGoalSpec is the output of a full resolution pass over a goal's
// mentions: the resolutions that were decided, the ambiguities that still
// need a human, and whether execution can proceed.
type ResolvedGoalSpec struct {
	Goal           string                `json:"goal"`
	Intent         intent.IntentSpec     `json:"intent"`
	Resolutions    []EntityResolution    `json:"resolutions"`
	Ambiguities    []AmbiguityResolution `json:"ambiguities,omitempty"`
	ReadyToExecute bool                  `json:"ready_to_execute"`
}

// MentionsFromIntent converts the parser's raw mention strings into
// resolution inputs. Context terms come from the remaining goal words so
// neighborhood matching has something to work with.
func MentionsFromIntent(spec intent.IntentSpec) []EntityMention {
	mentions := make([]EntityMention, 0, len(spec.Mentions))
	for _, m := range spec.Mentions {
		mentions = append(mentions, EntityMention{
			SurfaceForm:  m,
			ContextTerms: contextTermsFor(spec.Goal, m),
		})
	}
	return mentions
}

// contextTermsFor returns the goal's words minus the mention's own tokens.
func contextTermsFor(goal, mention string) []string {
	mentionTokens := tokenize(normalize(mention))
	var terms []string
	for tok := range tokenize(normalize(goal)) {
		if _, own := mentionTokens[tok]; !own {
			terms = append(terms, tok)
		}
	}
	return terms
}

// PendingAmbiguities returns the ambiguities still awaiting a human answer.
func (r *ResolvedGoalSpec) PendingAmbiguities() []AmbiguityResolution {
	var pending []AmbiguityResolution
	for _, a := range r.Ambiguities {
		if a.Status == AmbiguityPending {
			pending = append(pending, a)
		}
	}
	return pending
}

// CandidatesFromSnapshot converts snapshot nodes into resolution candidates.
func CandidatesFromSnapshot(snapshot *graph.GraphSnapshot) []EntityCandidate {
	if snapshot == nil {
		return nil
	}
	candidates := make([]EntityCandidate, 0, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		candidate := EntityCandidate{
			CandidateID: node.ID,
			Key:         node.Key,
			Label:       node.Label,
			Props:       node.Props,
			UpdatedAt:   node.UpdatedAt,
		}
		if name, ok := node.GetProperty("name").(string); ok {
			candidate.Name = name
		} else {
			candidate.Name = node.Key
		}
		if source, ok := node.GetProperty("source").(string); ok {
			candidate.Source = source
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
