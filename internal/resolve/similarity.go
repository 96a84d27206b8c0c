package resolve

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/graphwright/graphwright/internal/graph"
)

// neutralScore is used for a dimension when neither side carries enough
// information to compare. A missing signal must not push the overall score
// toward either decision threshold.
const neutralScore = 0.5

// Scorer computes per-dimension similarity between a mention and a graph
// candidate. All methods are pure; the same inputs always produce the same
// confidence.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the full confidence for one candidate. The snapshot supplies
// the candidate's neighborhood for context matching; it may be nil.
//
// Dimensions the mention carries no signal for are recorded at the neutral
// score and excluded from Overall by zeroing their weight, so a bare mention
// is judged on its name alone instead of being pulled toward the middle of
// the decision bands.
func (s *Scorer) Score(mention EntityMention, candidate EntityCandidate, snapshot *graph.GraphSnapshot) EntityConfidence {
	weights := s.weights
	conf := EntityConfidence{
		NameMatch: NameSimilarity(mention.SurfaceForm, candidate.Name),
	}

	if mention.Label == "" {
		conf.TypeMatch = neutralScore
		weights.Type = 0
	} else {
		conf.TypeMatch = typeSimilarity(mention.Label, candidate.Label)
	}

	if len(mention.Props) == 0 {
		conf.PropertyMatch = neutralScore
		weights.Property = 0
	} else {
		conf.PropertyMatch = propertySimilarity(mention.Props, candidate.Props)
	}

	ctxScore, informative := contextSimilarity(mention.ContextTerms, candidate, snapshot)
	conf.ContextMatch = ctxScore
	if !informative {
		weights.Context = 0
	}

	conf.Overall = weights.Overall(conf)
	return conf
}

// NameSimilarity scores two names in [0,1]. It takes the better of edit
// similarity over the normalized strings and Jaccard overlap over their
// tokens, so both near-misspellings and partial names score above zero.
func NameSimilarity(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	edit := levenshtein.Match(na, nb, nil)
	token := jaccard(tokenize(na), tokenize(nb))
	if token > edit {
		return token
	}
	return edit
}

// typeSimilarity is 1.0 on a label match, 0 on a mismatch, and neutral when
// the mention carries no type hint.
func typeSimilarity(mentionLabel, candidateLabel string) float64 {
	if mentionLabel == "" {
		return neutralScore
	}
	if strings.EqualFold(mentionLabel, candidateLabel) {
		return 1.0
	}
	return 0
}

// propertySimilarity scores the fraction of mention property hints that the
// candidate matches. A key present with an equal value counts fully, a key
// present with a different value counts nothing, and a missing key counts
// half (absence is weaker evidence than contradiction).
func propertySimilarity(hints, props map[string]any) float64 {
	if len(hints) == 0 {
		return neutralScore
	}

	var sum float64
	for key, want := range hints {
		got, ok := props[key]
		if !ok {
			sum += 0.5
			continue
		}
		if valuesEqual(want, got) {
			sum += 1.0
		}
	}
	return sum / float64(len(hints))
}

// contextSimilarity compares the mention's surrounding terms against the
// candidate's graph neighborhood. The second return reports whether both
// sides carried enough signal to compare at all.
func contextSimilarity(terms []string, candidate EntityCandidate, snapshot *graph.GraphSnapshot) (float64, bool) {
	if len(terms) == 0 || snapshot == nil {
		return neutralScore, false
	}

	neighborhood := make(map[string]struct{})
	for _, key := range snapshot.NeighborKeys(candidate.Key) {
		for _, tok := range tokenize(normalize(key)) {
			neighborhood[tok] = struct{}{}
		}
		if node := snapshot.NodeByKey(key); node != nil {
			if name, ok := node.GetProperty("name").(string); ok {
				for _, tok := range tokenize(normalize(name)) {
					neighborhood[tok] = struct{}{}
				}
			}
		}
	}
	if len(neighborhood) == 0 {
		return neutralScore, false
	}

	mentionTerms := make(map[string]struct{})
	for _, term := range terms {
		for _, tok := range tokenize(normalize(term)) {
			mentionTerms[tok] = struct{}{}
		}
	}

	return jaccard(mentionTerms, neighborhood), true
}

// candidateSimilarity scores two candidates against each other, used by
// duplicate detection. Different labels are never duplicates.
func candidateSimilarity(a, b EntityCandidate) float64 {
	if a.Label != "" && b.Label != "" && !strings.EqualFold(a.Label, b.Label) {
		return 0
	}

	name := NameSimilarity(a.Name, b.Name)
	if len(a.Props) == 0 && len(b.Props) == 0 {
		return name
	}

	props := propertyAgreement(a.Props, b.Props)
	return 0.7*name + 0.3*props
}

// propertyAgreement is the fraction of shared keys whose values agree,
// scaled by key overlap.
func propertyAgreement(a, b map[string]any) float64 {
	shared := 0
	agree := 0
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			continue
		}
		shared++
		if valuesEqual(av, bv) {
			agree++
		}
	}
	if shared == 0 {
		return 0
	}

	keysA := make(map[string]struct{}, len(a))
	for k := range a {
		keysA[k] = struct{}{}
	}
	keysB := make(map[string]struct{}, len(b))
	for k := range b {
		keysB[k] = struct{}{}
	}

	return (float64(agree) / float64(shared)) * jaccard(keysA, keysB)
}

// jaccard computes set overlap as |intersection| / |union|.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for item := range a {
		if _, ok := b[item]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '.' || r == ',' || r == '/'
	}) {
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

func valuesEqual(a, b any) bool {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.EqualFold(strings.TrimSpace(sa), strings.TrimSpace(sb))
		}
	}
	return a == b
}
