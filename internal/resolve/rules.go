package resolve

import (
	"github.com/graphwright/graphwright/internal/graph"
)

// Rules applies the deterministic pre-filters that run before any similarity
// scoring. Rule outcomes never depend on scorer weights.
type Rules struct {
	// MinPropertyOverlap drops candidates whose property agreement with the
	// mention's hints falls below this fraction. Zero disables the filter.
	MinPropertyOverlap float64
}

// ExactMatch returns the candidate whose natural key or name equals the
// mention's surface form after normalization. An exact key match is
// authoritative and short-circuits scoring entirely.
func (r Rules) ExactMatch(mention EntityMention, candidates []EntityCandidate) *EntityCandidate {
	surface := normalize(mention.SurfaceForm)
	if surface == "" {
		return nil
	}

	for i := range candidates {
		c := &candidates[i]
		if mention.Label != "" && !labelCompatible(mention.Label, c.Label) {
			continue
		}
		if normalize(c.Key) == surface || normalize(c.Name) == surface {
			return c
		}
	}
	return nil
}

// Filter removes candidates that cannot be the referent regardless of score:
// incompatible labels and, when configured, insufficient property overlap.
func (r Rules) Filter(mention EntityMention, candidates []EntityCandidate) []EntityCandidate {
	filtered := make([]EntityCandidate, 0, len(candidates))
	for _, c := range candidates {
		if mention.Label != "" && !labelCompatible(mention.Label, c.Label) {
			continue
		}
		if r.MinPropertyOverlap > 0 && len(mention.Props) > 0 {
			if propertySimilarity(mention.Props, c.Props) < r.MinPropertyOverlap {
				continue
			}
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func labelCompatible(mentionLabel, candidateLabel string) bool {
	if candidateLabel == "" {
		return true
	}
	return normalize(mentionLabel) == normalize(candidateLabel)
}

// exactResolutionFor builds the certain confidence result for an exact match,
// cross-checking the snapshot so the entity ID comes from the graph record.
func exactResolutionFor(candidate *EntityCandidate, snapshot *graph.GraphSnapshot) (EntityCandidate, EntityConfidence) {
	resolved := *candidate
	if snapshot != nil {
		if node := snapshot.NodeByKey(candidate.Key); node != nil {
			resolved.CandidateID = node.ID
		}
	}
	resolved.Score = 1.0
	return resolved, certainConfidence()
}
