// Package resolve links natural-language entity mentions to graph identities.
// Resolution runs deterministic rules first, similarity scoring second, and
// only then decides between reusing an entity, creating one, or asking the
// user. Failures lean toward ask_user: a wrong silent merge is worse than a
// question.
package resolve

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/types"
)

// ResolverConfig carries the decision thresholds and scoring weights.
type ResolverConfig struct {
	Weights Weights `yaml:"weights"`

	// UseExistingThreshold is the overall score above which a single best
	// candidate is reused without asking.
	UseExistingThreshold float64 `yaml:"use_existing_threshold"`

	// CreateNewThreshold is the overall score below which every candidate
	// is dismissed and a new entity is created.
	CreateNewThreshold float64 `yaml:"create_new_threshold"`

	// DedupThreshold collapses near-identical candidates before the user is
	// asked to pick between them.
	DedupThreshold float64 `yaml:"dedup_threshold"`

	// MaxCandidates caps the candidate list presented to the user.
	MaxCandidates int `yaml:"max_candidates"`

	// MinPropertyOverlap feeds the rule-stage candidate filter.
	MinPropertyOverlap float64 `yaml:"min_property_overlap"`
}

// DefaultResolverConfig returns the standard thresholds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Weights:              DefaultWeights(),
		UseExistingThreshold: 0.95,
		CreateNewThreshold:   0.3,
		DedupThreshold:       DefaultDedupThreshold,
		MaxCandidates:        5,
	}
}

// Validate checks threshold ordering and weights.
func (c ResolverConfig) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.CreateNewThreshold < 0 || c.UseExistingThreshold > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "resolution thresholds must stay within [0,1]")
	}
	if c.CreateNewThreshold >= c.UseExistingThreshold {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("create_new threshold %.2f must be below use_existing threshold %.2f",
				c.CreateNewThreshold, c.UseExistingThreshold))
	}
	if c.MaxCandidates <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "max_candidates must be positive")
	}
	return nil
}

// EntityResolver decides how each mention maps onto the graph.
type EntityResolver struct {
	config ResolverConfig
	rules  Rules
	scorer *Scorer
	dedup  *DeduplicationEngine
	logger *slog.Logger
}

// ResolverOption configures an EntityResolver.
type ResolverOption func(*EntityResolver)

// WithLogger sets the resolver's logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *EntityResolver) {
		r.logger = logger
	}
}

// WithDedupEngine replaces the default deduplication engine, e.g. to install
// custom merge strategies.
func WithDedupEngine(engine *DeduplicationEngine) ResolverOption {
	return func(r *EntityResolver) {
		r.dedup = engine
	}
}

// NewEntityResolver creates a resolver from config.
func NewEntityResolver(config ResolverConfig, opts ...ResolverOption) (*EntityResolver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &EntityResolver{
		config: config,
		rules:  Rules{MinPropertyOverlap: config.MinPropertyOverlap},
		scorer: NewScorer(config.Weights),
		dedup:  NewDeduplicationEngine(WithThreshold(config.DedupThreshold)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve decides the strategy for a single mention against the snapshot.
// The returned record is complete and immutable; callers append it to the
// session rather than editing it.
func (r *EntityResolver) Resolve(mention EntityMention, snapshot *graph.GraphSnapshot) (EntityResolution, error) {
	if strings.TrimSpace(mention.SurfaceForm) == "" {
		return EntityResolution{}, types.NewError(types.VALIDATION_FAILED, "entity mention has an empty surface form")
	}

	resolution := EntityResolution{
		ID:        types.NewID(),
		Mention:   mention.SurfaceForm,
		DecidedAt: time.Now().UTC(),
	}

	candidates := r.rules.Filter(mention, CandidatesFromSnapshot(snapshot))

	// An empty neighborhood means there is nothing to confuse the mention
	// with.
	if len(candidates) == 0 {
		resolution.Strategy = StrategyCreateNew
		r.logResolution(resolution, 0)
		return resolution, nil
	}

	if exact := r.rules.ExactMatch(mention, candidates); exact != nil {
		matched, conf := exactResolutionFor(exact, snapshot)
		resolution.Strategy = StrategyUseExisting
		resolution.EntityID = matched.CandidateID
		resolution.EntityKey = matched.Key
		resolution.Confidence = conf
		resolution.Candidates = []EntityCandidate{matched}
		r.logResolution(resolution, len(candidates))
		return resolution, nil
	}

	scored := r.scoreCandidates(mention, candidates, snapshot)
	best := scored[0]
	resolution.Confidence = r.scorer.Score(mention, best, snapshot)

	switch {
	case best.Score > r.config.UseExistingThreshold:
		resolution.Strategy = StrategyUseExisting
		resolution.EntityID = best.CandidateID
		resolution.EntityKey = best.Key
		resolution.Candidates = []EntityCandidate{best}

	case best.Score < r.config.CreateNewThreshold:
		resolution.Strategy = StrategyCreateNew

	default:
		viable := r.viableCandidates(scored)
		if len(viable) > 1 {
			viable = r.collapseDuplicates(viable)
		}
		if len(viable) > r.config.MaxCandidates {
			viable = viable[:r.config.MaxCandidates]
		}
		resolution.Strategy = StrategyAskUser
		resolution.Candidates = viable
	}

	r.logResolution(resolution, len(candidates))
	return resolution, nil
}

// ResolveGoal resolves every mention of a goal. Ambiguous mentions become
// pending ambiguities; the spec is ready to execute only when none remain.
func (r *EntityResolver) ResolveGoal(goal string, mentions []EntityMention, snapshot *graph.GraphSnapshot) (*ResolvedGoalSpec, error) {
	spec := &ResolvedGoalSpec{Goal: goal}

	for _, mention := range mentions {
		resolution, err := r.Resolve(mention, snapshot)
		if err != nil {
			return nil, err
		}
		spec.Resolutions = append(spec.Resolutions, resolution)

		if resolution.Strategy == StrategyAskUser {
			spec.Ambiguities = append(spec.Ambiguities, AmbiguityResolution{
				Mention:    mention,
				Question:   disambiguationQuestion(mention, resolution.Candidates),
				Candidates: resolution.Candidates,
				Status:     AmbiguityPending,
			})
		}
	}

	spec.ReadyToExecute = len(spec.PendingAmbiguities()) == 0
	return spec, nil
}

// ResolveIntent resolves every mention a parsed intent extracted, carrying
// the intent spec through to the resolved goal.
func (r *EntityResolver) ResolveIntent(parsed intent.IntentSpec, snapshot *graph.GraphSnapshot) (*ResolvedGoalSpec, error) {
	spec, err := r.ResolveGoal(parsed.Goal, MentionsFromIntent(parsed), snapshot)
	if err != nil {
		return nil, err
	}
	spec.Intent = parsed
	return spec, nil
}

// ApplyAnswer folds a human disambiguation answer back into the spec. An
// empty chosen key means "none of these, create a new entity". A fresh
// resolution record is appended; the original ask_user record is retained.
func (r *EntityResolver) ApplyAnswer(spec *ResolvedGoalSpec, mention string, chosenKey string) (*ResolvedGoalSpec, error) {
	if spec == nil {
		return nil, types.NewError(types.VALIDATION_FAILED, "cannot apply an answer to a nil goal spec")
	}

	idx := -1
	for i, a := range spec.Ambiguities {
		if a.Status == AmbiguityPending && a.Mention.SurfaceForm == mention {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, types.NewError(types.NOT_FOUND,
			fmt.Sprintf("no pending ambiguity for mention %q", mention))
	}

	ambiguity := &spec.Ambiguities[idx]

	resolution := EntityResolution{
		ID:        types.NewID(),
		Mention:   mention,
		DecidedAt: time.Now().UTC(),
	}

	if chosenKey == "" {
		resolution.Strategy = StrategyCreateNew
	} else {
		var chosen *EntityCandidate
		for i := range ambiguity.Candidates {
			if ambiguity.Candidates[i].Key == chosenKey {
				chosen = &ambiguity.Candidates[i]
				break
			}
		}
		if chosen == nil {
			return nil, types.NewError(types.AMBIGUOUS_ENTITY,
				fmt.Sprintf("chosen key %q is not among the presented candidates", chosenKey))
		}
		resolution.Strategy = StrategyUseExisting
		resolution.EntityID = chosen.CandidateID
		resolution.EntityKey = chosen.Key
		resolution.Confidence = certainConfidence()
		resolution.Candidates = []EntityCandidate{*chosen}
	}

	ambiguity.Status = AmbiguityResolved
	ambiguity.ChosenKey = chosenKey
	spec.Resolutions = append(spec.Resolutions, resolution)
	spec.ReadyToExecute = len(spec.PendingAmbiguities()) == 0

	return spec, nil
}

// scoreCandidates scores and sorts candidates best-first. Ties break on key
// so the ordering is stable across runs.
func (r *EntityResolver) scoreCandidates(mention EntityMention, candidates []EntityCandidate, snapshot *graph.GraphSnapshot) []EntityCandidate {
	scored := make([]EntityCandidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		conf := r.scorer.Score(mention, scored[i], snapshot)
		scored[i].Score = conf.Overall
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Key < scored[j].Key
	})
	return scored
}

// viableCandidates keeps candidates scoring at or above the create_new
// threshold.
func (r *EntityResolver) viableCandidates(scored []EntityCandidate) []EntityCandidate {
	var viable []EntityCandidate
	for _, c := range scored {
		if c.Score >= r.config.CreateNewThreshold {
			viable = append(viable, c)
		}
	}
	return viable
}

// collapseDuplicates merges near-identical candidates so the user is never
// asked to choose between two records of the same entity.
func (r *EntityResolver) collapseDuplicates(candidates []EntityCandidate) []EntityCandidate {
	clusters := r.dedup.FindDuplicates(candidates)
	if len(clusters) == len(candidates) {
		return candidates
	}

	collapsed := make([]EntityCandidate, 0, len(clusters))
	for _, cluster := range clusters {
		merged, err := r.dedup.Merge(cluster)
		if err != nil {
			r.logger.Warn("duplicate cluster merge failed, keeping unmerged candidates",
				"cluster_size", len(cluster),
				"error", err)
			collapsed = append(collapsed, cluster...)
			continue
		}
		collapsed = append(collapsed, merged)
	}

	sort.SliceStable(collapsed, func(i, j int) bool {
		if collapsed[i].Score != collapsed[j].Score {
			return collapsed[i].Score > collapsed[j].Score
		}
		return collapsed[i].Key < collapsed[j].Key
	})
	return collapsed
}

func (r *EntityResolver) logResolution(resolution EntityResolution, candidateCount int) {
	r.logger.Debug("entity mention resolved",
		"mention", resolution.Mention,
		"strategy", resolution.Strategy,
		"entity_key", resolution.EntityKey,
		"overall", resolution.Confidence.Overall,
		"candidates_considered", candidateCount,
		"candidates_presented", len(resolution.Candidates))
}

// disambiguationQuestion renders the question shown to the user.
func disambiguationQuestion(mention EntityMention, candidates []EntityCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Which entity does %q refer to?\n", mention.SurfaceForm)
	for i, c := range candidates {
		label := c.Label
		if label == "" {
			label = "unknown type"
		}
		fmt.Fprintf(&b, "  %d. %s (%s, key=%s, score=%.2f)\n", i+1, c.Name, label, c.Key, c.Score)
	}
	b.WriteString("  0. None of these; create a new entity")
	return b.String()
}
