package resolve

import (
	"sort"

	"github.com/graphwright/graphwright/internal/types"
)

// MergeStrategy selects the winning value when merged duplicates disagree on
// a property.
type MergeStrategy string

const (
	// PreserveLatest keeps the value from the most recently updated record.
	PreserveLatest MergeStrategy = "preserve_latest"
	// PreserveMostComplete keeps the value from the record with the most
	// filled properties.
	PreserveMostComplete MergeStrategy = "preserve_most_complete"
	// PreserveMostAuthoritative keeps the value from the highest-ranked
	// source.
	PreserveMostAuthoritative MergeStrategy = "preserve_most_authoritative"
	// StrategyCustom delegates every conflict to a caller-supplied resolver.
	StrategyCustom MergeStrategy = "custom"
)

// DefaultDedupThreshold is the pairwise similarity above which two candidates
// are considered the same entity.
const DefaultDedupThreshold = 0.8

// ConflictValue is one candidate's value for a disputed property.
type ConflictValue struct {
	Value     any
	Source    string
	UpdatedAt int64
}

// ConflictResolver picks the winning value for one property under the custom
// strategy. Values arrive in the engine's canonical candidate order.
type ConflictResolver func(property string, values []ConflictValue) any

// DedupOption configures a DeduplicationEngine.
type DedupOption func(*DeduplicationEngine)

// WithThreshold overrides the pairwise duplicate threshold.
func WithThreshold(threshold float64) DedupOption {
	return func(e *DeduplicationEngine) {
		e.threshold = threshold
	}
}

// WithStrategy sets the default merge strategy for all properties.
func WithStrategy(strategy MergeStrategy) DedupOption {
	return func(e *DeduplicationEngine) {
		e.defaultStrategy = strategy
	}
}

// WithPropertyStrategy overrides the merge strategy for a single property.
func WithPropertyStrategy(property string, strategy MergeStrategy) DedupOption {
	return func(e *DeduplicationEngine) {
		e.propertyStrategies[property] = strategy
	}
}

// WithSourceRank sets the authority ordering for preserve_most_authoritative.
// Lower rank wins; unknown sources rank last.
func WithSourceRank(ranks map[string]int) DedupOption {
	return func(e *DeduplicationEngine) {
		e.sourceRank = ranks
	}
}

// WithConflictResolver installs the resolver used by the custom strategy.
func WithConflictResolver(resolver ConflictResolver) DedupOption {
	return func(e *DeduplicationEngine) {
		e.resolver = resolver
	}
}

// DeduplicationEngine finds clusters of candidates that denote the same
// entity and merges each cluster into a single canonical record. Merging is
// idempotent: merging a merged record with any cluster member yields the
// same record.
type DeduplicationEngine struct {
	threshold          float64
	defaultStrategy    MergeStrategy
	propertyStrategies map[string]MergeStrategy
	sourceRank         map[string]int
	resolver           ConflictResolver
}

// NewDeduplicationEngine creates an engine with the default threshold and
// preserve_latest merging.
func NewDeduplicationEngine(opts ...DedupOption) *DeduplicationEngine {
	e := &DeduplicationEngine{
		threshold:          DefaultDedupThreshold,
		defaultStrategy:    PreserveLatest,
		propertyStrategies: make(map[string]MergeStrategy),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindDuplicates partitions candidates into clusters of likely duplicates.
// Duplication is transitive through union-find: if A~B and B~C then A, B and
// C share a cluster even when A and C score below the threshold. Singleton
// clusters are included so the caller sees every input exactly once.
func (e *DeduplicationEngine) FindDuplicates(candidates []EntityCandidate) [][]EntityCandidate {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if candidateSimilarity(candidates[i], candidates[j]) >= e.threshold {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]EntityCandidate)
	var roots []int
	for i, c := range candidates {
		root := uf.find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], c)
	}

	clusters := make([][]EntityCandidate, 0, len(roots))
	for _, root := range roots {
		clusters = append(clusters, byRoot[root])
	}
	return clusters
}

// Merge collapses one cluster into a canonical candidate. The primary record
// (chosen by the default strategy's ordering) supplies the identity; disputed
// properties are resolved per-key, honoring per-property overrides.
func (e *DeduplicationEngine) Merge(cluster []EntityCandidate) (EntityCandidate, error) {
	if len(cluster) == 0 {
		return EntityCandidate{}, types.NewError(types.VALIDATION_FAILED, "cannot merge an empty cluster")
	}
	if len(cluster) == 1 {
		return cluster[0], nil
	}

	ordered := e.orderForStrategy(cluster, e.defaultStrategy)
	primary := ordered[0]

	merged := EntityCandidate{
		CandidateID: primary.CandidateID,
		Key:         primary.Key,
		Name:        primary.Name,
		Label:       primary.Label,
		Source:      primary.Source,
		UpdatedAt:   primary.UpdatedAt,
		Props:       make(map[string]any),
	}
	for _, c := range cluster {
		if c.Score > merged.Score {
			merged.Score = c.Score
		}
	}

	for _, key := range clusterPropertyKeys(cluster) {
		value, err := e.resolveProperty(key, cluster)
		if err != nil {
			return EntityCandidate{}, err
		}
		if value != nil {
			merged.Props[key] = value
		}
	}

	return merged, nil
}

// resolveProperty picks the winning value for one property across the
// cluster.
func (e *DeduplicationEngine) resolveProperty(key string, cluster []EntityCandidate) (any, error) {
	strategy := e.defaultStrategy
	if override, ok := e.propertyStrategies[key]; ok {
		strategy = override
	}

	if strategy == StrategyCustom {
		if e.resolver == nil {
			return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "custom merge strategy requires a conflict resolver")
		}
		var values []ConflictValue
		for _, c := range e.orderForStrategy(cluster, PreserveLatest) {
			if v, ok := c.Props[key]; ok {
				values = append(values, ConflictValue{
					Value:     v,
					Source:    c.Source,
					UpdatedAt: c.UpdatedAt.UnixNano(),
				})
			}
		}
		return e.resolver(key, values), nil
	}

	for _, c := range e.orderForStrategy(cluster, strategy) {
		if v, ok := c.Props[key]; ok && v != nil {
			return v, nil
		}
	}
	return nil, nil
}

// orderForStrategy sorts a copy of the cluster so the preferred record comes
// first. Ties break on natural key so the ordering, and therefore the merge,
// is deterministic.
func (e *DeduplicationEngine) orderForStrategy(cluster []EntityCandidate, strategy MergeStrategy) []EntityCandidate {
	ordered := make([]EntityCandidate, len(cluster))
	copy(ordered, cluster)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		switch strategy {
		case PreserveMostComplete:
			ca, cb := completeness(a), completeness(b)
			if ca != cb {
				return ca > cb
			}
		case PreserveMostAuthoritative:
			ra, rb := e.rankOf(a.Source), e.rankOf(b.Source)
			if ra != rb {
				return ra < rb
			}
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		}
		return a.Key < b.Key
	})
	return ordered
}

func (e *DeduplicationEngine) rankOf(source string) int {
	if rank, ok := e.sourceRank[source]; ok {
		return rank
	}
	return int(^uint(0) >> 1)
}

func completeness(c EntityCandidate) int {
	count := 0
	for _, v := range c.Props {
		if v != nil {
			count++
		}
	}
	return count
}

func clusterPropertyKeys(cluster []EntityCandidate) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, c := range cluster {
		for key := range c.Props {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// unionFind is a standard disjoint-set with path compression and union by
// rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
