package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// MemoryStore is an in-memory Store implementation with the same idempotence
// guarantees as the Neo4j store. It backs tests and the CLI dry-run mode.
//
// Query support is intentionally minimal: RunQuery understands "count nodes"
// style queries and otherwise returns all nodes as records, which is enough
// for the builtin query tool and the test suite.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node // natural key -> node
	edges map[string]*Edge // natural key -> edge
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
}

// Connect is a no-op for the in-memory store.
func (s *MemoryStore) Connect(ctx context.Context) error { return nil }

// Close clears the store.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]*Node)
	s.edges = make(map[string]*Edge)
	return nil
}

// Health always reports healthy with the current node count.
func (s *MemoryStore) Health(ctx context.Context) types.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Healthy(fmt.Sprintf("in-memory store, %d nodes", len(s.nodes)))
}

// UpsertNode creates or refreshes a node by natural key. A key collision
// with a different label is a constraint violation, never a silent relabel.
func (s *MemoryStore) UpsertNode(ctx context.Context, spec NodeSpec) (*Node, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if existing, ok := s.nodes[spec.Key]; ok {
		if existing.Label != spec.Label {
			return nil, types.NewError(types.CONSTRAINT_VIOLATION,
				fmt.Sprintf("node %q already exists with label %q, cannot upsert as %q",
					spec.Key, existing.Label, spec.Label))
		}

		// Idempotent merge: same identity, props merged, timestamp refreshed.
		for k, v := range spec.Props {
			if existing.Props == nil {
				existing.Props = make(map[string]any)
			}
			existing.Props[k] = v
		}
		existing.UpdatedAt = now
		return copyNode(existing), nil
	}

	node := &Node{
		ID:        types.NewID(),
		Key:       spec.Key,
		Label:     spec.Label,
		Props:     copyProps(spec.Props),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nodes[spec.Key] = node
	return copyNode(node), nil
}

// UpsertEdge creates or refreshes an edge by natural key.
// Both endpoints must already exist.
func (s *MemoryStore) UpsertEdge(ctx context.Context, spec EdgeSpec) (*Edge, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[spec.FromKey]; !ok {
		return nil, types.NewError(types.NOT_FOUND,
			fmt.Sprintf("edge source node %q does not exist", spec.FromKey))
	}
	if _, ok := s.nodes[spec.ToKey]; !ok {
		return nil, types.NewError(types.NOT_FOUND,
			fmt.Sprintf("edge target node %q does not exist", spec.ToKey))
	}

	now := time.Now()

	if existing, ok := s.edges[spec.Key]; ok {
		if existing.Type != spec.Type || existing.FromKey != spec.FromKey || existing.ToKey != spec.ToKey {
			return nil, types.NewError(types.CONSTRAINT_VIOLATION,
				fmt.Sprintf("edge %q already exists with a different shape", spec.Key))
		}
		for k, v := range spec.Props {
			if existing.Props == nil {
				existing.Props = make(map[string]any)
			}
			existing.Props[k] = v
		}
		existing.UpdatedAt = now
		return copyEdge(existing), nil
	}

	edge := &Edge{
		ID:        types.NewID(),
		Key:       spec.Key,
		Type:      spec.Type,
		FromKey:   spec.FromKey,
		ToKey:     spec.ToKey,
		Props:     copyProps(spec.Props),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.edges[spec.Key] = edge
	return copyEdge(edge), nil
}

// UpdateProps merges props into every node selected by match.
func (s *MemoryStore) UpdateProps(ctx context.Context, match Match, props map[string]any) (int, error) {
	if match.IsEmpty() {
		return 0, types.NewError(types.VALIDATION_FAILED, "update requires a non-empty match")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	now := time.Now()
	for _, node := range s.nodes {
		if !nodeMatches(node, match) {
			continue
		}
		if node.Props == nil {
			node.Props = make(map[string]any)
		}
		for k, v := range props {
			node.Props[k] = v
		}
		node.UpdatedAt = now
		updated++
	}

	if updated == 0 {
		return 0, types.NewError(types.NOT_FOUND, matchNotFoundMessage("node", match))
	}
	return updated, nil
}

// DeleteNode removes matched nodes along with their edges.
func (s *MemoryStore) DeleteNode(ctx context.Context, match Match) error {
	if match.IsEmpty() {
		return types.NewError(types.VALIDATION_FAILED, "delete requires a non-empty match")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	for key, node := range s.nodes {
		if !nodeMatches(node, match) {
			continue
		}
		delete(s.nodes, key)
		deleted = true

		// Detach: drop edges touching the deleted node.
		for edgeKey, edge := range s.edges {
			if edge.FromKey == key || edge.ToKey == key {
				delete(s.edges, edgeKey)
			}
		}
	}

	if !deleted {
		return types.NewError(types.NOT_FOUND, matchNotFoundMessage("node", match))
	}
	return nil
}

// DeleteEdge removes matched edges.
func (s *MemoryStore) DeleteEdge(ctx context.Context, match Match) error {
	if match.IsEmpty() {
		return types.NewError(types.VALIDATION_FAILED, "delete requires a non-empty match")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	for key, edge := range s.edges {
		if !edgeMatches(edge, match) {
			continue
		}
		delete(s.edges, key)
		deleted = true
	}

	if !deleted {
		return types.NewError(types.NOT_FOUND, matchNotFoundMessage("edge", match))
	}
	return nil
}

// RunQuery executes a minimal query against the in-memory store.
func (s *MemoryStore) RunQuery(ctx context.Context, query string, params map[string]any) (QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()
	lower := strings.ToLower(query)

	if strings.Contains(lower, "count") {
		return QueryResult{
			Records: []map[string]any{{"count": len(s.nodes)}},
			Columns: []string{"count"},
			Summary: QuerySummary{ExecutionTime: time.Since(start)},
		}, nil
	}

	records := make([]map[string]any, 0, len(s.nodes))
	for _, node := range s.nodes {
		records = append(records, map[string]any{
			"id":    node.ID.String(),
			"key":   node.Key,
			"label": node.Label,
			"props": copyProps(node.Props),
		})
	}

	return QueryResult{
		Records: records,
		Columns: []string{"id", "key", "label", "props"},
		Summary: QuerySummary{ExecutionTime: time.Since(start)},
	}, nil
}

// GetSubgraph returns a snapshot of matched nodes and their neighborhood up
// to depth hops. An empty match with a label or props selects by those; a
// fully empty match returns the whole graph bounded by depth from all nodes.
func (s *MemoryStore) GetSubgraph(ctx context.Context, match Match, depth int) (*GraphSnapshot, error) {
	if depth < 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "subgraph depth cannot be negative")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Seed with matched nodes.
	frontier := make(map[string]bool)
	for key, node := range s.nodes {
		if match.IsEmpty() || nodeMatches(node, match) {
			frontier[key] = true
		}
	}

	// BFS expansion bounded by depth.
	included := make(map[string]bool)
	for key := range frontier {
		included[key] = true
	}
	for hop := 0; hop < depth; hop++ {
		next := make(map[string]bool)
		for _, edge := range s.edges {
			if frontier[edge.FromKey] && !included[edge.ToKey] {
				next[edge.ToKey] = true
			}
			if frontier[edge.ToKey] && !included[edge.FromKey] {
				next[edge.FromKey] = true
			}
		}
		if len(next) == 0 {
			break
		}
		for key := range next {
			included[key] = true
		}
		frontier = next
	}

	snapshot := &GraphSnapshot{
		Query:      fmt.Sprintf("subgraph(%s, depth=%d)", describeMatch(match), depth),
		Depth:      depth,
		CapturedAt: time.Now(),
	}
	for key := range included {
		snapshot.Nodes = append(snapshot.Nodes, *copyNode(s.nodes[key]))
	}
	for _, edge := range s.edges {
		if included[edge.FromKey] && included[edge.ToKey] {
			snapshot.Edges = append(snapshot.Edges, *copyEdge(edge))
		}
	}

	return snapshot, nil
}

func nodeMatches(node *Node, match Match) bool {
	if match.Key != "" {
		return node.Key == match.Key
	}
	if match.Label != "" && node.Label != match.Label {
		return false
	}
	for k, v := range match.Props {
		if node.GetProperty(k) != v {
			return false
		}
	}
	return true
}

func edgeMatches(edge *Edge, match Match) bool {
	if match.Key != "" {
		return edge.Key == match.Key
	}
	if match.Label != "" && edge.Type != match.Label {
		return false
	}
	for k, v := range match.Props {
		if edge.Props == nil || edge.Props[k] != v {
			return false
		}
	}
	return true
}

func matchNotFoundMessage(kind string, match Match) string {
	return fmt.Sprintf("no %s matched %s", kind, describeMatch(match))
}

func describeMatch(match Match) string {
	switch {
	case match.Key != "":
		return fmt.Sprintf("key=%q", match.Key)
	case match.Label != "":
		return fmt.Sprintf("label=%q", match.Label)
	default:
		return fmt.Sprintf("props=%v", match.Props)
	}
}

func copyNode(n *Node) *Node {
	cp := *n
	cp.Props = copyProps(n.Props)
	return &cp
}

func copyEdge(e *Edge) *Edge {
	cp := *e
	cp.Props = copyProps(e.Props)
	return &cp
}

func copyProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}
