package graph

import (
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// Node is a property-graph node as stored by the backend.
// Key is the natural key used for idempotent upserts; ID is the
// system-generated identity and is never derived from model output.
type Node struct {
	ID        types.ID       `json:"id"`
	Key       string         `json:"key"`
	Label     string         `json:"label"`
	Props     map[string]any `json:"props,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// GetProperty returns a property value by key, or nil if absent.
func (n *Node) GetProperty(key string) any {
	if n.Props == nil {
		return nil
	}
	return n.Props[key]
}

// Edge is a directed relationship between two nodes, addressed by the
// natural keys of its endpoints.
type Edge struct {
	ID        types.ID       `json:"id"`
	Key       string         `json:"key"`
	Type      string         `json:"type"`
	FromKey   string         `json:"from_key"`
	ToKey     string         `json:"to_key"`
	Props     map[string]any `json:"props,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NodeSpec describes a node to upsert. Repeated upserts of an identical spec
// must produce no duplicate and no observable change beyond timestamp refresh.
type NodeSpec struct {
	Key   string         `json:"key"`
	Label string         `json:"label"`
	Props map[string]any `json:"props,omitempty"`
}

// Validate checks that the spec carries the fields the store requires.
func (s NodeSpec) Validate() error {
	if s.Key == "" {
		return types.NewError(types.VALIDATION_FAILED, "node spec requires a natural key")
	}
	if s.Label == "" {
		return types.NewError(types.VALIDATION_FAILED, "node spec requires a label")
	}
	return nil
}

// EdgeSpec describes an edge to upsert between two existing nodes.
type EdgeSpec struct {
	Key     string         `json:"key"`
	Type    string         `json:"type"`
	FromKey string         `json:"from_key"`
	ToKey   string         `json:"to_key"`
	Props   map[string]any `json:"props,omitempty"`
}

// Validate checks that the spec carries the fields the store requires.
func (s EdgeSpec) Validate() error {
	if s.Key == "" {
		return types.NewError(types.VALIDATION_FAILED, "edge spec requires a natural key")
	}
	if s.Type == "" {
		return types.NewError(types.VALIDATION_FAILED, "edge spec requires a type")
	}
	if s.FromKey == "" || s.ToKey == "" {
		return types.NewError(types.VALIDATION_FAILED, "edge spec requires from_key and to_key")
	}
	return nil
}

// Match selects nodes or edges by natural key, label/type, and property
// equality. Key takes precedence when set; otherwise Label and Props are
// combined conjunctively.
type Match struct {
	Key   string         `json:"key,omitempty"`
	Label string         `json:"label,omitempty"`
	Props map[string]any `json:"props,omitempty"`
}

// IsEmpty reports whether the match selects nothing at all.
func (m Match) IsEmpty() bool {
	return m.Key == "" && m.Label == "" && len(m.Props) == 0
}

// GraphSnapshot is a bounded, read-only view of the graph around a match.
// Snapshots are regenerated per use and never mutated in place.
type GraphSnapshot struct {
	Nodes      []Node    `json:"nodes"`
	Edges      []Edge    `json:"edges"`
	Query      string    `json:"query"`
	Depth      int       `json:"depth"`
	CapturedAt time.Time `json:"captured_at"`
}

// IsEmpty reports whether the snapshot contains no nodes.
func (s *GraphSnapshot) IsEmpty() bool {
	return s == nil || len(s.Nodes) == 0
}

// NodeByKey returns the snapshot node with the given natural key, or nil.
func (s *GraphSnapshot) NodeByKey(key string) *Node {
	if s == nil {
		return nil
	}
	for i := range s.Nodes {
		if s.Nodes[i].Key == key {
			return &s.Nodes[i]
		}
	}
	return nil
}

// NeighborKeys returns the natural keys of nodes directly connected to the
// node with the given key, in either direction.
func (s *GraphSnapshot) NeighborKeys(key string) []string {
	if s == nil {
		return nil
	}
	var neighbors []string
	for _, e := range s.Edges {
		switch key {
		case e.FromKey:
			neighbors = append(neighbors, e.ToKey)
		case e.ToKey:
			neighbors = append(neighbors, e.FromKey)
		}
	}
	return neighbors
}

// QueryResult represents the result of a backend query execution.
type QueryResult struct {
	// Records contains the result rows as maps of column name to value.
	Records []map[string]any

	// Columns contains the names of the columns in the result set.
	Columns []string

	// Summary contains metadata about the query execution.
	Summary QuerySummary
}

// QuerySummary provides metadata about query execution.
type QuerySummary struct {
	ExecutionTime        time.Duration
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}
