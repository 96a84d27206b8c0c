package graph

import (
	"context"
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// Store provides the graph backend contract. Implementations must be safe
// for concurrent access from multiple sessions, and all upserts must be
// idempotent under the natural key: repeated identical calls produce no
// duplicate and no observable state change beyond timestamp refresh.
type Store interface {
	// Connect establishes a connection to the graph backend.
	Connect(ctx context.Context) error

	// Close releases all resources held by the store.
	Close(ctx context.Context) error

	// Health returns the current health status of the backend connection.
	Health(ctx context.Context) types.HealthStatus

	// UpsertNode creates or refreshes a node by natural key.
	UpsertNode(ctx context.Context, spec NodeSpec) (*Node, error)

	// UpsertEdge creates or refreshes an edge by natural key. Both endpoint
	// nodes must already exist.
	UpsertEdge(ctx context.Context, spec EdgeSpec) (*Edge, error)

	// UpdateProps merges props into every node selected by match and returns
	// the number of nodes updated.
	UpdateProps(ctx context.Context, match Match, props map[string]any) (int, error)

	// DeleteNode removes nodes selected by match along with their edges.
	DeleteNode(ctx context.Context, match Match) error

	// DeleteEdge removes edges selected by match.
	DeleteEdge(ctx context.Context, match Match) error

	// RunQuery executes a backend query with the given parameters.
	RunQuery(ctx context.Context, query string, params map[string]any) (QueryResult, error)

	// GetSubgraph returns a read-only snapshot of the graph around the
	// matched nodes, bounded by depth hops.
	GetSubgraph(ctx context.Context, match Match, depth int) (*GraphSnapshot, error)
}

// StoreConfig contains connection settings for graph store implementations.
type StoreConfig struct {
	// URI is the connection URI for the graph backend.
	// For Neo4j: "bolt://host:port", "neo4j://host:port" or the +s variants.
	URI string `yaml:"uri"`

	// Username for authentication.
	Username string `yaml:"username"`

	// Password for authentication.
	Password string `yaml:"password"`

	// Database name to connect to. Empty string uses the backend default.
	Database string `yaml:"database"`

	// MaxConnectionPoolSize limits the number of pooled connections.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size"`

	// ConnectionTimeout is the maximum time to wait for a connection.
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// DefaultStoreConfig returns a StoreConfig with sensible defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		URI:                   "bolt://localhost:7687",
		Username:              "neo4j",
		Password:              "password",
		MaxConnectionPoolSize: 50,
		ConnectionTimeout:     30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c StoreConfig) Validate() error {
	if c.URI == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph store URI cannot be empty")
	}
	if c.Username == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph store username cannot be empty")
	}
	if c.Password == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph store password cannot be empty")
	}
	if c.ConnectionTimeout <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph store connection timeout must be positive")
	}
	return nil
}
