package graph

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphwright/graphwright/internal/types"
)

// identifierPattern restricts labels and relationship types interpolated
// into Cypher. Parameters cannot carry labels, so these must be validated.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Neo4jStore implements Store for Neo4j graph databases.
// All upserts use Cypher MERGE on the natural key, which makes repeated
// identical calls idempotent at the backend.
type Neo4jStore struct {
	config StoreConfig
	driver neo4j.DriverWithContext
}

// NewNeo4jStore creates a new Neo4j store with the given configuration.
// The store must be connected via Connect() before use.
func NewNeo4jStore(config StoreConfig) (*Neo4jStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Neo4jStore{
		config: config,
	}, nil
}

// Connect establishes a connection to the Neo4j database.
// Uses exponential backoff for connection retries.
func (s *Neo4jStore) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(s.config.Username, s.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = s.config.MaxConnectionPoolSize
		config.ConnectionAcquisitionTimeout = s.config.ConnectionTimeout
	}

	var driver neo4j.DriverWithContext
	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		var err error
		driver, err = neo4j.NewDriverWithContext(s.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				s.driver = driver
				return nil
			}
		}

		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(types.GRAPH_UNAVAILABLE, "connection attempt cancelled", ctx.Err())
		}

		// baseDelay * 2^attempt, capped at the configured timeout
		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > s.config.ConnectionTimeout {
			delay = s.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return types.WrapError(types.GRAPH_UNAVAILABLE, "connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapRetryableError(types.GRAPH_UNAVAILABLE,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close releases all resources and closes the database connection.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	if err := s.driver.Close(ctx); err != nil {
		return types.WrapError(types.GRAPH_UNAVAILABLE, "failed to close driver", err)
	}

	s.driver = nil
	return nil
}

// Health returns the current health status of the Neo4j connection.
func (s *Neo4jStore) Health(ctx context.Context) types.HealthStatus {
	if s.driver == nil {
		return types.Unhealthy("driver not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}

	return types.Healthy("connected to Neo4j")
}

// UpsertNode creates or refreshes a node by natural key using MERGE.
func (s *Neo4jStore) UpsertNode(ctx context.Context, spec NodeSpec) (*Node, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := validateIdentifier(spec.Label); err != nil {
		return nil, err
	}
	if s.driver == nil {
		return nil, types.NewError(types.GRAPH_UNAVAILABLE, "driver not connected")
	}

	// ON CREATE assigns a fresh system identity; ON MATCH only refreshes.
	cypher := fmt.Sprintf(`
		MERGE (n:%s {key: $key})
		ON CREATE SET n.id = $id, n.created_at = datetime()
		SET n += $props, n.updated_at = datetime()
		RETURN n.id AS id, n.key AS key, properties(n) AS props
	`, spec.Label)

	params := map[string]any{
		"key":   spec.Key,
		"id":    types.NewID().String(),
		"props": nonNilProps(spec.Props),
	}

	record, err := s.writeSingle(ctx, cypher, params)
	if err != nil {
		return nil, translateNeo4jError("upsert node", err)
	}

	return recordToNode(record, spec.Label), nil
}

// UpsertEdge creates or refreshes an edge by natural key using MERGE.
// Both endpoint nodes must already exist; a missing endpoint is NOT_FOUND.
func (s *Neo4jStore) UpsertEdge(ctx context.Context, spec EdgeSpec) (*Edge, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := validateIdentifier(spec.Type); err != nil {
		return nil, err
	}
	if s.driver == nil {
		return nil, types.NewError(types.GRAPH_UNAVAILABLE, "driver not connected")
	}

	cypher := fmt.Sprintf(`
		MATCH (from {key: $fromKey}), (to {key: $toKey})
		MERGE (from)-[r:%s {key: $key}]->(to)
		ON CREATE SET r.id = $id, r.created_at = datetime()
		SET r += $props, r.updated_at = datetime()
		RETURN r.id AS id, r.key AS key, properties(r) AS props
	`, spec.Type)

	params := map[string]any{
		"key":     spec.Key,
		"fromKey": spec.FromKey,
		"toKey":   spec.ToKey,
		"id":      types.NewID().String(),
		"props":   nonNilProps(spec.Props),
	}

	record, err := s.writeSingle(ctx, cypher, params)
	if err != nil {
		if neo4j.IsNeo4jError(err) {
			return nil, translateNeo4jError("upsert edge", err)
		}
		// Single() fails with no rows when an endpoint did not match.
		return nil, types.NewError(types.NOT_FOUND,
			fmt.Sprintf("edge endpoints %q -> %q do not both exist", spec.FromKey, spec.ToKey))
	}

	edge := &Edge{
		Key:     spec.Key,
		Type:    spec.Type,
		FromKey: spec.FromKey,
		ToKey:   spec.ToKey,
	}
	if id, ok := record["id"].(string); ok {
		edge.ID = types.ID(id)
	}
	if props, ok := record["props"].(map[string]any); ok {
		edge.Props = filterSystemProps(props)
	}
	return edge, nil
}

// UpdateProps merges props into every node selected by match.
func (s *Neo4jStore) UpdateProps(ctx context.Context, match Match, props map[string]any) (int, error) {
	if match.IsEmpty() {
		return 0, types.NewError(types.VALIDATION_FAILED, "update requires a non-empty match")
	}
	if s.driver == nil {
		return 0, types.NewError(types.GRAPH_UNAVAILABLE, "driver not connected")
	}

	where, params := matchClause(match)
	params["props"] = nonNilProps(props)

	cypher := fmt.Sprintf(`
		MATCH (n) WHERE %s
		SET n += $props, n.updated_at = datetime()
		RETURN count(n) AS updated
	`, where)

	record, err := s.writeSingle(ctx, cypher, params)
	if err != nil {
		return 0, translateNeo4jError("update props", err)
	}

	updated := int(asInt64(record["updated"]))
	if updated == 0 {
		return 0, types.NewError(types.NOT_FOUND, matchNotFoundMessage("node", match))
	}
	return updated, nil
}

// DeleteNode removes matched nodes along with their edges.
func (s *Neo4jStore) DeleteNode(ctx context.Context, match Match) error {
	if match.IsEmpty() {
		return types.NewError(types.VALIDATION_FAILED, "delete requires a non-empty match")
	}
	if s.driver == nil {
		return types.NewError(types.GRAPH_UNAVAILABLE, "driver not connected")
	}

	where, params := matchClause(match)
	cypher := fmt.Sprintf(`
		MATCH (n) WHERE %s
		DETACH DELETE n
		RETURN count(n) AS deleted
	`, where)

	record, err := s.writeSingle(ctx, cypher, params)
	if err != nil {
		return translateNeo4jError("delete node", err)
	}

	if asInt64(record["deleted"]) == 0 {
		return types.NewError(types.NOT_FOUND, matchNotFoundMessage("node", match))
	}
	return nil
}

// DeleteEdge removes matched edges.
func (s *Neo4jStore) DeleteEdge(ctx context.Context, match Match) error {
	if match.IsEmpty() {
		return types.NewError(types.VALIDATION_FAILED, "delete requires a non-empty match")
	}
	if s.driver == nil {
		return types.NewError(types.GRAPH_UNAVAILABLE, "driver not connected")
	}

	params := map[string]any{}
	where := "true"
	if match.Key != "" {
		where = "r.key = $key"
		params["key"] = match.Key
	}

	var cypher string
	if match.Label != "" {
		if err := validateIdentifier(match.Label); err != nil {
			return err
		}
		cypher = fmt.Sprintf("MATCH ()-[r:%s]->() WHERE %s DELETE r RETURN count(r) AS deleted", match.Label, where)
	} else {
		cypher = fmt.Sprintf("MATCH ()-[r]->() WHERE %s DELETE r RETURN count(r) AS deleted", where)
	}

	record, err := s.writeSingle(ctx, cypher, params)
	if err != nil {
		return translateNeo4jError("delete edge", err)
	}

	if asInt64(record["deleted"]) == 0 {
		return types.NewError(types.NOT_FOUND, matchNotFoundMessage("edge", match))
	}
	return nil
}

// RunQuery executes a Cypher query with the given parameters.
func (s *Neo4jStore) RunQuery(ctx context.Context, query string, params map[string]any) (QueryResult, error) {
	if s.driver == nil {
		return QueryResult{}, types.NewError(types.GRAPH_UNAVAILABLE, "driver not connected")
	}

	startTime := time.Now()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.config.Database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		records, err := neoResult.Collect(ctx)
		if err != nil {
			return nil, err
		}

		summary, err := neoResult.Consume(ctx)
		if err != nil {
			return nil, err
		}

		return convertNeo4jResult(records, summary), nil
	})

	if err != nil {
		return QueryResult{}, translateNeo4jError("query", err)
	}

	queryResult := result.(QueryResult)
	queryResult.Summary.ExecutionTime = time.Since(startTime)

	return queryResult, nil
}

// GetSubgraph returns a snapshot of matched nodes and their neighborhood up
// to depth hops, via a bounded variable-length traversal.
func (s *Neo4jStore) GetSubgraph(ctx context.Context, match Match, depth int) (*GraphSnapshot, error) {
	if depth < 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "subgraph depth cannot be negative")
	}
	if s.driver == nil {
		return nil, types.NewError(types.GRAPH_UNAVAILABLE, "driver not connected")
	}

	where, params := matchClause(match)
	if match.IsEmpty() {
		where = "true"
	}

	cypher := fmt.Sprintf(`
		MATCH (seed) WHERE %s
		OPTIONAL MATCH path = (seed)-[*0..%d]-(n)
		WITH collect(DISTINCT seed) + collect(DISTINCT n) AS nodes
		UNWIND nodes AS node
		WITH collect(DISTINCT node) AS nodes
		OPTIONAL MATCH (a)-[r]->(b) WHERE a IN nodes AND b IN nodes
		RETURN nodes, collect(DISTINCT {rel: properties(r), type: type(r),
			from: a.key, to: b.key}) AS edges
	`, where, depth)

	result, err := s.RunQuery(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	snapshot := &GraphSnapshot{
		Query:      fmt.Sprintf("subgraph(%s, depth=%d)", describeMatch(match), depth),
		Depth:      depth,
		CapturedAt: time.Now(),
	}

	if len(result.Records) == 0 {
		return snapshot, nil
	}

	record := result.Records[0]
	if rawNodes, ok := record["nodes"].([]any); ok {
		for _, raw := range rawNodes {
			if node := convertNeo4jNode(raw); node != nil {
				snapshot.Nodes = append(snapshot.Nodes, *node)
			}
		}
	}
	if rawEdges, ok := record["edges"].([]any); ok {
		for _, raw := range rawEdges {
			if edge := convertNeo4jEdge(raw); edge != nil {
				snapshot.Edges = append(snapshot.Edges, *edge)
			}
		}
	}

	return snapshot, nil
}

// writeSingle runs a write transaction expecting exactly one record.
func (s *Neo4jStore) writeSingle(ctx context.Context, cypher string, params map[string]any) (map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.config.Database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		record, err := neoResult.Single(ctx)
		if err != nil {
			return nil, err
		}

		return record.AsMap(), nil
	})
	if err != nil {
		return nil, err
	}

	return result.(map[string]any), nil
}

// matchClause builds a WHERE fragment and parameters for a node match.
func matchClause(match Match) (string, map[string]any) {
	params := map[string]any{}
	where := ""

	if match.Key != "" {
		where = "n.key = $key"
		params["key"] = match.Key
		return where, params
	}

	if match.Label != "" && identifierPattern.MatchString(match.Label) {
		where = fmt.Sprintf("'%s' IN labels(n)", match.Label)
	}
	i := 0
	for k, v := range match.Props {
		if !identifierPattern.MatchString(k) {
			continue
		}
		param := fmt.Sprintf("p%d", i)
		clause := fmt.Sprintf("n.%s = $%s", k, param)
		if where == "" {
			where = clause
		} else {
			where += " AND " + clause
		}
		params[param] = v
		i++
	}

	if where == "" {
		where = "false"
	}
	return where, params
}

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("invalid graph identifier %q", name))
	}
	return nil
}

// translateNeo4jError maps backend errors onto the coded taxonomy so that
// raw driver text never reaches failure history.
func translateNeo4jError(op string, err error) error {
	if neo4jErr, ok := err.(*neo4j.Neo4jError); ok {
		if neo4jErr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed" {
			return types.WrapError(types.CONSTRAINT_VIOLATION,
				fmt.Sprintf("%s conflicts with an existing graph constraint", op), err)
		}
	}
	if neo4j.IsConnectivityError(err) {
		return types.WrapRetryableError(types.GRAPH_UNAVAILABLE,
			fmt.Sprintf("%s failed transiently", op), err)
	}
	return types.WrapError(types.QUERY_FAILED, fmt.Sprintf("%s failed", op), err)
}

func convertNeo4jResult(records []*neo4j.Record, summary neo4j.ResultSummary) QueryResult {
	qr := QueryResult{}

	if len(records) > 0 {
		qr.Columns = records[0].Keys
	}
	for _, record := range records {
		qr.Records = append(qr.Records, record.AsMap())
	}

	if counters := summary.Counters(); counters != nil {
		qr.Summary.NodesCreated = counters.NodesCreated()
		qr.Summary.NodesDeleted = counters.NodesDeleted()
		qr.Summary.RelationshipsCreated = counters.RelationshipsCreated()
		qr.Summary.RelationshipsDeleted = counters.RelationshipsDeleted()
		qr.Summary.PropertiesSet = counters.PropertiesSet()
	}

	return qr
}

func convertNeo4jNode(raw any) *Node {
	neoNode, ok := raw.(neo4j.Node)
	if !ok {
		return nil
	}

	node := &Node{Props: filterSystemProps(neoNode.Props)}
	if len(neoNode.Labels) > 0 {
		node.Label = neoNode.Labels[0]
	}
	if key, ok := neoNode.Props["key"].(string); ok {
		node.Key = key
	}
	if id, ok := neoNode.Props["id"].(string); ok {
		node.ID = types.ID(id)
	}
	return node
}

func convertNeo4jEdge(raw any) *Edge {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	edge := &Edge{}
	if t, ok := m["type"].(string); ok && t != "" {
		edge.Type = t
	} else {
		return nil
	}
	if from, ok := m["from"].(string); ok {
		edge.FromKey = from
	}
	if to, ok := m["to"].(string); ok {
		edge.ToKey = to
	}
	if props, ok := m["rel"].(map[string]any); ok {
		if key, ok := props["key"].(string); ok {
			edge.Key = key
		}
		if id, ok := props["id"].(string); ok {
			edge.ID = types.ID(id)
		}
		edge.Props = filterSystemProps(props)
	}
	return edge
}

// filterSystemProps strips the bookkeeping properties the store manages
// itself so they do not leak into the application-level property bag.
func filterSystemProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	filtered := make(map[string]any, len(props))
	for k, v := range props {
		switch k {
		case "id", "key", "created_at", "updated_at":
			continue
		}
		filtered[k] = v
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

func recordToNode(record map[string]any, label string) *Node {
	node := &Node{Label: label}
	if id, ok := record["id"].(string); ok {
		node.ID = types.ID(id)
	}
	if key, ok := record["key"].(string); ok {
		node.Key = key
	}
	if props, ok := record["props"].(map[string]any); ok {
		node.Props = filterSystemProps(props)
	}
	return node
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func nonNilProps(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	return props
}
