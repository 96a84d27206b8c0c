// Package graph defines the property-graph store contract consumed by the
// rest of the system, together with two implementations: a Neo4j-backed
// store for production and an in-memory store for tests and dry runs.
//
// All mutation entry points are idempotent under the natural key: upserting
// an identical spec twice yields the same system-generated identity and no
// duplicate data. This property is what allows the orchestrator to retry or
// resume tool executions without double-applying them.
package graph
