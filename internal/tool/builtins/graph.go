// Package builtins provides the graph mutation and query tools the planner
// invokes. Every mutation goes through the store's natural-key upsert path,
// so re-running a step after a crash or retry cannot duplicate data.
package builtins

import (
	"context"

	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/types"
)

// graphTool adapts one store operation into the tool contract.
type graphTool struct {
	store       graph.Store
	name        string
	description string
	schema      *types.JSONSchema
	run         func(ctx context.Context, store graph.Store, args map[string]any) (map[string]any, error)
}

func (t *graphTool) Name() string                   { return t.name }
func (t *graphTool) Description() string            { return t.description }
func (t *graphTool) InputSchema() *types.JSONSchema { return t.schema }

func (t *graphTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	return t.run(ctx, t.store, args)
}

func (t *graphTool) Health(ctx context.Context) types.HealthStatus {
	return t.store.Health(ctx)
}

// RegisterGraphTools registers every graph tool against the registry.
func RegisterGraphTools(registry *tool.Registry, store graph.Store) error {
	for _, t := range GraphTools(store) {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// GraphTools returns the full builtin tool set over the given store.
func GraphTools(store graph.Store) []tool.Tool {
	return []tool.Tool{
		upsertNodeTool(store),
		upsertEdgeTool(store),
		updatePropsTool(store),
		deleteNodeTool(store),
		deleteEdgeTool(store),
		runQueryTool(store),
	}
}

func upsertNodeTool(store graph.Store) tool.Tool {
	return &graphTool{
		store:       store,
		name:        "upsert_node",
		description: "Create a node or update it in place, addressed by its natural key. Safe to repeat.",
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key":   types.StringSchema("natural key of the node"),
			"label": types.StringSchema("node label, e.g. Person or Task"),
			"props": {Type: "object", Description: "properties to set"},
		}, "key", "label"),
		run: func(ctx context.Context, store graph.Store, args map[string]any) (map[string]any, error) {
			spec := graph.NodeSpec{
				Key:   stringArg(args, "key"),
				Label: stringArg(args, "label"),
				Props: objectArg(args, "props"),
			}
			node, err := store.UpsertNode(ctx, spec)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"id":    node.ID.String(),
				"key":   node.Key,
				"label": node.Label,
			}, nil
		},
	}
}

func upsertEdgeTool(store graph.Store) tool.Tool {
	return &graphTool{
		store:       store,
		name:        "upsert_edge",
		description: "Create a relationship between two existing nodes or update it in place. Safe to repeat.",
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key":      types.StringSchema("natural key of the edge"),
			"type":     types.StringSchema("relationship type, e.g. WORKS_ON"),
			"from_key": types.StringSchema("natural key of the source node"),
			"to_key":   types.StringSchema("natural key of the target node"),
			"props":    {Type: "object", Description: "properties to set"},
		}, "key", "type", "from_key", "to_key"),
		run: func(ctx context.Context, store graph.Store, args map[string]any) (map[string]any, error) {
			spec := graph.EdgeSpec{
				Key:     stringArg(args, "key"),
				Type:    stringArg(args, "type"),
				FromKey: stringArg(args, "from_key"),
				ToKey:   stringArg(args, "to_key"),
				Props:   objectArg(args, "props"),
			}
			edge, err := store.UpsertEdge(ctx, spec)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"id":   edge.ID.String(),
				"key":  edge.Key,
				"type": edge.Type,
			}, nil
		},
	}
}

func updatePropsTool(store graph.Store) tool.Tool {
	return &graphTool{
		store:       store,
		name:        "update_props",
		description: "Update properties on nodes selected by key, label, or property equality.",
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key":   types.StringSchema("natural key of the node to update"),
			"label": types.StringSchema("label to match when no key is given"),
			"match": {Type: "object", Description: "property equality filters"},
			"props": {Type: "object", Description: "properties to set"},
		}, "props"),
		run: func(ctx context.Context, store graph.Store, args map[string]any) (map[string]any, error) {
			match := graph.Match{
				Key:   stringArg(args, "key"),
				Label: stringArg(args, "label"),
				Props: objectArg(args, "match"),
			}
			count, err := store.UpdateProps(ctx, match, objectArg(args, "props"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"updated": count}, nil
		},
	}
}

func deleteNodeTool(store graph.Store) tool.Tool {
	return &graphTool{
		store:       store,
		name:        "delete_node",
		description: "Delete a node by natural key, detaching its relationships.",
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key": types.StringSchema("natural key of the node to delete"),
		}, "key"),
		run: func(ctx context.Context, store graph.Store, args map[string]any) (map[string]any, error) {
			key := stringArg(args, "key")
			if err := store.DeleteNode(ctx, graph.Match{Key: key}); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": key}, nil
		},
	}
}

func deleteEdgeTool(store graph.Store) tool.Tool {
	return &graphTool{
		store:       store,
		name:        "delete_edge",
		description: "Delete a relationship by natural key.",
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key": types.StringSchema("natural key of the edge to delete"),
		}, "key"),
		run: func(ctx context.Context, store graph.Store, args map[string]any) (map[string]any, error) {
			key := stringArg(args, "key")
			if err := store.DeleteEdge(ctx, graph.Match{Key: key}); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": key}, nil
		},
	}
}

func runQueryTool(store graph.Store) tool.Tool {
	return &graphTool{
		store:       store,
		name:        "run_query",
		description: "Run a read-only query against the graph and return its rows.",
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"query":  types.StringSchema("query text"),
			"params": {Type: "object", Description: "query parameters"},
		}, "query"),
		run: func(ctx context.Context, store graph.Store, args map[string]any) (map[string]any, error) {
			result, err := store.RunQuery(ctx, stringArg(args, "query"), objectArg(args, "params"))
			if err != nil {
				return nil, err
			}
			rows := make([]any, 0, len(result.Records))
			for _, record := range result.Records {
				rows = append(rows, record)
			}
			return map[string]any{
				"rows":    rows,
				"columns": result.Columns,
				"count":   len(result.Records),
			}, nil
		},
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func objectArg(args map[string]any, key string) map[string]any {
	if v, ok := args[key].(map[string]any); ok {
		return v
	}
	return nil
}
