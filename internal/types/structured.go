package types

// JSONSchema represents a JSON Schema used to constrain structured output
// from the completion service. Only the subset of JSON Schema the planner
// and parser actually emit is modeled here.
type JSONSchema struct {
	// Type specifies the JSON type (object, array, string, number, boolean, null)
	Type string `json:"type,omitempty"`

	// Properties defines object properties (for type: object)
	Properties map[string]*JSONSchema `json:"properties,omitempty"`

	// Required lists required property names (for type: object)
	Required []string `json:"required,omitempty"`

	// Items defines array item schema (for type: array)
	Items *JSONSchema `json:"items,omitempty"`

	// Description provides human-readable schema documentation
	Description string `json:"description,omitempty"`

	// Enum constrains values to a specific set
	Enum []any `json:"enum,omitempty"`

	// AdditionalProperties controls whether additional properties are allowed
	AdditionalProperties *bool `json:"additionalProperties,omitempty"`
}

// ObjectSchema is a convenience constructor for an object schema with the
// given properties and required keys.
func ObjectSchema(props map[string]*JSONSchema, required ...string) *JSONSchema {
	return &JSONSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// StringSchema is a convenience constructor for a string schema, optionally
// constrained to an enum of values.
func StringSchema(description string, enum ...string) *JSONSchema {
	s := &JSONSchema{Type: "string", Description: description}
	for _, v := range enum {
		s.Enum = append(s.Enum, v)
	}
	return s
}

// ArraySchema is a convenience constructor for an array schema.
func ArraySchema(items *JSONSchema, description string) *JSONSchema {
	return &JSONSchema{Type: "array", Items: items, Description: description}
}

// BoolSchema is a convenience constructor for a boolean schema.
func BoolSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "boolean", Description: description}
}
