package gqlrequest

import (
	"encoding/json"
	"fmt"

	"gql2sql/internal/literal"
)

// DecodeVariables turns a variables object into literal values keyed by
// name. Nested objects keep their key order. A nil raw yields an empty map.
func DecodeVariables(raw json.RawMessage) (map[string]any, error) {
	vars := map[string]any{}
	if len(raw) == 0 {
		return vars, nil
	}
	decoded, err := literal.DecodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid variables: %w", err)
	}
	switch v := decoded.(type) {
	case nil:
		return vars, nil
	case literal.Object:
		for _, f := range v {
			vars[f.Name] = f.Value
		}
		return vars, nil
	default:
		return nil, fmt.Errorf("variables must be a JSON object, got %s", literal.Describe(decoded))
	}
}
