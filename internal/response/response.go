// Package response assembles GraphQL response bodies from the JSON values
// the database returns for each root field.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Result is the raw JSON value of one root field. A nil Raw encodes as null.
type Result struct {
	Alias string
	Raw   json.RawMessage
}

// Envelope merges results into {"data": {...}}, keeping their order.
func Envelope(results []Result) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"data":{`)
	for i, r := range results {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Alias)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response key %q: %w", r.Alias, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		if r.Raw == nil {
			buf.WriteString("null")
			continue
		}
		if !json.Valid(r.Raw) {
			return nil, fmt.Errorf("root field %s returned invalid JSON", r.Alias)
		}
		buf.Write(r.Raw)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// Code classifies a failed request in extensions.code.
type Code string

const (
	CodeSchemaResolution      Code = "SCHEMA_RESOLUTION"
	CodeRelationshipNotFound  Code = "RELATIONSHIP_NOT_FOUND"
	CodeCardinalityViolation  Code = "CARDINALITY_VIOLATION"
	CodeBackingStore          Code = "BACKING_STORE"
	CodeParseFailed           Code = "GRAPHQL_PARSE_FAILED"
	CodeValidationFailed      Code = "GRAPHQL_VALIDATION_FAILED"
	CodeBadRequest            Code = "BAD_REQUEST"
	CodeInternalServerFailure Code = "INTERNAL_SERVER_ERROR"
)

// Location points into the request document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is one entry of the errors list.
type Error struct {
	Message    string     `json:"message"`
	Locations  []Location `json:"locations,omitempty"`
	Extensions Extensions `json:"extensions"`
}

// Extensions carries the error code.
type Extensions struct {
	Code Code `json:"code"`
}

// NewError builds an Error with code.
func NewError(code Code, message string) Error {
	return Error{Message: message, Extensions: Extensions{Code: code}}
}

// Errors encodes {"errors": [...]}. A failed request never carries data.
func Errors(errs ...Error) []byte {
	body, err := json.Marshal(struct {
		Errors []Error `json:"errors"`
	}{Errors: errs})
	if err != nil {
		return []byte(`{"errors":[{"message":"failed to encode errors","extensions":{"code":"INTERNAL_SERVER_ERROR"}}]}`)
	}
	return body
}
