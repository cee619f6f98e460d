package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ErrMethodNotAllowed is returned for requests other than GET and POST.
var ErrMethodNotAllowed = errors.New("GraphQL requests must use GET or POST")

// Envelope is the transport-independent form of a GraphQL request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	// VariablesRaw is the undecoded variables object, nil when absent or null.
	VariablesRaw json.RawMessage

	DocumentSizeBytes int
}

type jsonPayload struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

// DecodeEnvelope reads the query, operation name and variables from r. POST
// bodies may be JSON or application/graphql; GET reads the URL parameters.
// The body is rewound so a downstream handler can read it again.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}
	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		env.Query = params.Get("query")
		env.OperationName = params.Get("operationName")
		env.VariablesRaw = nonNull(json.RawMessage(params.Get("variables")))
	case http.MethodPost:
		if err := decodeBody(r, &env); err != nil {
			return env, err
		}
	default:
		return env, ErrMethodNotAllowed
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}

func decodeBody(r *http.Request, env *Envelope) error {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	mediaType, _, err := mime.ParseMediaType(env.ContentType)
	if err != nil || mediaType == "" {
		mediaType = strings.TrimSpace(env.ContentType)
	}
	if mediaType == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var payload jsonPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return fmt.Errorf("invalid JSON request body: %w", err)
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	env.VariablesRaw = nonNull(payload.Variables)
	return nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return append(json.RawMessage(nil), trimmed...)
}
