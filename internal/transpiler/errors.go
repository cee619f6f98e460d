package transpiler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/gqlerrors"

	"gql2sql/internal/dbexec"
	"gql2sql/internal/relationship"
	"gql2sql/internal/response"
	"gql2sql/internal/schema"
)

// RequestError rejects a request before compilation: it could not be
// decoded, parsed or validated, or it selects no runnable query operation.
type RequestError struct {
	Code    response.Code
	Entries []response.Error
	// Status is the HTTP status to answer with; zero means 200.
	Status int
}

func (e *RequestError) Error() string {
	messages := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		messages[i] = entry.Message
	}
	return strings.Join(messages, "; ")
}

func badRequest(message string) *RequestError {
	return &RequestError{
		Code:    response.CodeBadRequest,
		Entries: []response.Error{response.NewError(response.CodeBadRequest, message)},
	}
}

// graphQLErrors converts parser or validator errors, keeping their locations.
func graphQLErrors(code response.Code, errs []gqlerrors.FormattedError) *RequestError {
	entries := make([]response.Error, len(errs))
	for i, fe := range errs {
		entry := response.NewError(code, fe.Message)
		for _, loc := range fe.Locations {
			entry.Locations = append(entry.Locations, response.Location{Line: loc.Line, Column: loc.Column})
		}
		entries[i] = entry
	}
	return &RequestError{Code: code, Entries: entries}
}

// Code classifies err into the extensions code reported to clients.
func Code(err error) response.Code {
	var (
		reqErr      *RequestError
		resolution  *schema.ResolutionError
		notFound    *relationship.NotFoundError
		cardinality *dbexec.CardinalityError
		store       *dbexec.StoreError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Code
	case errors.As(err, &resolution):
		return response.CodeSchemaResolution
	case errors.As(err, &notFound):
		return response.CodeRelationshipNotFound
	case errors.As(err, &cardinality):
		return response.CodeCardinalityViolation
	case errors.As(err, &store):
		return response.CodeBackingStore
	default:
		return response.CodeInternalServerFailure
	}
}

// ErrorEntries renders err as the entries of an errors envelope.
func ErrorEntries(err error) []response.Error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Entries
	}
	code := Code(err)
	message := err.Error()
	if code == response.CodeInternalServerFailure {
		message = "internal server error"
	}
	return []response.Error{response.NewError(code, message)}
}

// HTTPStatus is the status a handler answers err with.
func HTTPStatus(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Status != 0 {
		return reqErr.Status
	}
	if Code(err) == response.CodeInternalServerFailure {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
