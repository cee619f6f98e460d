// Package transpiler turns GraphQL requests into SQL and answers them: it
// parses and validates the document, builds the query tree, compiles one
// statement per root field, runs the statements and assembles the response.
package transpiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gql2sql/internal/dbexec"
	"gql2sql/internal/gqlrequest"
	"gql2sql/internal/logging"
	"gql2sql/internal/observability"
	"gql2sql/internal/planner"
	"gql2sql/internal/querytree"
	"gql2sql/internal/response"
	"gql2sql/internal/schema"
)

const tracerName = "gql2sql/transpiler"

// Config wires an Engine to its collaborators.
type Config struct {
	Schema        *schema.Schema
	Catalog       planner.Catalog
	Relationships planner.Resolver
	// Executor may be nil for an engine that only compiles.
	Executor dbexec.QueryExecutor
	// MaxConcurrentStatements bounds the root statements of one request
	// running at once. Zero or less means no bound.
	MaxConcurrentStatements int
}

// Engine compiles and executes requests. It is safe for concurrent use and
// keeps no state between requests.
type Engine struct {
	schema        *schema.Schema
	builder       *querytree.Builder
	compiler      *planner.Compiler
	exec          dbexec.QueryExecutor
	maxConcurrent int
}

// New returns an Engine for cfg.
func New(cfg Config) *Engine {
	return &Engine{
		schema:        cfg.Schema,
		builder:       querytree.NewBuilder(cfg.Schema),
		compiler:      planner.New(cfg.Catalog, cfg.Relationships),
		exec:          cfg.Executor,
		maxConcurrent: cfg.MaxConcurrentStatements,
	}
}

// Plan is a compiled request.
type Plan struct {
	// Statements holds one statement per root field, in selection order.
	Statements []planner.Statement

	analysis      *gqlrequest.Analysis
	introspection bool
}

// Introspection reports whether the plan answers only __schema, __type or
// __typename and therefore runs without SQL.
func (p *Plan) Introspection() bool {
	return p.introspection
}

// Prepare validates the analyzed request and compiles it.
func (e *Engine) Prepare(ctx context.Context, a *gqlrequest.Analysis) (*Plan, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graphql.compile")
	defer span.End()

	start := time.Now()
	plan, err := e.prepare(a)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("graphql.compile.statements", len(plan.Statements)),
		attribute.Bool("graphql.compile.introspection", plan.introspection),
	)
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordCompile(ctx, time.Since(start), len(plan.Statements))
		metrics.RecordQueryDepth(ctx, int64(a.SelectionDepth), a.OperationType)
	}

	logger := logging.FromContext(ctx)
	for _, stmt := range plan.Statements {
		logger.Debug("compiled root field",
			slog.String("root", stmt.ResponseAlias),
			slog.String("sql_alias", stmt.SQLAlias),
			slog.Int("args", len(stmt.Args)),
			slog.String("sql", stmt.SQL),
		)
	}
	return plan, nil
}

func (e *Engine) prepare(a *gqlrequest.Analysis) (*Plan, error) {
	switch {
	case a.DecodeError != nil:
		reqErr := badRequest(a.DecodeError.Error())
		reqErr.Status = http.StatusBadRequest
		if errors.Is(a.DecodeError, gqlrequest.ErrMethodNotAllowed) {
			reqErr.Status = http.StatusMethodNotAllowed
		}
		return nil, reqErr
	case a.Empty():
		reqErr := badRequest("must provide query string")
		reqErr.Status = http.StatusBadRequest
		return nil, reqErr
	case a.ParseError != nil:
		return nil, graphQLErrors(response.CodeParseFailed, []gqlerrors.FormattedError{gqlerrors.FormatError(a.ParseError)})
	}

	if a.SelectionError != nil {
		return nil, badRequest(a.SelectionError.Error())
	}
	op := a.Operation
	if op.Operation != ast.OperationTypeQuery {
		return nil, badRequest(fmt.Sprintf("%s operations are not supported", op.Operation))
	}
	if errs := e.schema.Validate(a.Document); len(errs) > 0 {
		return nil, graphQLErrors(response.CodeValidationFailed, errs)
	}
	if a.VariablesError != nil {
		return nil, badRequest(a.VariablesError.Error())
	}
	if err := checkRequiredVariables(op, a.Variables); err != nil {
		return nil, err
	}

	meta, data := rootFieldKinds(op.SelectionSet, a.Fragments, map[string]bool{})
	if meta && data {
		return nil, badRequest("introspection fields cannot be selected together with table fields")
	}
	if meta {
		return &Plan{analysis: a, introspection: true}, nil
	}

	vars, err := querytree.Variables(op, a.Variables)
	if err != nil {
		return nil, err
	}
	roots, err := e.builder.Build(e.schema.QueryTypeName(), op.SelectionSet, querytree.Options{
		Variables: vars,
		Fragments: a.Fragments,
	})
	if err != nil {
		return nil, err
	}

	plan := &Plan{analysis: a, Statements: make([]planner.Statement, 0, len(roots))}
	for _, root := range roots {
		stmt, err := e.compiler.CompileRoot(root)
		if err != nil {
			return nil, err
		}
		plan.Statements = append(plan.Statements, stmt)
	}
	return plan, nil
}

// Execute runs plan and returns the response body. Any failing statement
// fails the whole request.
func (e *Engine) Execute(ctx context.Context, plan *Plan) ([]byte, error) {
	if plan.introspection {
		return e.introspect(ctx, plan.analysis)
	}
	if e.exec == nil {
		return nil, fmt.Errorf("engine has no executor")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "graphql.execute")
	defer span.End()
	span.SetAttributes(attribute.Int("graphql.execute.statements", len(plan.Statements)))

	metrics := observability.GraphQLMetricsFromContext(ctx)
	logger := logging.FromContext(ctx)
	cells, err := dbexec.FetchAll(ctx, e.exec, plan.Statements, dbexec.FetchOptions{
		MaxConcurrent: e.maxConcurrent,
		Observe: func(ctx context.Context, stmt planner.Statement, elapsed time.Duration, err error) {
			if metrics != nil {
				metrics.RecordStatement(ctx, elapsed, statementShape(stmt), err != nil)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("root field statement failed",
					slog.String("root", stmt.ResponseAlias),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
			}
		},
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	results := make([]response.Result, len(plan.Statements))
	for i, stmt := range plan.Statements {
		results[i] = response.Result{Alias: stmt.ResponseAlias, Raw: cells[i]}
	}
	body, err := response.Envelope(results)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return body, nil
}

// introspect answers an introspection-only operation with graphql-go.
func (e *Engine) introspect(ctx context.Context, a *gqlrequest.Analysis) ([]byte, error) {
	var vars map[string]interface{}
	if len(a.Envelope.VariablesRaw) > 0 {
		if err := json.Unmarshal(a.Envelope.VariablesRaw, &vars); err != nil {
			return nil, badRequest(fmt.Sprintf("invalid variables: %v", err))
		}
	}
	result := graphql.Do(graphql.Params{
		Schema:         *e.schema.GraphQL(),
		RequestString:  a.Envelope.Query,
		VariableValues: vars,
		OperationName:  a.Envelope.OperationName,
		Context:        ctx,
	})
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode introspection result: %w", err)
	}
	return body, nil
}

// Serve prepares and executes a request in one step.
func (e *Engine) Serve(ctx context.Context, a *gqlrequest.Analysis) ([]byte, error) {
	plan, err := e.Prepare(ctx, a)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

func statementShape(stmt planner.Statement) string {
	if stmt.Singleton {
		return "singleton"
	}
	return "aggregate"
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("graphql.error.code", string(Code(err))))
}
