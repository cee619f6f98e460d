// Command gql2sql-compile prints the SQL a GraphQL request compiles to,
// without a database: the catalog comes from a YAML file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"gql2sql/internal/config"
	"gql2sql/internal/gqlrequest"
	"gql2sql/internal/logging"
	"gql2sql/internal/naming"
	"gql2sql/internal/response"
	"gql2sql/internal/serverapp"
	"gql2sql/internal/transpiler"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "gql2sql-compile:", err)
		os.Exit(1)
	}
}

type options struct {
	schema        config.SchemaConfig
	query         string
	variables     string
	operationName string
	format        string
	logLevel      string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("gql2sql-compile", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.schema.SDLFile, "schema", "", "GraphQL SDL file (required)")
	fs.StringVar(&opts.schema.CatalogFile, "catalog", "", "Catalog YAML file (required)")
	fs.StringVar(&opts.schema.RelationshipsFile, "relationships", "", "Relationship registry YAML file")
	fs.BoolVar(&opts.schema.DeriveRelationships, "derive", true, "Derive relationships from catalog foreign keys")
	fs.StringToStringVar(&opts.schema.TypeTables, "type-table", nil, "GraphQL type to table mapping, e.g. Book=books")
	fs.StringVarP(&opts.query, "query", "q", "-", "File holding the GraphQL document, - for stdin")
	fs.StringVar(&opts.variables, "variables", "", "Variables as a JSON object, or @file")
	fs.StringVar(&opts.operationName, "operation", "", "Operation to compile when the document has several")
	fs.StringVar(&opts.format, "format", "text", "Output format (text, json)")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.schema.SDLFile == "":
		return opts, errors.New("--schema is required")
	case opts.schema.CatalogFile == "":
		return opts, errors.New("--catalog is required")
	case opts.format != "text" && opts.format != "json":
		return opts, fmt.Errorf("unknown --format %q", opts.format)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(logging.Config{Level: opts.logLevel, Format: "text", Output: stderr})
	ctx = logging.WithLogger(ctx, logger)

	env, err := readEnvelope(opts, stdin)
	if err != nil {
		return err
	}

	sources, err := serverapp.LoadSources(ctx, opts.schema, naming.DefaultConfig(), logger, nil, "")
	if err != nil {
		return err
	}
	engine := transpiler.New(transpiler.Config{
		Schema:        sources.Schema,
		Catalog:       sources.Catalog,
		Relationships: sources.Relationships,
	})

	plan, err := engine.Prepare(ctx, gqlrequest.AnalyzeEnvelope(env))
	if err != nil {
		return describe(err)
	}
	if plan.Introspection() {
		_, err := fmt.Fprintln(stdout, "-- introspection only, no SQL")
		return err
	}
	return writePlan(stdout, opts.format, plan)
}

func readEnvelope(opts options, stdin io.Reader) (gqlrequest.Envelope, error) {
	query, err := readSource(opts.query, stdin)
	if err != nil {
		return gqlrequest.Envelope{}, fmt.Errorf("failed to read query: %w", err)
	}
	env := gqlrequest.Envelope{
		Method:            "POST",
		ContentType:       "application/json",
		Query:             query,
		OperationName:     opts.operationName,
		DocumentSizeBytes: len(query),
	}
	if opts.variables != "" {
		raw := opts.variables
		if path, ok := strings.CutPrefix(raw, "@"); ok {
			if raw, err = readSource(path, stdin); err != nil {
				return env, fmt.Errorf("failed to read variables: %w", err)
			}
		}
		env.VariablesRaw = json.RawMessage(raw)
	}
	return env, nil
}

func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	return string(data), err
}

// describe flattens request errors into one line. Internal failures keep
// their full message, which the HTTP handler would hide.
func describe(err error) error {
	if transpiler.Code(err) == response.CodeInternalServerFailure {
		return err
	}
	entries := transpiler.ErrorEntries(err)
	msgs := make([]string, len(entries))
	for i, e := range entries {
		msgs[i] = e.Message
	}
	return fmt.Errorf("%s: %s", transpiler.Code(err), strings.Join(msgs, "; "))
}

type compiledRoot struct {
	Root      string `json:"root"`
	SQLAlias  string `json:"sqlAlias"`
	Singleton bool   `json:"singleton"`
	SQL       string `json:"sql"`
	Args      []any  `json:"args"`
}

func writePlan(w io.Writer, format string, plan *transpiler.Plan) error {
	roots := make([]compiledRoot, len(plan.Statements))
	for i, stmt := range plan.Statements {
		args := stmt.Args
		if args == nil {
			args = []any{}
		}
		roots[i] = compiledRoot{
			Root:      stmt.ResponseAlias,
			SQLAlias:  stmt.SQLAlias,
			Singleton: stmt.Singleton,
			SQL:       stmt.SQL,
			Args:      args,
		}
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(roots)
	}
	for i, root := range roots {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		args, err := json.Marshal(root.Args)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "-- %s\n%s;\n-- args: %s\n", root.Root, root.SQL, args); err != nil {
			return err
		}
	}
	return nil
}
