// Package tools defines the fixed set of database exploration tools the
// model may invoke, and dispatches invocations to the duckdb runner.
//
// The set is closed on purpose: adding or removing a tool is a
// compile-time change to this package, not a runtime registration.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arosstale/single-file-agents/internal/llm"
	"github.com/arosstale/single-file-agents/internal/logging"
)

// Tool names, as declared to the model.
const (
	ListTables    = "list_tables"
	DescribeTable = "describe_table"
	SampleTable   = "sample_table"
	RunTestQuery  = "run_test_sql_query"
	RunFinalQuery = "run_final_sql_query"
)

// IsTerminal reports whether a successful execution of the named tool ends
// the run.
func IsTerminal(name string) bool {
	return name == RunFinalQuery
}

// Invocation is a model-issued request to execute one tool.
type Invocation struct {
	Name string
	Args map[string]interface{}
}

// Definitions returns the model-facing declarations for all five tools, in
// a fixed order.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ListTables,
			Description: "Returns the list of tables available in the database.",
			Parameters: objectSchema(map[string]interface{}{
				"reasoning": stringParam("Why we need to list tables relative to the user request"),
			}, "reasoning"),
		},
		{
			Name:        DescribeTable,
			Description: "Returns column and type schema information for the named table.",
			Parameters: objectSchema(map[string]interface{}{
				"reasoning":  stringParam("Why we need to describe this table"),
				"table_name": stringParam("Name of the table to describe"),
			}, "reasoning", "table_name"),
		},
		{
			Name:        SampleTable,
			Description: "Returns sample rows from the named table. Aim for 3-5 rows.",
			Parameters: objectSchema(map[string]interface{}{
				"reasoning":  stringParam("Why we need to sample this table"),
				"table_name": stringParam("Name of the table to sample"),
				"row_count":  intParam("Number of rows to sample"),
			}, "reasoning", "table_name", "row_count"),
		},
		{
			Name:        RunTestQuery,
			Description: "Tests a SQL query and returns its results. Only visible to the agent, never to the user.",
			Parameters: objectSchema(map[string]interface{}{
				"reasoning": stringParam("Why we are testing this specific query"),
				"sql_query": stringParam("The SQL query to test"),
			}, "reasoning", "sql_query"),
		},
		{
			Name:        RunFinalQuery,
			Description: "Runs the final validated SQL query and returns its results to the user. Call only when confident the query is correct.",
			Parameters: objectSchema(map[string]interface{}{
				"reasoning": stringParam("Final explanation of how the query satisfies the user request"),
				"sql_query": stringParam("The validated SQL query to run"),
			}, "reasoning", "sql_query"),
		},
	}
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringParam(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intParam(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// Executor runs one SQL statement against a database file. *duckdb.Runner
// satisfies it.
type Executor interface {
	Run(ctx context.Context, dbPath, statement string) (string, error)
}

// Registry dispatches invocations against one database file. The path is
// fixed for the Registry's lifetime; no tool call can change it.
type Registry struct {
	runner Executor
	dbPath string
	logger *logging.Logger
}

// NewRegistry creates a registry bound to a runner and database path.
func NewRegistry(runner Executor, dbPath string, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.New()
	}
	return &Registry{
		runner: runner,
		dbPath: dbPath,
		logger: logger.WithComponent("tools"),
	}
}

// DatabasePath returns the path the registry is bound to.
func (r *Registry) DatabasePath() string { return r.dbPath }

// Dispatch validates the invocation and executes it. Validation failures
// and executor failures are both returned as errors for the caller to fold
// back into the conversation; Dispatch never panics on bad arguments.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (string, error) {
	start := time.Now()
	r.logger.ToolCall(inv.Name)

	result, err := r.dispatch(ctx, inv)
	r.logger.ToolResult(inv.Name, time.Since(start), err)
	return result, err
}

func (r *Registry) dispatch(ctx context.Context, inv Invocation) (string, error) {
	switch inv.Name {
	case ListTables:
		if err := r.requireArgs(inv, "reasoning"); err != nil {
			return "", err
		}
		out, err := r.runner.Run(ctx, r.dbPath, "SELECT name FROM sqlite_master WHERE type='table';")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil

	case DescribeTable:
		if err := r.requireArgs(inv, "reasoning", "table_name"); err != nil {
			return "", err
		}
		table, _ := inv.Args["table_name"].(string)
		return r.runner.Run(ctx, r.dbPath, fmt.Sprintf("DESCRIBE %s;", table))

	case SampleTable:
		if err := r.requireArgs(inv, "reasoning", "table_name", "row_count"); err != nil {
			return "", err
		}
		table, _ := inv.Args["table_name"].(string)
		rows, ok := intArg(inv.Args["row_count"])
		if !ok {
			return "", &InvalidArgumentError{Tool: inv.Name, Argument: "row_count", Value: inv.Args["row_count"]}
		}
		return r.runner.Run(ctx, r.dbPath, fmt.Sprintf("SELECT * FROM %s LIMIT %d;", table, rows))

	case RunTestQuery, RunFinalQuery:
		if err := r.requireArgs(inv, "reasoning", "sql_query"); err != nil {
			return "", err
		}
		query, _ := inv.Args["sql_query"].(string)
		return r.runner.Run(ctx, r.dbPath, query)

	default:
		return "", &UnknownToolError{Name: inv.Name}
	}
}

// requireArgs checks that every named argument is present and non-empty.
func (r *Registry) requireArgs(inv Invocation, names ...string) error {
	for _, name := range names {
		val, ok := inv.Args[name]
		if !ok || val == nil {
			return &MissingArgumentError{Tool: inv.Name, Argument: name}
		}
		if s, isStr := val.(string); isStr && strings.TrimSpace(s) == "" {
			return &MissingArgumentError{Tool: inv.Name, Argument: name}
		}
	}
	return nil
}

// intArg coerces a JSON-decoded argument to an int. Numbers arrive as
// float64 from most decoders.
func intArg(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
