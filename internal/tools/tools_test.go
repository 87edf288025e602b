package tools

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/arosstale/single-file-agents/internal/logging"
)

type scriptedExecutor struct {
	lastDB    string
	lastStmt  string
	output    string
	err       error
	callCount int
}

func (s *scriptedExecutor) Run(_ context.Context, dbPath, statement string) (string, error) {
	s.callCount++
	s.lastDB = dbPath
	s.lastStmt = statement
	return s.output, s.err
}

func testRegistry(exec *scriptedExecutor) *Registry {
	logger := logging.New()
	logger.SetOutput(io.Discard)
	return NewRegistry(exec, "warehouse.db", logger)
}

func TestListTables(t *testing.T) {
	exec := &scriptedExecutor{output: "users\norders\n"}
	r := testRegistry(exec)

	out, err := r.Dispatch(context.Background(), Invocation{
		Name: ListTables,
		Args: map[string]interface{}{"reasoning": "see what exists"},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if out != "users\norders" {
		t.Errorf("output should be trimmed, got %q", out)
	}
	if exec.lastStmt != "SELECT name FROM sqlite_master WHERE type='table';" {
		t.Errorf("unexpected statement: %q", exec.lastStmt)
	}
	if exec.lastDB != "warehouse.db" {
		t.Errorf("statement ran against %q", exec.lastDB)
	}
}

func TestDescribeTable(t *testing.T) {
	exec := &scriptedExecutor{output: "column_name\tcolumn_type"}
	r := testRegistry(exec)

	if _, err := r.Dispatch(context.Background(), Invocation{
		Name: DescribeTable,
		Args: map[string]interface{}{"reasoning": "schema", "table_name": "orders"},
	}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if exec.lastStmt != "DESCRIBE orders;" {
		t.Errorf("unexpected statement: %q", exec.lastStmt)
	}
}

func TestSampleTableCoercesRowCount(t *testing.T) {
	exec := &scriptedExecutor{}
	r := testRegistry(exec)

	// JSON decoders deliver numbers as float64.
	if _, err := r.Dispatch(context.Background(), Invocation{
		Name: SampleTable,
		Args: map[string]interface{}{"reasoning": "peek", "table_name": "users", "row_count": float64(7)},
	}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if exec.lastStmt != "SELECT * FROM users LIMIT 7;" {
		t.Errorf("unexpected statement: %q", exec.lastStmt)
	}
}

func TestSampleTableRejectsBadRowCount(t *testing.T) {
	r := testRegistry(&scriptedExecutor{})

	_, err := r.Dispatch(context.Background(), Invocation{
		Name: SampleTable,
		Args: map[string]interface{}{"reasoning": "peek", "table_name": "users", "row_count": "five"},
	})
	var invalid *InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidArgumentError, got %v", err)
	}
	if invalid.Argument != "row_count" {
		t.Errorf("wrong argument named: %s", invalid.Argument)
	}
}

func TestQueriesPassThroughVerbatim(t *testing.T) {
	for _, name := range []string{RunTestQuery, RunFinalQuery} {
		exec := &scriptedExecutor{output: "result"}
		r := testRegistry(exec)

		sql := "SELECT a, b FROM t WHERE a > 1 ORDER BY b;"
		out, err := r.Dispatch(context.Background(), Invocation{
			Name: name,
			Args: map[string]interface{}{"reasoning": "because", "sql_query": sql},
		})
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if exec.lastStmt != sql {
			t.Errorf("%s altered the query: %q", name, exec.lastStmt)
		}
		if out != "result" {
			t.Errorf("%s output: %q", name, out)
		}
	}
}

func TestMissingArguments(t *testing.T) {
	r := testRegistry(&scriptedExecutor{})

	cases := []struct {
		name string
		inv  Invocation
		want string
	}{
		{"no reasoning", Invocation{Name: ListTables, Args: map[string]interface{}{}}, "reasoning"},
		{"blank reasoning", Invocation{Name: ListTables, Args: map[string]interface{}{"reasoning": "  "}}, "reasoning"},
		{"no table", Invocation{Name: DescribeTable, Args: map[string]interface{}{"reasoning": "x"}}, "table_name"},
		{"no sql", Invocation{Name: RunFinalQuery, Args: map[string]interface{}{"reasoning": "x"}}, "sql_query"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Dispatch(context.Background(), tc.inv)
			var missing *MissingArgumentError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingArgumentError, got %v", err)
			}
			if missing.Argument != tc.want {
				t.Errorf("expected %s named, got %s", tc.want, missing.Argument)
			}
		})
	}
}

func TestUnknownTool(t *testing.T) {
	r := testRegistry(&scriptedExecutor{})

	_, err := r.Dispatch(context.Background(), Invocation{
		Name: "drop_database",
		Args: map[string]interface{}{"reasoning": "nope"},
	})
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
	if !strings.Contains(err.Error(), "drop_database") {
		t.Errorf("error should name the tool: %v", err)
	}
}

func TestExecutorErrorPropagates(t *testing.T) {
	exec := &scriptedExecutor{err: errors.New("Catalog Error: table missing")}
	r := testRegistry(exec)

	_, err := r.Dispatch(context.Background(), Invocation{
		Name: ListTables,
		Args: map[string]interface{}{"reasoning": "explore"},
	})
	if err == nil || !strings.Contains(err.Error(), "Catalog Error") {
		t.Errorf("executor error lost: %v", err)
	}
}

func TestDefinitionsStableOrder(t *testing.T) {
	defs := Definitions()
	want := []string{ListTables, DescribeTable, SampleTable, RunTestQuery, RunFinalQuery}
	if len(defs) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(defs))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, defs[i].Name)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(RunFinalQuery) {
		t.Error("run_final_sql_query must be terminal")
	}
	for _, name := range []string{ListTables, DescribeTable, SampleTable, RunTestQuery} {
		if IsTerminal(name) {
			t.Errorf("%s must not be terminal", name)
		}
	}
}
