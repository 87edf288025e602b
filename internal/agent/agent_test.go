package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/arosstale/single-file-agents/internal/llm"
	"github.com/arosstale/single-file-agents/internal/logging"
	"github.com/arosstale/single-file-agents/internal/session"
	"github.com/arosstale/single-file-agents/internal/tools"
)

// fakeExecutor scripts duckdb results per statement and records every
// statement it ran.
type fakeExecutor struct {
	statements []string
	results    map[string]string
	failWith   map[string]error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		results:  make(map[string]string),
		failWith: make(map[string]error),
	}
}

func (f *fakeExecutor) Run(_ context.Context, _ string, statement string) (string, error) {
	f.statements = append(f.statements, statement)
	if err, ok := f.failWith[statement]; ok {
		return "", err
	}
	if out, ok := f.results[statement]; ok {
		return out, nil
	}
	return "ok", nil
}

func quietLogger() *logging.Logger {
	l := logging.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestAgent(t *testing.T, provider llm.Provider, exec *fakeExecutor, opts ...Option) *Agent {
	t.Helper()
	registry := tools.NewRegistry(exec, "analytics.db", quietLogger())
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(provider, registry, opts...)
}

func finalCall(sql string) llm.ToolCall {
	return llm.ToolCall{
		ID:   "call-final",
		Name: tools.RunFinalQuery,
		Args: map[string]interface{}{
			"reasoning": "query verified against sampled data",
			"sql_query": sql,
		},
	}
}

func TestRunTerminatesOnFinalQuery(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{finalCall("SELECT count(*) FROM users;")},
	})

	exec := newFakeExecutor()
	exec.results["SELECT count(*) FROM users;"] = "42"

	result, err := newTestAgent(t, provider, exec).Run(context.Background(), "how many users?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusTerminated {
		t.Errorf("expected terminated, got %s", result.Status)
	}
	if result.Output != "42" {
		t.Errorf("expected output 42, got %q", result.Output)
	}
	if result.Query != "SELECT count(*) FROM users;" {
		t.Errorf("unexpected final query: %q", result.Query)
	}
	if result.Rounds != 1 {
		t.Errorf("expected 1 round, got %d", result.Rounds)
	}
}

func TestRunExhaustsBudget(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("I think the answer involves the orders table.")

	result, err := newTestAgent(t, provider, newFakeExecutor(), WithBudget(3)).
		Run(context.Background(), "total revenue?")
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if result.Status != StatusExhausted {
		t.Errorf("expected exhausted, got %s", result.Status)
	}
	if result.Rounds != 3 {
		t.Errorf("expected 3 rounds, got %d", result.Rounds)
	}
	if got := len(provider.Requests()); got != 3 {
		t.Errorf("expected 3 backend calls, got %d", got)
	}
}

func TestFreeTextConsumesRoundWithoutTerminating(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("Let me think about the schema first.")
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{finalCall("SELECT 1;")},
	})

	result, err := newTestAgent(t, provider, newFakeExecutor(), WithBudget(2)).
		Run(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusTerminated {
		t.Fatalf("expected termination on round 2, got %s", result.Status)
	}
	if result.Rounds != 2 {
		t.Errorf("free text should have spent round 1, got %d rounds", result.Rounds)
	}
}

func TestBackendFailureIsFatal(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, errors.New("api returned status 401")
	}

	result, err := newTestAgent(t, provider, newFakeExecutor()).
		Run(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected a fatal error from the backend failure")
	}
	if result != nil {
		t.Errorf("expected nil result on fatal error, got %+v", result)
	}
	if !strings.Contains(err.Error(), "model backend") {
		t.Errorf("error should name the backend: %v", err)
	}
}

func TestToolErrorBecomesRetryFeedback(t *testing.T) {
	provider := llm.NewMockProvider()
	// Round 1 forgets table_name; round 2 fixes it and finalizes.
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{{
			ID:   "call-1",
			Name: tools.DescribeTable,
			Args: map[string]interface{}{"reasoning": "need schema"},
		}},
	})
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{finalCall("SELECT * FROM users;")},
	})

	a := newTestAgent(t, provider, newFakeExecutor(), WithBudget(3))
	result, err := a.Run(context.Background(), "describe users")
	if err != nil {
		t.Fatalf("tool failure must not abort the run: %v", err)
	}
	if result.Status != StatusTerminated {
		t.Fatalf("expected termination on round 2, got %s", result.Status)
	}

	var errTurn *Turn
	for i := range a.history {
		if a.history[i].Kind == TurnToolError {
			errTurn = &a.history[i]
			break
		}
	}
	if errTurn == nil {
		t.Fatal("expected a tool_error turn in the history")
	}
	if !strings.Contains(errTurn.Text, tools.DescribeTable) {
		t.Errorf("retry feedback should name the tool: %q", errTurn.Text)
	}
	if !strings.Contains(errTurn.Text, "need schema") {
		t.Errorf("retry feedback should include the args: %q", errTurn.Text)
	}
	if !strings.Contains(errTurn.Text, "try again") {
		t.Errorf("retry feedback should ask for a retry: %q", errTurn.Text)
	}

	// The feedback must reach the model on the next round.
	last := provider.LastRequest()
	found := false
	for _, msg := range last.Messages {
		if strings.Contains(msg.Content, "Error executing describe_table") {
			found = true
		}
	}
	if !found {
		t.Error("retry feedback missing from the round 2 prompt")
	}
}

func TestFinalQuerySkipsRemainingInvocations(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			finalCall("SELECT 1;"),
			{
				ID:   "call-after",
				Name: tools.ListTables,
				Args: map[string]interface{}{"reasoning": "never runs"},
			},
		},
	})

	exec := newFakeExecutor()
	result, err := newTestAgent(t, provider, exec).Run(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusTerminated {
		t.Fatalf("expected termination, got %s", result.Status)
	}
	if len(exec.statements) != 1 {
		t.Errorf("invocations after the final query must not run, ran %d", len(exec.statements))
	}
}

func TestInvocationsDispatchInOrder(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: tools.ListTables, Args: map[string]interface{}{"reasoning": "start broad"}},
			{ID: "c2", Name: tools.DescribeTable, Args: map[string]interface{}{"reasoning": "then narrow", "table_name": "users"}},
		},
	})
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{finalCall("SELECT 1;")},
	})

	exec := newFakeExecutor()
	if _, err := newTestAgent(t, provider, exec, WithBudget(2)).Run(context.Background(), "anything"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"SELECT name FROM sqlite_master WHERE type='table';",
		"DESCRIBE users;",
		"SELECT 1;",
	}
	if len(exec.statements) != len(want) {
		t.Fatalf("expected %d statements, got %d: %v", len(want), len(exec.statements), exec.statements)
	}
	for i, stmt := range want {
		if exec.statements[i] != stmt {
			t.Errorf("statement %d: expected %q, got %q", i, stmt, exec.statements[i])
		}
	}
}

func TestToolErrorDoesNotAbortTheRound(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: tools.DescribeTable, Args: map[string]interface{}{"reasoning": "oops"}}, // missing table_name
			{ID: "c2", Name: tools.ListTables, Args: map[string]interface{}{"reasoning": "still runs"}},
		},
	})
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{finalCall("SELECT 1;")},
	})

	exec := newFakeExecutor()
	a := newTestAgent(t, provider, exec, WithBudget(2))
	if _, err := a.Run(context.Background(), "anything"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// list_tables after the failed describe must still have been dispatched.
	ran := false
	for _, stmt := range exec.statements {
		if strings.Contains(stmt, "sqlite_master") {
			ran = true
		}
	}
	if !ran {
		t.Error("invocation after a failed one was not dispatched")
	}
}

func TestHistoryIsAppendOnlyAndOrdered(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: tools.ListTables, Args: map[string]interface{}{"reasoning": "explore"}},
		},
	})
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{finalCall("SELECT 2;")},
	})

	a := newTestAgent(t, provider, newFakeExecutor(), WithBudget(2))
	if _, err := a.Run(context.Background(), "what tables exist?"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	history := a.History()
	wantKinds := []TurnKind{TurnUser, TurnToolResult, TurnToolResult}
	if len(history) != len(wantKinds) {
		t.Fatalf("expected %d turns, got %d", len(wantKinds), len(history))
	}
	for i, kind := range wantKinds {
		if history[i].Kind != kind {
			t.Errorf("turn %d: expected %s, got %s", i, kind, history[i].Kind)
		}
	}
	if history[1].Tool != tools.ListTables {
		t.Errorf("turn 1 should be the list_tables result, got %s", history[1].Tool)
	}
	if history[2].Tool != tools.RunFinalQuery {
		t.Errorf("turn 2 should be the final query result, got %s", history[2].Tool)
	}
}

func TestExploreThenFinalize(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: tools.ListTables, Args: map[string]interface{}{"reasoning": "see what exists"}},
		},
	})
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			{ID: "c2", Name: tools.DescribeTable, Args: map[string]interface{}{"reasoning": "schema", "table_name": "orders"}},
			{ID: "c3", Name: tools.SampleTable, Args: map[string]interface{}{"reasoning": "data shape", "table_name": "orders", "row_count": float64(5)}},
		},
	})
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			{ID: "c4", Name: tools.RunTestQuery, Args: map[string]interface{}{"reasoning": "verify", "sql_query": "SELECT sum(total) FROM orders;"}},
			finalCall("SELECT sum(total) FROM orders;"),
		},
	})

	exec := newFakeExecutor()
	exec.results["SELECT sum(total) FROM orders;"] = "1234.5"

	result, err := newTestAgent(t, provider, exec, WithBudget(3)).
		Run(context.Background(), "total order value")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != StatusTerminated {
		t.Fatalf("expected termination, got %s", result.Status)
	}
	if result.Rounds != 3 {
		t.Errorf("expected 3 rounds, got %d", result.Rounds)
	}
	if result.Output != "1234.5" {
		t.Errorf("unexpected output %q", result.Output)
	}
	if exec.statements[2] != "SELECT * FROM orders LIMIT 5;" {
		t.Errorf("row_count was not honored: %q", exec.statements[2])
	}
}

func TestSessionEventsRecorded(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.QueueResponse(&llm.ChatResponse{
		ToolCalls: []llm.ToolCall{finalCall("SELECT 1;")},
		Model:     "test-model",
	})

	sess := &session.Session{ID: "run-1"}
	a := newTestAgent(t, provider, newFakeExecutor(), WithSession(sess))
	if _, err := a.Run(context.Background(), "anything"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sess.Events) == 0 {
		t.Fatal("no events recorded")
	}
	for i := 1; i < len(sess.Events); i++ {
		if sess.Events[i].SeqID <= sess.Events[i-1].SeqID {
			t.Fatalf("event %d out of order: %d after %d", i, sess.Events[i].SeqID, sess.Events[i-1].SeqID)
		}
	}
	last := sess.Events[len(sess.Events)-1]
	if last.Type != session.EventRunEnd || last.Content != string(StatusTerminated) {
		t.Errorf("last event should close the run, got %s %q", last.Type, last.Content)
	}
}

func TestEveryRequestCarriesToolDefinitions(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.SetResponse("thinking out loud")

	if _, err := newTestAgent(t, provider, newFakeExecutor(), WithBudget(2)).
		Run(context.Background(), "anything"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i, req := range provider.Requests() {
		if len(req.Tools) != 5 {
			t.Errorf("request %d: expected 5 tool definitions, got %d", i, len(req.Tools))
		}
	}
}

func TestRetryMessageNamesToolAndArgs(t *testing.T) {
	call := llm.ToolCall{
		Name: tools.RunTestQuery,
		Args: map[string]interface{}{"reasoning": "check", "sql_query": "SELECT bogus;"},
	}
	msg := retryMessage(call, fmt.Errorf("duckdb statement failed: no such column"))
	for _, want := range []string{"run_test_sql_query", "SELECT bogus;", "no such column"} {
		if !strings.Contains(msg, want) {
			t.Errorf("retry message missing %q: %s", want, msg)
		}
	}
}
