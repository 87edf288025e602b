// Package agent runs the bounded tool-calling loop that turns a natural
// language request into a validated DuckDB SQL query. Each round spends one
// model call; the run ends when the model successfully executes its final
// query or the round budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arosstale/single-file-agents/internal/llm"
	"github.com/arosstale/single-file-agents/internal/logging"
	"github.com/arosstale/single-file-agents/internal/session"
	"github.com/arosstale/single-file-agents/internal/tools"
)

// DefaultBudget is the number of model rounds a run may spend when the
// caller does not choose one.
const DefaultBudget = 3

// Status reports how a run ended.
type Status string

const (
	// StatusTerminated means the final query executed successfully.
	StatusTerminated Status = "terminated"
	// StatusExhausted means the round budget ran out with no final query.
	StatusExhausted Status = "exhausted"
)

// Result is the outcome of a completed run.
type Result struct {
	Status Status
	// Query is the SQL the model committed to, empty when exhausted.
	Query string
	// Output is the duckdb output of the final query, the user-visible
	// answer to the request.
	Output string
	// Rounds is how many model calls the run spent.
	Rounds int
}

// Hooks let the caller observe the run as it progresses, typically for
// console presentation. All hooks are optional.
type Hooks struct {
	RoundStart func(round, budget int)
	ModelReply func(text string)
	ToolCall   func(name string, args map[string]interface{})
	ToolResult func(name, output string, err error, elapsed time.Duration)
}

// Agent drives one request through the explore-test-finalize loop.
type Agent struct {
	provider llm.Provider
	registry *tools.Registry
	budget   int
	logger   *logging.Logger
	sess     *session.Session
	hooks    Hooks

	history []Turn
}

// Option customizes an Agent.
type Option func(*Agent)

// WithBudget sets the round budget. Values below one are ignored.
func WithBudget(n int) Option {
	return func(a *Agent) {
		if n >= 1 {
			a.budget = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithSession attaches a session the run appends its events to.
func WithSession(s *session.Session) Option {
	return func(a *Agent) { a.sess = s }
}

// WithHooks attaches run observation hooks.
func WithHooks(h Hooks) Option {
	return func(a *Agent) { a.hooks = h }
}

// New builds an Agent over a model provider and a tool registry.
func New(provider llm.Provider, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		provider: provider,
		registry: registry,
		budget:   DefaultBudget,
		logger:   logging.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithComponent("agent")
	return a
}

// History returns the turns accumulated so far, oldest first. The returned
// slice is a copy; turns are never mutated after they are appended.
func (a *Agent) History() []Turn {
	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}

// Run executes the loop for one user request. A model backend failure is
// fatal and aborts the run with an error; tool failures are fed back to the
// model as retry guidance and never abort. With the budget spent and no
// final query, the run ends with StatusExhausted and a nil error.
func (a *Agent) Run(ctx context.Context, request string) (*Result, error) {
	runID := ""
	if a.sess != nil {
		runID = a.sess.ID
	}
	ctx, runSpan := startRunSpan(ctx, runID, a.registry.DatabasePath(), a.budget)
	defer runSpan.End()

	started := time.Now()
	prompt := NewPromptBuilder().Render(request)
	a.record(session.Event{Type: session.EventRunStart, Content: a.registry.DatabasePath()})
	a.append(Turn{Kind: TurnUser, Text: prompt})
	a.record(session.Event{Type: session.EventUser, Content: request})

	defs := tools.Definitions()

	for round := 1; round <= a.budget; round++ {
		a.logger.RoundStart(round, a.budget)
		a.record(session.Event{Type: session.EventRoundStart, Round: round})
		if a.hooks.RoundStart != nil {
			a.hooks.RoundStart(round, a.budget)
		}

		roundCtx, roundSpan := startRoundSpan(ctx, round)

		resp, err := a.provider.Chat(roundCtx, llm.ChatRequest{
			Messages: renderMessages(a.history),
			Tools:    defs,
		})
		if err != nil {
			recordSpanError(roundSpan, err)
			roundSpan.End()
			a.logger.Error("model backend call failed", map[string]interface{}{
				"round": round,
				"error": err.Error(),
			})
			a.logger.RunComplete("failed", round, time.Since(started))
			return nil, fmt.Errorf("model backend: %w", err)
		}

		a.record(session.Event{
			Type:      session.EventAssistant,
			Round:     round,
			Content:   resp.Content,
			Model:     resp.Model,
			TokensIn:  resp.InputTokens,
			TokensOut: resp.OutputTokens,
		})

		if len(resp.ToolCalls) == 0 {
			// A free-text reply spends the round but never ends the run.
			a.append(Turn{Kind: TurnModel, Text: resp.Content})
			a.logger.Warn("model replied without tool calls", map[string]interface{}{
				"round": round,
			})
			if a.hooks.ModelReply != nil {
				a.hooks.ModelReply(resp.Content)
			}
			roundSpan.End()
			continue
		}

		result := a.dispatchAll(roundCtx, round, resp.ToolCalls)
		roundSpan.End()
		if result != nil {
			result.Rounds = round
			a.record(session.Event{Type: session.EventRunEnd, Round: round, Content: string(result.Status)})
			a.logger.RunComplete(string(result.Status), round, time.Since(started))
			return result, nil
		}
	}

	a.record(session.Event{
		Type:    session.EventWarning,
		Content: fmt.Sprintf("round budget of %d spent without a final query", a.budget),
	})
	a.record(session.Event{Type: session.EventRunEnd, Round: a.budget, Content: string(StatusExhausted)})
	a.logger.Warn("round budget exhausted without a final query", map[string]interface{}{
		"budget": a.budget,
	})
	a.logger.RunComplete(string(StatusExhausted), a.budget, time.Since(started))
	return &Result{Status: StatusExhausted, Rounds: a.budget}, nil
}

// dispatchAll executes the round's tool calls in the order the model issued
// them. A successful final query terminates immediately; calls queued after
// it are never dispatched. It returns a non-nil Result only on termination.
func (a *Agent) dispatchAll(ctx context.Context, round int, calls []llm.ToolCall) *Result {
	for _, call := range calls {
		a.record(session.Event{
			Type:  session.EventToolCall,
			Round: round,
			Tool:  call.Name,
			Args:  call.Args,
		})
		if a.hooks.ToolCall != nil {
			a.hooks.ToolCall(call.Name, call.Args)
		}

		toolCtx, toolSpan := startToolSpan(ctx, call.Name)
		start := time.Now()
		output, err := a.registry.Dispatch(toolCtx, tools.Invocation{
			Name: call.Name,
			Args: call.Args,
		})
		elapsed := time.Since(start)
		recordSpanError(toolSpan, err)
		toolSpan.End()

		if a.hooks.ToolResult != nil {
			a.hooks.ToolResult(call.Name, output, err, elapsed)
		}

		if err != nil {
			msg := retryMessage(call, err)
			a.append(Turn{
				Kind:   TurnToolError,
				Text:   msg,
				Tool:   call.Name,
				CallID: call.ID,
				Args:   call.Args,
			})
			a.record(session.Event{
				Type:       session.EventToolError,
				Round:      round,
				Tool:       call.Name,
				Args:       call.Args,
				Error:      err.Error(),
				DurationMs: elapsed.Milliseconds(),
			})
			continue
		}

		a.append(Turn{
			Kind:   TurnToolResult,
			Text:   output,
			Tool:   call.Name,
			CallID: call.ID,
			Args:   call.Args,
		})
		a.record(session.Event{
			Type:       session.EventToolResult,
			Round:      round,
			Tool:       call.Name,
			Args:       call.Args,
			Content:    output,
			DurationMs: elapsed.Milliseconds(),
		})

		if tools.IsTerminal(call.Name) {
			return &Result{
				Status: StatusTerminated,
				Query:  stringArg(call.Args, "sql_query"),
				Output: output,
			}
		}
	}
	return nil
}

// retryMessage builds the feedback the model sees after a failed tool call.
// It names the tool and its arguments so the model can correct the call on
// the next round.
func retryMessage(call llm.ToolCall, err error) string {
	args, marshalErr := json.Marshal(call.Args)
	if marshalErr != nil {
		args = []byte("{}")
	}
	return fmt.Sprintf("Error executing %s with args %s: %v. Adjust the call and try again.",
		call.Name, args, err)
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func (a *Agent) append(t Turn) {
	a.history = append(a.history, t)
}

func (a *Agent) record(evt session.Event) {
	if a.sess == nil {
		return
	}
	a.sess.AddEvent(evt)
}
