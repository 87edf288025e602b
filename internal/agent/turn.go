package agent

import (
	"github.com/arosstale/single-file-agents/internal/llm"
)

// TurnKind discriminates the turn variants.
type TurnKind string

const (
	TurnUser       TurnKind = "user"        // the rendered prompt
	TurnModel      TurnKind = "model"       // free-text model reply
	TurnToolResult TurnKind = "tool_result" // successful tool execution
	TurnToolError  TurnKind = "tool_error"  // failed tool execution, retry feedback
)

// Turn is one entry in the conversation history. Turns are immutable once
// appended; the history is append-only and its order is the conversation
// order.
type Turn struct {
	Kind TurnKind

	// Text holds the user prompt, the model reply, the tool result, or the
	// retry-oriented error message, depending on Kind.
	Text string

	// Tool call context, set for tool_result and tool_error turns.
	Tool   string
	CallID string
	Args   map[string]interface{}
}

// renderMessages converts the history into role-tagged messages for the
// model backend. A tool_result turn expands into the assistant tool-call
// message plus the tool result message the wire protocols expect; a
// tool_error turn becomes an assistant message carrying the retry text.
func renderMessages(history []Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)*2)
	for _, t := range history {
		switch t.Kind {
		case TurnUser:
			msgs = append(msgs, llm.Message{Role: "user", Content: t.Text})
		case TurnModel:
			msgs = append(msgs, llm.Message{Role: "assistant", Content: t.Text})
		case TurnToolResult:
			msgs = append(msgs,
				llm.Message{
					Role: "assistant",
					ToolCalls: []llm.ToolCall{
						{ID: t.CallID, Name: t.Tool, Args: t.Args},
					},
				},
				llm.Message{
					Role:       "tool",
					ToolCallID: t.CallID,
					Content:    t.Text,
				},
			)
		case TurnToolError:
			msgs = append(msgs, llm.Message{Role: "assistant", Content: t.Text})
		}
	}
	return msgs
}
