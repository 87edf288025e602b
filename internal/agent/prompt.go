package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arosstale/single-file-agents/internal/tools"
)

// PromptBuilder assembles the XML system prompt handed to the model on the
// first round. The user request is interpolated exactly once; all subsequent
// context reaches the model through the conversation history.
type PromptBuilder struct {
	sb strings.Builder
}

// NewPromptBuilder returns an empty builder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Render produces the full prompt for a user request.
func (b *PromptBuilder) Render(request string) string {
	b.sb.Reset()

	b.open("purpose")
	b.line("You are a world-class expert at crafting precise DuckDB SQL queries.")
	b.line("Your goal is to generate accurate queries that exactly match the user's data needs.")
	b.close("purpose")

	b.open("instructions")
	b.item("Use the provided tools to explore the database and construct the perfect query.")
	b.item("Start by listing tables to understand what's available.")
	b.item("Describe tables to understand their schema and columns.")
	b.item("Sample tables to see actual data patterns.")
	b.item("Test queries before finalizing them.")
	b.item("Only call run_final_sql_query when you're confident the query is perfect.")
	b.item("Be thorough but efficient with tool usage.")
	b.item("If a tool call fails, adjust your approach based on the error and try again.")
	b.item("Think step by step about what information you need.")
	b.item("Be sure to specify every parameter for each tool call, including your reasoning.")
	b.item("Every response must be a tool call; do not reply with plain text.")
	b.close("instructions")

	b.writeTools()

	b.open("user-request")
	b.line(request)
	b.close("user-request")

	return b.sb.String()
}

// writeTools renders the tool contract section from the registered
// definitions so the prompt never drifts from the schemas the backend sees.
func (b *PromptBuilder) writeTools() {
	b.open("tools")
	for _, def := range tools.Definitions() {
		b.sb.WriteString(fmt.Sprintf("  <tool name=%q>\n", def.Name))
		b.sb.WriteString(fmt.Sprintf("    <description>%s</description>\n", def.Description))
		for _, p := range parameterNames(def.Parameters) {
			b.sb.WriteString(fmt.Sprintf("    <parameter>%s</parameter>\n", p))
		}
		b.sb.WriteString("  </tool>\n")
	}
	b.close("tools")
}

func parameterNames(schema map[string]interface{}) []string {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *PromptBuilder) open(tag string) {
	b.sb.WriteString("<" + tag + ">\n")
}

func (b *PromptBuilder) close(tag string) {
	b.sb.WriteString("</" + tag + ">\n\n")
}

func (b *PromptBuilder) line(s string) {
	b.sb.WriteString("  " + s + "\n")
}

func (b *PromptBuilder) item(s string) {
	b.sb.WriteString("  - " + s + "\n")
}
