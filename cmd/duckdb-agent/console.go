package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/arosstale/single-file-agents/internal/agent"
	"github.com/arosstale/single-file-agents/internal/session"
)

var (
	consoleTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15"))

	consoleDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	consoleToolStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12"))

	consoleSQLStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	consoleOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	consoleErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	consoleWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11"))
)

const consoleWidth = 78

// console renders run progress on stderr so stdout carries nothing but the
// final query result.
type console struct {
	w     io.Writer
	quiet bool
}

func newConsole(w io.Writer, quiet bool) *console {
	return &console{w: w, quiet: quiet}
}

func (c *console) Banner(provider, model, dbPath string, budget int) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, consoleTitleStyle.Render("duckdb-agent"))
	fmt.Fprintf(c.w, "%s %s/%s\n", consoleDimStyle.Render("model:   "), provider, model)
	fmt.Fprintf(c.w, "%s %s\n", consoleDimStyle.Render("database:"), dbPath)
	fmt.Fprintf(c.w, "%s %d rounds\n", consoleDimStyle.Render("budget:  "), budget)
}

// Hooks builds the agent observation hooks. When a session and manager are
// present the round hook also flushes the record, so a live replay can
// follow the run.
func (c *console) Hooks(sess *session.Session, manager *session.Manager) agent.Hooks {
	return agent.Hooks{
		RoundStart: func(round, budget int) {
			if sess != nil && manager != nil {
				_ = manager.Update(sess)
			}
			c.rule(fmt.Sprintf("round %d/%d", round, budget))
		},
		ModelReply: func(text string) {
			if c.quiet || text == "" {
				return
			}
			fmt.Fprintln(c.w, wordwrap.String(text, consoleWidth))
		},
		ToolCall: func(name string, args map[string]interface{}) {
			if c.quiet {
				return
			}
			fmt.Fprintf(c.w, "%s %s\n", consoleToolStyle.Render("→"), consoleToolStyle.Render(name))
			if sql, ok := args["sql_query"].(string); ok {
				fmt.Fprintln(c.w, consoleSQLStyle.Render("  "+strings.TrimSpace(sql)))
			}
		},
		ToolResult: func(name, output string, err error, elapsed time.Duration) {
			if c.quiet {
				return
			}
			if err != nil {
				fmt.Fprintf(c.w, "%s %v\n", consoleErrStyle.Render("✗"), err)
				return
			}
			fmt.Fprintf(c.w, "%s %s %s\n", consoleOKStyle.Render("✓"), name,
				consoleDimStyle.Render(fmt.Sprintf("(%s)", elapsed.Round(time.Millisecond))))
		},
	}
}

func (c *console) Final(query string) {
	if c.quiet {
		return
	}
	c.rule("final query")
	fmt.Fprintln(c.w, consoleSQLStyle.Render(strings.TrimSpace(query)))
	fmt.Fprintln(c.w)
}

func (c *console) Exhausted(rounds int) {
	fmt.Fprintln(c.w, consoleWarnStyle.Render(
		fmt.Sprintf("no final query after %d rounds; rerun with a higher -c budget", rounds)))
}

func (c *console) rule(label string) {
	if c.quiet {
		return
	}
	line := strings.Repeat("─", consoleWidth-len(label)-4)
	fmt.Fprintf(c.w, "\n%s\n", consoleDimStyle.Render("── "+label+" "+line))
}
