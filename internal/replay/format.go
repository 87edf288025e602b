package replay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arosstale/single-file-agents/internal/session"
)

// formatEvent writes a single timeline row.
func (r *Replayer) formatEvent(event *session.Event) {
	seq := dimStyle.Render(fmt.Sprintf("%4d", event.SeqID))
	ts := dimStyle.Render(event.Timestamp.Format("15:04:05"))

	switch event.Type {
	case session.EventRunStart:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seq, ts,
			flowStyle.Render("RUN START"), dimStyle.Render(event.Content))
	case session.EventRunEnd:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seq, ts,
			flowStyle.Render("RUN END"), statusOfEnd(event.Content))
	case session.EventRoundStart:
		fmt.Fprintln(r.output)
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seq, ts,
			titleStyle.Render(fmt.Sprintf("ROUND %d", event.Round)))
	case session.EventUser:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seq, ts,
			flowStyle.Render("REQUEST:"), valueStyle.Render(r.truncate(event.Content)))
	case session.EventAssistant:
		r.fmtAssistant(seq, ts, event)
	case session.EventToolCall:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seq, ts,
			toolStyle.Render("TOOL:"), valueStyle.Render(event.Tool))
		r.printArgs(event.Args)
	case session.EventToolResult:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seq, ts,
			toolStyle.Render("RESULT:"), valueStyle.Render(event.Tool),
			dimStyle.Render(fmt.Sprintf("(%dms)", event.DurationMs)))
		if r.verbose && event.Content != "" {
			r.printContent(r.truncate(event.Content))
		}
	case session.EventToolError:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seq, ts,
			errorStyle.Render("TOOL ERROR:"), valueStyle.Render(event.Tool))
		r.printError(event.Error)
	case session.EventWarning:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seq, ts,
			warnStyle.Render("WARNING:"), valueStyle.Render(event.Content))
	default:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seq, ts, dimStyle.Render(event.Type))
	}
}

func (r *Replayer) fmtAssistant(seq, ts string, event *session.Event) {
	label := flowStyle.Render("MODEL")
	meta := ""
	if event.TokensIn > 0 || event.TokensOut > 0 {
		meta = dimStyle.Render(fmt.Sprintf(" tokens %d→%d", event.TokensIn, event.TokensOut))
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s%s\n", seq, ts, label, meta)
	if event.Content != "" {
		r.printContent(r.truncate(event.Content))
	}
}

// printArgs prints tool arguments in a stable order, SQL highlighted.
func (r *Replayer) printArgs(args map[string]interface{}) {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprintf("%v", args[k])
		rendered := valueStyle.Render(v)
		if k == "sql_query" {
			rendered = sqlStyle.Render(v)
		}
		fmt.Fprintf(r.output, "     │          │   %s %s\n",
			labelStyle.Render(k+":"), rendered)
	}
}

func (r *Replayer) printContent(content string) {
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.output, "     │          │   %s\n", line)
	}
}

func (r *Replayer) printError(err string) {
	fmt.Fprintf(r.output, "     │          │   %s\n", errorStyle.Render(err))
}

func (r *Replayer) truncate(content string) string {
	if r.maxContentSize > 0 && len(content) > r.maxContentSize {
		return content[:r.maxContentSize] + dimStyle.Render("… (truncated)")
	}
	return content
}

func statusOfEnd(status string) string {
	return statusStyle(mapRunEndStatus(status)).Render(status)
}

// Run-end events carry the agent status names; the session status names
// differ slightly ("terminated" persists as "complete").
func mapRunEndStatus(s string) string {
	if s == "terminated" {
		return session.StatusComplete
	}
	return s
}
