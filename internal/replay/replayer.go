package replay

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arosstale/single-file-agents/internal/session"
)

// Replayer reads and formats session records for inspection.
type Replayer struct {
	output         io.Writer
	verbose        bool
	maxContentSize int // cap on Content fields, 0 = unlimited
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithVerbose includes tool outputs and the full prompt in the timeline.
func WithVerbose(v bool) Option {
	return func(r *Replayer) { r.verbose = v }
}

// WithMaxContentSize caps Content field size to avoid OOM on large sessions.
func WithMaxContentSize(size int) Option {
	return func(r *Replayer) { r.maxContentSize = size }
}

// New creates a Replayer writing to output.
func New(output io.Writer, opts ...Option) *Replayer {
	r := &Replayer{
		output:         output,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFile loads a JSONL session record and replays it.
func (r *Replayer) ReplayFile(path string) error {
	sess, err := session.LoadFile(path)
	if err != nil {
		return err
	}
	return r.Replay(sess)
}

// ReplayFileInteractive replays a session file in the pager.
func (r *Replayer) ReplayFileInteractive(path string) error {
	sess, err := session.LoadFile(path)
	if err != nil {
		return err
	}
	content, err := r.renderToString(sess)
	if err != nil {
		return err
	}
	p := newPager(fmt.Sprintf("Session: %s", sess.ID))
	return p.Run(content)
}

// ReplayFileLive replays a session file in the pager and re-renders it on
// every write, following a run as it records.
func (r *Replayer) ReplayFileLive(path string) error {
	render := func() (string, error) {
		sess, err := session.LoadFile(path)
		if err != nil {
			return "", err
		}
		return r.renderToString(sess)
	}

	sess, err := session.LoadFile(path)
	if err != nil {
		return err
	}
	p := newPager(fmt.Sprintf("Session: %s (LIVE)", sess.ID))
	return p.RunLive(path, render)
}

// Replay writes the formatted timeline of a session.
func (r *Replayer) Replay(sess *session.Session) error {
	r.printHeader(sess)
	r.printTimeline(sess)
	r.printSummary(sess)
	return nil
}

func (r *Replayer) renderToString(sess *session.Session) (string, error) {
	var buf strings.Builder
	old := r.output
	r.output = &buf
	err := r.Replay(sess)
	r.output = old
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Replayer) printHeader(sess *session.Session) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(sess.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Database:"), valueStyle.Render(sess.DatabasePath))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Request: "), valueStyle.Render(sess.Request))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Budget:  "), valueStyle.Render(fmt.Sprintf("%d rounds", sess.Budget)))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:  "), statusStyle(sess.Status).Render(sess.Status))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created: "), valueStyle.Render(sess.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(sess *session.Session) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(sess.Events))))
	fmt.Fprintln(r.output, divider)

	for i := range sess.Events {
		r.formatEvent(&sess.Events[i])
	}
}

func (r *Replayer) printSummary(sess *session.Session) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	switch sess.Status {
	case session.StatusComplete:
		fmt.Fprintln(r.output, successStyle.Render("COMPLETED"))
		if sess.Result != "" {
			r.printContent(sess.Result)
		}
	case session.StatusFailed:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(sess.Error))
	case session.StatusExhausted:
		fmt.Fprintln(r.output, warnStyle.Render("EXHAUSTED"))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}

	r.printStats(sess)
}

// printStats totals token usage and tool activity across the run.
func (r *Replayer) printStats(sess *session.Session) {
	var tokensIn, tokensOut, toolCalls, toolErrors int
	for _, evt := range sess.Events {
		tokensIn += evt.TokensIn
		tokensOut += evt.TokensOut
		switch evt.Type {
		case session.EventToolResult:
			toolCalls++
		case session.EventToolError:
			toolCalls++
			toolErrors++
		}
	}
	fmt.Fprintf(r.output, "%s %d calls, %d errors\n",
		labelStyle.Render("Tools: "), toolCalls, toolErrors)
	if tokensIn > 0 || tokensOut > 0 {
		fmt.Fprintf(r.output, "%s %d in, %d out\n",
			labelStyle.Render("Tokens:"), tokensIn, tokensOut)
	}
}
