// Package duckdb executes SQL statements against a database file via the
// duckdb command-line client.
package duckdb

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecError is returned when the duckdb process exits nonzero or fails to
// run. Stderr carries whatever the engine printed, so the text can be fed
// back to the model verbatim.
type ExecError struct {
	Statement string
	Stderr    string
	Err       error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("duckdb statement failed: %s", strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("duckdb statement failed: %v", e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Runner executes single statements against one database file. Each call
// spawns one duckdb process; there is no persistent connection and no
// state shared between calls.
type Runner struct {
	binary  string
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary overrides the duckdb executable path.
func WithBinary(path string) Option {
	return func(r *Runner) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithTimeout sets a per-statement deadline. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{binary: "duckdb"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one statement against the database at dbPath and returns
// captured stdout. The statement is passed through unmodified; no
// validation or escaping happens here. On nonzero exit the returned error
// is an *ExecError carrying captured stderr.
func (r *Runner) Run(ctx context.Context, dbPath, statement string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.binary, dbPath, "-c", statement)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExecError{Statement: statement, Stderr: stderr.String(), Err: err}
		}
		// Process failed to start (missing binary, bad path).
		return "", &ExecError{Statement: statement, Stderr: stderr.String(), Err: err}
	}

	return stdout.String(), nil
}
