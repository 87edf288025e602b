// Package main defines the CLI structure using kong.
package main

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" default:"withargs" help:"Run an agent against a DuckDB database"`
	Replay  ReplayCmd  `cmd:"" help:"Replay a recorded session"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd runs the agentic loop for one natural language request.
type RunCmd struct {
	Db      string `short:"d" required:"" help:"Path to the DuckDB database file"`
	Prompt  string `short:"p" required:"" help:"The natural language request"`
	Compute int    `short:"c" default:"3" help:"Maximum number of model rounds"`

	Config    string `help:"Config file path (default: agent.toml if present)"`
	DuckdbBin string `help:"duckdb binary to execute queries with (overrides config)"`
	Model     string `short:"m" help:"Model id (overrides config)"`
	Provider  string `help:"Model provider: google, anthropic, openai, openai-compat (overrides config)"`

	SessionDir string `help:"Directory for session records (overrides config)"`
	NoSession  bool   `help:"Disable session recording"`
	Quiet      bool   `short:"q" help:"Suppress progress output; print only the final result"`
}

// ReplayCmd renders a recorded session.
type ReplayCmd struct {
	Session string `arg:"" help:"Session file to replay"`
	Verbose bool   `short:"v" help:"Include tool outputs and model text"`
	NoPager bool   `help:"Print to stdout instead of the interactive pager"`
	Follow  bool   `short:"f" help:"Follow a live session as it records"`
}

// VersionCmd prints build information.
type VersionCmd struct{}
