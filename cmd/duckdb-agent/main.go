// Package main is the entry point for the duckdb-agent CLI.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/arosstale/single-file-agents/internal/credentials"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Credentials file first, .env second; explicit env vars always win
	// because Apply never overwrites a set variable.
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		creds.Apply()
	}
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("duckdb-agent"),
		kong.Description("An agent that explores a DuckDB database and answers questions with SQL."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

// Run prints build information.
func (v *VersionCmd) Run() error {
	fmt.Printf("duckdb-agent version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
