package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arosstale/single-file-agents/internal/agent"
	"github.com/arosstale/single-file-agents/internal/config"
	"github.com/arosstale/single-file-agents/internal/duckdb"
	"github.com/arosstale/single-file-agents/internal/llm"
	"github.com/arosstale/single-file-agents/internal/logging"
	"github.com/arosstale/single-file-agents/internal/replay"
	"github.com/arosstale/single-file-agents/internal/session"
	"github.com/arosstale/single-file-agents/internal/telemetry"
	"github.com/arosstale/single-file-agents/internal/tools"
)

// Run executes the agent loop for one request.
func (r *RunCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.Compute < 1 {
		return fmt.Errorf("--compute must be at least 1, got %d", r.Compute)
	}

	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New()
	if r.Quiet {
		logger.SetLevel(logging.LevelError)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, "duckdb-agent", version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()

	// Everything that can fail from bad input fails here, before the first
	// round spends any model budget.
	if _, err := os.Stat(r.Db); err != nil {
		return fmt.Errorf("database file: %w", err)
	}
	apiKey := cfg.GetAPIKey()
	if apiKey == "" {
		envs := config.DefaultAPIKeyEnvs(cfg.LLM.Provider)
		return fmt.Errorf("no API key for provider %q: set one of %v", cfg.LLM.Provider, envs)
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    apiKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
		Retry: llm.RetryConfig{
			MaxRetries: cfg.LLM.MaxRetries,
			MaxBackoff: cfg.RetryBackoffDuration(),
		},
	})
	if err != nil {
		return err
	}

	runnerOpts := []duckdb.Option{}
	if cfg.DuckDB.Binary != "" {
		runnerOpts = append(runnerOpts, duckdb.WithBinary(cfg.DuckDB.Binary))
	}
	if cfg.DuckDB.Timeout > 0 {
		runnerOpts = append(runnerOpts, duckdb.WithTimeout(time.Duration(cfg.DuckDB.Timeout)*time.Second))
	}
	runner := duckdb.NewRunner(runnerOpts...)
	registry := tools.NewRegistry(runner, r.Db, logger)

	sess, manager, err := r.openSession(cfg)
	if err != nil {
		return err
	}
	if sess != nil {
		logger = logger.WithRunID(sess.ID)
	}

	console := newConsole(os.Stderr, r.Quiet)
	console.Banner(cfg.LLM.Provider, cfg.LLM.Model, r.Db, r.Compute)

	opts := []agent.Option{
		agent.WithBudget(r.Compute),
		agent.WithLogger(logger),
		agent.WithHooks(console.Hooks(sess, manager)),
	}
	if sess != nil {
		opts = append(opts, agent.WithSession(sess))
	}

	result, err := agent.New(provider, registry, opts...).Run(ctx, r.Prompt)
	r.closeSession(sess, manager, result, err)
	if err != nil {
		return err
	}

	switch result.Status {
	case agent.StatusTerminated:
		console.Final(result.Query)
		// The final query output is the one thing that goes to stdout.
		fmt.Println(result.Output)
	case agent.StatusExhausted:
		console.Exhausted(result.Rounds)
	}
	return nil
}

func (r *RunCmd) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if r.Config != "" {
		cfg, err = config.LoadFile(r.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if r.Provider != "" {
		cfg.LLM.Provider = r.Provider
	}
	if r.Model != "" {
		cfg.LLM.Model = r.Model
	}
	if r.DuckdbBin != "" {
		cfg.DuckDB.Binary = r.DuckdbBin
	}
	if r.SessionDir != "" {
		cfg.Storage.Path = r.SessionDir
	}
	return cfg, nil
}

// openSession creates the session record unless recording is disabled.
func (r *RunCmd) openSession(cfg *config.Config) (*session.Session, *session.Manager, error) {
	if r.NoSession {
		return nil, nil, nil
	}

	var store session.Store
	switch cfg.Storage.Format {
	case "sqlite":
		s, err := session.NewSQLiteStore(filepath.Join(cfg.StoragePath(), "sessions.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		store = s
	default:
		s, err := session.NewFileStore(cfg.StoragePath())
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		store = s
	}

	manager := session.NewManager(store)
	sess, err := manager.Create(r.Db, r.Prompt, r.Compute)
	if err != nil {
		return nil, nil, fmt.Errorf("session create: %w", err)
	}
	return sess, manager, nil
}

// closeSession records the final status. Persistence failures are logged,
// never fatal; the run's outcome already reached the user.
func (r *RunCmd) closeSession(sess *session.Session, manager *session.Manager, result *agent.Result, runErr error) {
	if sess == nil || manager == nil {
		return
	}

	switch {
	case runErr != nil:
		sess.Status = session.StatusFailed
		sess.Error = runErr.Error()
	case result.Status == agent.StatusTerminated:
		sess.Status = session.StatusComplete
		sess.Result = result.Output
	default:
		sess.Status = session.StatusExhausted
	}
	if err := manager.Update(sess); err != nil {
		fmt.Fprintf(os.Stderr, "warning: session save failed: %v\n", err)
	}
}

// Run renders a recorded session.
func (r *ReplayCmd) Run() error {
	rep := replay.New(os.Stdout, replay.WithVerbose(r.Verbose))
	switch {
	case r.Follow:
		return rep.ReplayFileLive(r.Session)
	case r.NoPager:
		return rep.ReplayFile(r.Session)
	default:
		return rep.ReplayFileInteractive(r.Session)
	}
}
