package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/easy-apply-agent/internal/automation"
	"github.com/jonathan/easy-apply-agent/internal/config"
	"github.com/jonathan/easy-apply-agent/internal/db"
	"github.com/jonathan/easy-apply-agent/internal/logging"
	"github.com/jonathan/easy-apply-agent/internal/login"
	"github.com/jonathan/easy-apply-agent/internal/registry"
	"github.com/jonathan/easy-apply-agent/internal/server"
	"github.com/jonathan/easy-apply-agent/internal/server/ratelimit"
)

var serveFlags config.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run-control HTTP API",
	Long: `Start an HTTP server that lets authenticated callers start, observe and stop
automation runs. Requires DATABASE_URL, JWT_SECRET and CREDENTIALS_KEY.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.ListenAddr, "addr", "", "Listen address (default :8080)")
	f.IntVar(&serveFlags.MaxBrowsers, "max-browsers", 0, "Concurrent browsers across all callers (default 2)")
	f.StringVar(&serveFlags.ChromePath, "chrome", "", "Chrome executable path")
	f.BoolVar(&serveFlags.NoPacing, "no-pacing", false, "Disable human-like delays")
	f.StringVar(&serveFlags.Provider, "provider", "", "LLM provider: gemini or openai")
	f.StringVar(&serveFlags.APIKey, "api-key", "", "LLM API key (defaults to GEMINI_API_KEY or OPENAI_API_KEY)")
	f.StringVar(&serveFlags.DatabaseURL, "db-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	f.StringVar(&serveFlags.S3Region, "s3-region", "", "AWS region for s3:// resumes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd, serveFlags)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	// Server runs have no window to show.
	cfg.Headless = true

	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	log := logging.NewJSON(os.Stderr, level)

	sealer, err := config.NewSealerFromEnv()
	if err != nil {
		return err
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return err
	}

	answers, closeOracle, err := newOracle(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeOracle()

	resumes, err := newResumeLoader(cfg, log)
	if err != nil {
		return err
	}

	live, authCfg := liveSettings(cfg)
	manager := login.NewManager(database.Tokens(), authCfg, log)
	orch := automation.New(automation.LiveDeps(live, manager, resumes, answers, database, log), log)
	reg := registry.New(int64(cfg.MaxBrowsers), log, registry.WithLifecycle(database.RunRecorder(log)))

	// Runs are cancelled only after the server has drained them.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	srv := server.New(server.Config{Addr: cfg.ListenAddr}, server.Deps{
		Store:       database,
		Sealer:      sealer,
		Runner:      orch,
		Registry:    reg,
		Auth:        server.NewJWTService(jwtCfg).AsTokenValidator(),
		RateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		RunContext:  runCtx,
	}, log)

	return srv.Start(ctx)
}
