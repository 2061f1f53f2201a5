package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonathan/easy-apply-agent/internal/automation"
	"github.com/jonathan/easy-apply-agent/internal/config"
	"github.com/jonathan/easy-apply-agent/internal/db"
	"github.com/jonathan/easy-apply-agent/internal/logging"
	"github.com/jonathan/easy-apply-agent/internal/login"
	"github.com/jonathan/easy-apply-agent/internal/observability"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// secretEnv holds the platform password for one-shot runs.
const secretEnv = "LINKEDIN_PASSWORD"

var applyFlags config.Config

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run one Easy Apply session in the foreground",
	Long: `Searches for postings and applies until the limit is reached or no postings remain.

Status events are printed as they happen, followed by a summary. Interrupt once
to stop after the current job; interrupt again to abort.

The platform password is read from the LINKEDIN_PASSWORD environment variable.`,
	RunE: runApply,
}

func init() {
	f := applyCmd.Flags()
	f.StringVarP(&applyFlags.Title, "title", "t", "", "Job title to search for")
	f.StringVarP(&applyFlags.Location, "location", "l", "", "Search location")
	f.IntVarP(&applyFlags.Limit, "limit", "n", 0, "Maximum applications (1-100, default 10)")
	f.StringVar(&applyFlags.Caller, "caller", "", "Caller identity used to key the stored session (defaults to --identity)")
	f.StringVarP(&applyFlags.Profile, "profile", "p", "", "Path to candidate profile JSON")
	f.StringVarP(&applyFlags.Resume, "resume", "r", "", "Resume path or s3:// URL (overrides the profile's resume_path)")
	f.StringVar(&applyFlags.Identity, "identity", "", "Platform login email")
	f.BoolVar(&applyFlags.Headless, "headless", false, "Run Chrome without a window")
	f.StringVar(&applyFlags.ChromePath, "chrome", "", "Chrome executable path")
	f.StringVar(&applyFlags.SessionDir, "session-dir", "", "Directory for stored sessions when no database is configured")
	f.BoolVar(&applyFlags.NoPacing, "no-pacing", false, "Disable human-like delays")
	f.StringVar(&applyFlags.Provider, "provider", "", "LLM provider: gemini or openai")
	f.StringVar(&applyFlags.APIKey, "api-key", "", "LLM API key (defaults to GEMINI_API_KEY or OPENAI_API_KEY)")
	f.StringVar(&applyFlags.DatabaseURL, "db-url", "", "PostgreSQL URL for sessions and history (optional, defaults to DATABASE_URL)")
	f.StringVar(&applyFlags.S3Region, "s3-region", "", "AWS region for s3:// resumes")
	rootCmd.AddCommand(applyCmd)
}

// applyInputs checks the settings a one-shot run needs and resolves the caller.
func applyInputs(cfg config.Config) (types.RunRequest, string, error) {
	req := types.RunRequest{Title: cfg.Title, Location: cfg.Location, Limit: cfg.Limit}
	if err := req.Validate(); err != nil {
		return req, "", fmt.Errorf("--title, --location and a limit of 1-100 are required: %w", err)
	}
	if cfg.Profile == "" {
		return req, "", errors.New("--profile is required")
	}
	if cfg.Identity == "" {
		return req, "", errors.New("--identity is required")
	}
	caller := cfg.Caller
	if caller == "" {
		caller = cfg.Identity
	}
	return req, caller, nil
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd, applyFlags)
	if err != nil {
		return err
	}
	req, caller, err := applyInputs(cfg)
	if err != nil {
		return err
	}
	secret := os.Getenv(secretEnv)
	if secret == "" {
		return fmt.Errorf("%s environment variable is required", secretEnv)
	}

	profile, err := config.LoadProfile(cfg.Profile)
	if err != nil {
		return err
	}
	if cfg.Resume != "" {
		profile.ResumePath = cfg.Resume
	}

	log := logging.New(cfg.Verbose).WithField("caller", caller)
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stop := interruptible(ctx, cancel, log)

	answers, closeOracle, err := newOracle(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeOracle()

	resumes, err := newResumeLoader(cfg, log)
	if err != nil {
		return err
	}

	var (
		tokens  login.TokenStore
		history automation.HistoryWriter
	)
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		tokens, history = database.Tokens(), database
	} else {
		files, err := login.NewFileStore(cfg.SessionDir)
		if err != nil {
			return err
		}
		tokens = files
	}

	live, authCfg := liveSettings(cfg)
	manager := login.NewManager(tokens, authCfg, log)
	orch := automation.New(automation.LiveDeps(live, manager, resumes, answers, history, log), log)

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintSearch(req, caller)

	result, runErr := orch.Run(ctx, automation.Request{
		Caller:      caller,
		Search:      req,
		Profile:     profile,
		Credentials: types.NewCredentials(cfg.Identity, secret),
		Stop:        stop,
	}, printer.Sink())

	printer.PrintRunSummary(result, runErr)
	return runErr
}

// interruptible closes the returned channel on the first interrupt and
// cancels ctx on the second.
func interruptible(ctx context.Context, cancel context.CancelFunc, log logrus.FieldLogger) <-chan struct{} {
	stop := make(chan struct{})
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			log.Warn("Stopping after the current job; interrupt again to abort")
			close(stop)
		case <-ctx.Done():
			return
		}
		select {
		case <-sigs:
			log.Warn("Aborting run")
			cancel()
		case <-ctx.Done():
		}
	}()
	return stop
}
