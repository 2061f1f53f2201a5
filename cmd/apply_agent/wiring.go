package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonathan/easy-apply-agent/internal/apply"
	"github.com/jonathan/easy-apply-agent/internal/automation"
	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/config"
	"github.com/jonathan/easy-apply-agent/internal/discovery"
	"github.com/jonathan/easy-apply-agent/internal/llm"
	"github.com/jonathan/easy-apply-agent/internal/login"
	"github.com/jonathan/easy-apply-agent/internal/oracle"
	"github.com/jonathan/easy-apply-agent/internal/resume"
)

// loadSettings merges the --config file under the values in flags.
// Booleans set on the command line win; otherwise the file value is kept.
func loadSettings(cmd *cobra.Command, flags config.Config) (config.Config, error) {
	file := config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		file = *loaded
	}

	merged := flags.MergeWithDefaults(file)
	merged.Headless = pickBool(cmd, "headless", flags.Headless, file.Headless)
	merged.NoPacing = pickBool(cmd, "no-pacing", flags.NoPacing, file.NoPacing)
	merged.Verbose = pickBool(cmd, "verbose", verbose, file.Verbose)
	if merged.DatabaseURL == "" {
		merged.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

func pickBool(cmd *cobra.Command, name string, flag, file bool) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return flag
	}
	return file || flag
}

// apiKeyFor returns the configured key or the provider's environment variable.
func apiKeyFor(cfg config.Config) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	if strings.EqualFold(cfg.Provider, string(llm.ProviderOpenAI)) {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv("GEMINI_API_KEY")
}

// newOracle builds the answer oracle. Without an API key every answer is a
// fallback, which still lets forms be submitted.
func newOracle(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*oracle.Oracle, func(), error) {
	key := apiKeyFor(cfg)
	if key == "" {
		log.Warn("No LLM API key configured; answers will use defaults")
		return oracle.New(nil, log), func() {}, nil
	}

	llmCfg, err := llmConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := llm.NewClient(ctx, llmCfg, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("Failed to close LLM client")
		}
	}
	return oracle.New(client, log), closeFn, nil
}

// llmConfig returns the provider's model tiers with the oracle's system instruction.
func llmConfig(cfg config.Config) (*llm.Config, error) {
	llmCfg, err := llm.ConfigFor(llm.Provider(strings.ToLower(cfg.Provider)))
	if err != nil {
		return nil, err
	}
	system, err := oracle.SystemInstruction()
	if err != nil {
		return nil, fmt.Errorf("failed to load oracle instruction: %w", err)
	}
	llmCfg.SystemInstruction = system
	return llmCfg, nil
}

// newResumeLoader returns a loader that can also fetch s3:// resumes when a region is set.
func newResumeLoader(cfg config.Config, log logrus.FieldLogger) (*resume.Loader, error) {
	if cfg.S3Region == "" {
		return resume.NewLoader(nil, log), nil
	}
	client, err := resume.NewS3Client(cfg.S3Region)
	if err != nil {
		return nil, err
	}
	return resume.NewLoader(client, log), nil
}

// liveSettings derives browser, discovery, apply and login settings from cfg.
func liveSettings(cfg config.Config) (automation.LiveConfig, login.Config) {
	live := automation.LiveConfig{
		Browser:   browser.DefaultConfig(),
		Discovery: discovery.DefaultConfig(),
		Apply:     apply.DefaultConfig(),
	}
	live.Browser.Headless = cfg.Headless
	live.Browser.ExecPath = cfg.ChromePath
	auth := login.DefaultConfig()

	if cfg.NoPacing {
		live.Browser.Pacing = browser.NoPacing()
		live.Discovery = discovery.Config{}
		live.Apply.Pacing = browser.NoPacing()
		auth.Pacing = browser.NoPacing()
	}
	return live, auth
}
