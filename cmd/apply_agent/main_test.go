package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/config"
	"github.com/jonathan/easy-apply-agent/internal/llm"
	"github.com/jonathan/easy-apply-agent/internal/server"
)

// TestMain loads .env if available
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	t.Setenv("JWT_ISSUER", "")

	out, err := execute(t, "token", "--caller", "alice")
	require.NoError(t, err)

	cfg, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(cfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Caller)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, "token", "--caller", "bob")
	assert.Error(t, err)
}

func TestProfileKeygen(t *testing.T) {
	out, err := execute(t, "profile", "keygen")
	require.NoError(t, err)

	_, err = config.NewSealer(strings.TrimSpace(out))
	assert.NoError(t, err)
}

func TestApplyInputs(t *testing.T) {
	base := config.Config{Title: "Go Engineer", Location: "Berlin", Limit: 3, Profile: "p.json", Identity: "me@example.com"}

	req, caller, err := applyInputs(base)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", caller, "caller defaults to the login identity")
	assert.Equal(t, 3, req.Limit)

	withCaller := base
	withCaller.Caller = "alice"
	_, caller, err = applyInputs(withCaller)
	require.NoError(t, err)
	assert.Equal(t, "alice", caller)

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "no title", mutate: func(c *config.Config) { c.Title = "" }},
		{name: "no location", mutate: func(c *config.Config) { c.Location = "" }},
		{name: "limit too large", mutate: func(c *config.Config) { c.Limit = 101 }},
		{name: "no profile", mutate: func(c *config.Config) { c.Profile = "" }},
		{name: "no identity", mutate: func(c *config.Config) { c.Identity = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, _, err := applyInputs(cfg)
			assert.Error(t, err)
		})
	}
}

func TestAPIKeyFor(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	assert.Equal(t, "explicit", apiKeyFor(config.Config{APIKey: "explicit", Provider: "openai"}))
	assert.Equal(t, "openai-key", apiKeyFor(config.Config{Provider: "OpenAI"}))
	assert.Equal(t, "gemini-key", apiKeyFor(config.Config{Provider: "gemini"}))
	assert.Equal(t, "gemini-key", apiKeyFor(config.Config{}))
}

func TestLLMConfig_CarriesSystemInstruction(t *testing.T) {
	for _, provider := range []string{"gemini", "OpenAI", ""} {
		t.Run(provider, func(t *testing.T) {
			cfg, err := llmConfig(config.Config{Provider: provider})
			require.NoError(t, err)
			assert.Equal(t, "You are a CV analysis expert. Answer accurately and concisely.", cfg.SystemInstruction)
			assert.NotEmpty(t, cfg.GetModel(llm.TierLite))
		})
	}

	_, err := llmConfig(config.Config{Provider: "claude"})
	assert.Error(t, err)
}

func TestLiveSettings(t *testing.T) {
	live, auth := liveSettings(config.Config{Headless: true, ChromePath: "/opt/chrome"})
	assert.True(t, live.Browser.Headless)
	assert.Equal(t, "/opt/chrome", live.Browser.ExecPath)
	assert.Equal(t, browser.DefaultPacing(), live.Apply.Pacing)
	assert.Equal(t, browser.DefaultPacing(), auth.Pacing)

	live, auth = liveSettings(config.Config{NoPacing: true})
	assert.Equal(t, browser.NoPacing(), live.Browser.Pacing)
	assert.Equal(t, browser.NoPacing(), live.Apply.Pacing)
	assert.Equal(t, browser.NoPacing(), auth.Pacing)
	assert.Zero(t, live.Discovery.LoadWait)
}

func TestLoadSettings_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"title": "Backend Engineer",
		"location": "Remote",
		"limit": 7,
		"headless": true,
		"llm_provider": "openai"
	}`), 0o600))

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })
	t.Setenv("DATABASE_URL", "")

	cmd := &cobra.Command{Use: "test"}
	var flags config.Config
	cmd.Flags().StringVar(&flags.Title, "title", "", "")
	cmd.Flags().BoolVar(&flags.Headless, "headless", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--title", "Go Engineer"}))

	cfg, err := loadSettings(cmd, flags)
	require.NoError(t, err)
	assert.Equal(t, "Go Engineer", cfg.Title)
	assert.Equal(t, "Remote", cfg.Location)
	assert.Equal(t, 7, cfg.Limit)
	assert.True(t, cfg.Headless, "file value kept when the flag is unset")
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, config.DefaultSessionDir, cfg.SessionDir)

	require.NoError(t, cmd.ParseFlags([]string{"--headless=false"}))
	flags.Headless = false
	cfg, err = loadSettings(cmd, flags)
	require.NoError(t, err)
	assert.False(t, cfg.Headless, "explicit flag wins")
}

func TestLoadSettings_InvalidFile(t *testing.T) {
	old := configPath
	configPath = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { configPath = old })

	_, err := loadSettings(&cobra.Command{Use: "test"}, config.Config{})
	assert.Error(t, err)
}
