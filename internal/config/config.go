// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Defaults applied by MergeWithDefaults when neither the file nor a flag sets a value.
const (
	DefaultLimit       = 10
	DefaultProvider    = "gemini"
	DefaultMaxBrowsers = 2
	DefaultSessionDir  = ".sessions"
	DefaultListenAddr  = ":8080"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	// Search
	Title    string `json:"title,omitempty"`    // Job title to search for
	Location string `json:"location,omitempty"` // Search location
	Limit    int    `json:"limit,omitempty"`    // Maximum applications per run

	// Candidate
	Caller   string `json:"caller,omitempty"`   // Caller identity used to key stored sessions
	Profile  string `json:"profile,omitempty"`  // Path to candidate profile JSON
	Resume   string `json:"resume,omitempty"`   // Overrides the profile's resume_path
	Identity string `json:"identity,omitempty"` // Platform login email; the secret comes from LINKEDIN_PASSWORD

	// Platform
	Headless   bool   `json:"headless,omitempty"`    // Run Chrome without a window
	ChromePath string `json:"chrome_path,omitempty"` // Chrome executable; empty uses the default lookup
	SessionDir string `json:"session_dir,omitempty"` // Directory for file-backed session tokens
	NoPacing   bool   `json:"no_pacing,omitempty"`   // Disable human-like delays

	// Runtime
	Provider    string `json:"llm_provider,omitempty"` // gemini or openai
	APIKey      string `json:"api_key,omitempty"`      // LLM API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	S3Region    string `json:"s3_region,omitempty"`    // Region for s3:// resume paths
	MaxBrowsers int    `json:"max_browsers,omitempty"` // Concurrent browsers allowed by the server
	ListenAddr  string `json:"listen_addr,omitempty"`  // HTTP listen address
	Verbose     bool   `json:"verbose,omitempty"`      // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required fields are checked by the command that needs them.
func (c *Config) Validate() error {
	if c.Limit < 0 || c.Limit > 100 {
		return fmt.Errorf("config error: 'limit' must be between 1 and 100, got %d", c.Limit)
	}
	if c.MaxBrowsers < 0 {
		return fmt.Errorf("config error: 'max_browsers' must be non-negative")
	}

	switch strings.ToLower(c.Provider) {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("config error: unknown llm_provider %q (want gemini or openai)", c.Provider)
	}

	if c.Profile != "" {
		if _, err := os.Stat(c.Profile); os.IsNotExist(err) {
			return fmt.Errorf("config error: profile file not found: %s", c.Profile)
		}
	}
	if c.Resume != "" && !strings.HasPrefix(c.Resume, "s3://") {
		if _, err := os.Stat(c.Resume); os.IsNotExist(err) {
			return fmt.Errorf("config error: resume file not found: %s", c.Resume)
		}
	}
	if strings.HasPrefix(c.Resume, "s3://") && c.S3Region == "" {
		return fmt.Errorf("config error: 's3_region' is required for s3:// resumes")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Title == "" {
		result.Title = defaults.Title
	}
	if result.Location == "" {
		result.Location = defaults.Location
	}
	if result.Caller == "" {
		result.Caller = defaults.Caller
	}
	if result.Profile == "" {
		result.Profile = defaults.Profile
	}
	if result.Resume == "" {
		result.Resume = defaults.Resume
	}
	if result.Identity == "" {
		result.Identity = defaults.Identity
	}
	if result.ChromePath == "" {
		result.ChromePath = defaults.ChromePath
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.S3Region == "" {
		result.S3Region = defaults.S3Region
	}

	if result.SessionDir == "" {
		result.SessionDir = firstNonEmpty(defaults.SessionDir, DefaultSessionDir)
	}
	if result.Provider == "" {
		result.Provider = firstNonEmpty(defaults.Provider, DefaultProvider)
	}
	if result.ListenAddr == "" {
		result.ListenAddr = firstNonEmpty(defaults.ListenAddr, DefaultListenAddr)
	}

	if result.Limit == 0 {
		result.Limit = firstPositive(defaults.Limit, DefaultLimit)
	}
	if result.MaxBrowsers == 0 {
		result.MaxBrowsers = firstPositive(defaults.MaxBrowsers, DefaultMaxBrowsers)
	}

	// Bools cannot distinguish unset from false, so flags always win.

	return result
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
