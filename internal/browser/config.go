package browser

import (
	"math/rand/v2"
	"time"
)

// DefaultActionTimeout bounds every single driver round trip.
const DefaultActionTimeout = 15 * time.Second

// DefaultUserAgents is the fixed list a launch picks its client identity from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// Config controls how a browser is launched.
type Config struct {
	Headless      bool          `json:"headless"`
	ExecPath      string        `json:"exec_path,omitempty"`
	UserAgents    []string      `json:"user_agents,omitempty"`
	ActionTimeout time.Duration `json:"action_timeout,omitempty"`
	Pacing        Pacing        `json:"pacing"`
}

// DefaultConfig returns a headless configuration with live pacing.
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		UserAgents:    DefaultUserAgents,
		ActionTimeout: DefaultActionTimeout,
		Pacing:        DefaultPacing(),
	}
}

// UserAgent picks one identity string at random.
func (c Config) UserAgent() string {
	agents := c.UserAgents
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return agents[rand.IntN(len(agents))]
}

func (c Config) actionTimeout() time.Duration {
	if c.ActionTimeout <= 0 {
		return DefaultActionTimeout
	}
	return c.ActionTimeout
}
