package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIClient implements Client for OpenAI chat models through langchaingo.
// One model handle per configured tier is built up front, so concurrent runs
// only ever read the handle map.
type OpenAIClient struct {
	models map[string]llms.Model
	config *Config
}

// NewOpenAIClient creates a client with a handle for every configured model.
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultOpenAIConfig()
	}

	models := make(map[string]llms.Model, len(config.Models))
	for _, name := range config.Models {
		if _, ok := models[name]; ok {
			continue
		}
		m, err := openai.New(openai.WithToken(apiKey), openai.WithModel(name))
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client for %s: %w", name, err)
		}
		models[name] = m
	}
	return &OpenAIClient{models: models, config: config}, nil
}

func (c *OpenAIClient) model(name string) (llms.Model, error) {
	m, ok := c.models[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not configured", name)
	}
	return m, nil
}

// messages builds the chat request, led by the system instruction when set.
func (c *OpenAIClient) messages(prompt string) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, 2)
	if c.config.SystemInstruction != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, c.config.SystemInstruction))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
}

// GenerateContent answers prompt with the model configured for tier.
func (c *OpenAIClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	m, err := c.model(modelName)
	if err != nil {
		return "", err
	}

	resp, err := m.GenerateContent(ctx, c.messages(prompt), llms.WithTemperature(0.1))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	out := strings.TrimSpace(resp.Choices[0].Content)
	if out == "" {
		return "", fmt.Errorf("no content in response")
	}
	return out, nil
}

// GetModel returns the model name for a tier
func (c *OpenAIClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP transport holds no resources.
func (c *OpenAIClient) Close() error {
	return nil
}
