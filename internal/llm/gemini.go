package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client for Google Gemini. Each configured model is
// prepared once with the answer temperature and system instruction.
type GeminiClient struct {
	client *genai.Client
	models map[string]*genai.GenerativeModel
	config *Config
}

// NewGeminiClient creates a client with a prepared model for every tier.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultGeminiConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	models := make(map[string]*genai.GenerativeModel, len(config.Models))
	for _, name := range config.Models {
		if _, ok := models[name]; ok {
			continue
		}
		m := client.GenerativeModel(name)
		m.SetTemperature(0.1)
		m.SetCandidateCount(1)
		if config.SystemInstruction != "" {
			m.SystemInstruction = genai.NewUserContent(genai.Text(config.SystemInstruction))
		}
		models[name] = m
	}

	return &GeminiClient{client: client, models: models, config: config}, nil
}

// GenerateContent answers prompt with the model configured for tier.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	model, ok := c.models[modelName]
	if !ok {
		return "", fmt.Errorf("model %q is not configured", modelName)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return answerText(resp)
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// answerText joins the text parts of the first candidate.
func answerText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return sb.String(), nil
}
