package backend

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"parley/internal/transcript"
)

// GeminiClient implements Backend for the Google Gemini API via the genai
// SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Logger      *zap.Logger
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxTokens:   2000,
	}
}

// NewGeminiClient creates a Gemini client with default config.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	return NewGeminiClientWithConfig(ctx, DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a Gemini client with custom config.
func NewGeminiClientWithConfig(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, newError("gemini", "API key not configured", nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.APIKey})
	if err != nil {
		return nil, newError("gemini", "failed to create client", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := config.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      logger,
	}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

// SetModel changes the model used for completions.
func (c *GeminiClient) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string { return c.model }

// buildContents maps transcript history plus the prompt to genai contents.
// System turns become the system instruction; assistant turns map to the
// model role.
func (c *GeminiClient) buildContents(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.temperature)),
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.maxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		switch turn.Role {
		case transcript.RoleSystem:
			system = append(system, turn.Content)
		case transcript.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		}
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	return contents, cfg
}

// Generate sends a single atomic request.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	contents, cfg := c.buildContents(req)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", newError("gemini", "generate failed", err)
	}
	text := resp.Text()
	if text == "" {
		return "", newError("gemini", "no completion returned", nil)
	}
	c.logger.Debug("completion finished",
		zap.String("provider", "gemini"),
		zap.String("model", c.model),
		zap.Int("response_len", len(text)))
	return strings.TrimSpace(text), nil
}

// GenerateStream sends a streaming request, draining the SDK's response
// iterator into the channel pair. Chunks without candidate text are skipped.
func (c *GeminiClient) GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		contents, cfg := c.buildContents(req)
		for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, cfg) {
			if err != nil {
				errorChan <- newError("gemini", "stream error", err)
				return
			}
			text := chunk.Text()
			if text == "" {
				continue
			}
			select {
			case contentChan <- text:
			case <-ctx.Done():
				errorChan <- newError("gemini", "stream cancelled", ctx.Err())
				return
			}
		}
	}()

	return contentChan, errorChan
}
