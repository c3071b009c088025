package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OpenAIClient implements Backend for the OpenAI chat-completions API and
// for any provider speaking the same wire protocol.
type OpenAIClient struct {
	provider    string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

// OpenAIConfig holds configuration for an OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   2000,
		Timeout:     120 * time.Second,
	}
}

// NewOpenAIClient creates an OpenAI client with default config.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates an OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	return newOpenAICompatible("openai", config)
}

func newOpenAICompatible(provider string, config OpenAIConfig) *OpenAIClient {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		provider:    provider,
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (c *OpenAIClient) Name() string { return c.provider }

// SetModel changes the model used for completions.
func (c *OpenAIClient) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *OpenAIClient) GetModel() string { return c.model }

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta,omitempty"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) buildMessages(req Request) []wireMessage {
	messages := historyMessages(req.History)
	return append(messages, wireMessage{Role: "user", Content: req.Prompt})
}

// Generate sends a single atomic completion request. Rate-limit responses
// are retried with exponential backoff; all other failures surface as
// *Error immediately.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", newError(c.provider, "API key not configured", nil)
	}

	reqBody := openAIRequest{
		Model:       c.model,
		Messages:    c.buildMessages(req),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", newError(c.provider, "failed to marshal request", err)
	}

	maxRetries := 3
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return "", newError(c.provider, "request cancelled", ctx.Err())
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", newError(c.provider, "failed to create request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", newError(c.provider,
				fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
		}

		var parsed openAIResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", newError(c.provider, "failed to parse response", err)
		}
		if parsed.Error != nil {
			return "", newError(c.provider, "API error: "+parsed.Error.Message, nil)
		}
		if len(parsed.Choices) == 0 {
			return "", newError(c.provider, "no completion returned", nil)
		}

		c.logger.Debug("completion finished",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.Int("response_len", len(parsed.Choices[0].Message.Content)))
		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	}

	return "", newError(c.provider, "max retries exceeded", lastErr)
}

// GenerateStream sends a streaming completion request and returns channels
// of incremental content deltas. Malformed SSE chunks are skipped rather
// than aborting the stream.
func (c *OpenAIClient) GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		if c.apiKey == "" {
			errorChan <- newError(c.provider, "API key not configured", nil)
			return
		}

		reqBody := openAIRequest{
			Model:       c.model,
			Messages:    c.buildMessages(req),
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Stream:      true,
		}
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			errorChan <- newError(c.provider, "failed to marshal request", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			errorChan <- newError(c.provider, "failed to create request", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errorChan <- newError(c.provider, "request failed", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			errorChan <- newError(c.provider,
				fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				return
			}

			var chunk openAIResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Malformed fragment: skip, keep the stream alive.
				continue
			}
			if chunk.Error != nil {
				errorChan <- newError(c.provider, "API error: "+chunk.Error.Message, nil)
				return
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta != nil {
				delta := chunk.Choices[0].Delta.Content
				if delta == "" {
					continue
				}
				select {
				case contentChan <- delta:
				case <-ctx.Done():
					errorChan <- newError(c.provider, "stream cancelled", ctx.Err())
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errorChan <- newError(c.provider, "stream error", err)
		}
	}()

	return contentChan, errorChan
}
