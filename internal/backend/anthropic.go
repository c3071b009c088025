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

// AnthropicClient implements Backend for the Anthropic messages API.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.anthropic.com/v1",
		Model:       "claude-sonnet-4-20250514",
		Temperature: 0.7,
		MaxTokens:   2000,
		Timeout:     120 * time.Second,
	}
}

// NewAnthropicClient creates an Anthropic client with default config.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return NewAnthropicClientWithConfig(DefaultAnthropicConfig(apiKey))
}

// NewAnthropicClientWithConfig creates an Anthropic client with custom config.
func NewAnthropicClientWithConfig(config AnthropicConfig) *AnthropicClient {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &AnthropicClient{
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

// SetModel changes the model used for completions.
func (c *AnthropicClient) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *AnthropicClient) GetModel() string { return c.model }

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// buildMessages maps transcript history to Anthropic messages. System turns
// are folded into the system field since the messages array only accepts
// user and assistant roles.
func (c *AnthropicClient) buildMessages(req Request) (string, []wireMessage) {
	var system []string
	messages := make([]wireMessage, 0, len(req.History)+1)
	for _, turn := range req.History {
		if string(turn.Role) == "system" {
			system = append(system, turn.Content)
			continue
		}
		messages = append(messages, wireMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, wireMessage{Role: "user", Content: req.Prompt})
	return strings.Join(system, "\n"), messages
}

// Generate sends a single atomic messages request.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", newError("anthropic", "API key not configured", nil)
	}

	system, messages := c.buildMessages(req)
	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      system,
		Messages:    messages,
		Temperature: c.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", newError("anthropic", "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", newError("anthropic", "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", newError("anthropic", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError("anthropic", "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError("anthropic",
			fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newError("anthropic", "failed to parse response", err)
	}
	if parsed.Error != nil {
		return "", newError("anthropic", "API error: "+parsed.Error.Message, nil)
	}
	if len(parsed.Content) == 0 {
		return "", newError("anthropic", "no completion returned", nil)
	}

	var result strings.Builder
	for _, content := range parsed.Content {
		if content.Type == "text" {
			result.WriteString(content.Text)
		}
	}
	c.logger.Debug("completion finished",
		zap.String("provider", "anthropic"),
		zap.String("model", c.model),
		zap.Int("response_len", result.Len()))
	return strings.TrimSpace(result.String()), nil
}

// GenerateStream sends a streaming messages request. Only
// content_block_delta text events contribute fragments; malformed events
// are skipped.
func (c *AnthropicClient) GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		if c.apiKey == "" {
			errorChan <- newError("anthropic", "API key not configured", nil)
			return
		}

		system, messages := c.buildMessages(req)
		reqBody := anthropicRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			System:      system,
			Messages:    messages,
			Temperature: c.temperature,
			Stream:      true,
		}
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			errorChan <- newError("anthropic", "failed to marshal request", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			errorChan <- newError("anthropic", "failed to create request", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errorChan <- newError("anthropic", "request failed", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			errorChan <- newError("anthropic",
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

			var evt struct {
				Type  string `json:"type"`
				Delta *struct {
					Type string `json:"type"`
					Text string `json:"text,omitempty"`
				} `json:"delta,omitempty"`
				Error *struct {
					Type    string `json:"type"`
					Message string `json:"message"`
				} `json:"error,omitempty"`
			}
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				continue
			}
			switch evt.Type {
			case "error":
				if evt.Error != nil {
					errorChan <- newError("anthropic", "API error: "+evt.Error.Message, nil)
					return
				}
			case "message_stop":
				return
			case "content_block_delta":
				if evt.Delta == nil || evt.Delta.Text == "" {
					continue
				}
				select {
				case contentChan <- evt.Delta.Text:
				case <-ctx.Done():
					errorChan <- newError("anthropic", "stream cancelled", ctx.Err())
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errorChan <- newError("anthropic", "stream error", err)
		}
	}()

	return contentChan, errorChan
}
