package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Provider identifies a backend implementation.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Providers lists the recognized provider names.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic, ProviderGemini}
}

// Options carries the provider-independent configuration for constructing a
// backend. Zero Temperature/MaxTokens fall back to provider defaults.
type Options struct {
	Provider    Provider
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Logger      *zap.Logger
}

// New constructs the named backend. Unknown providers are configuration
// errors reported at startup, not runtime lookup failures.
func New(ctx context.Context, opts Options) (Backend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("provider %s requires an API key", opts.Provider)
	}

	switch opts.Provider {
	case ProviderOpenAI:
		cfg := DefaultOpenAIConfig(opts.APIKey)
		applyOpenAIOverrides(&cfg, opts)
		return NewOpenAIClientWithConfig(cfg), nil

	case ProviderDeepSeek:
		cfg := DefaultDeepSeekConfig(opts.APIKey)
		applyOpenAIOverrides(&cfg, opts)
		return NewDeepSeekClientWithConfig(cfg), nil

	case ProviderAnthropic:
		cfg := DefaultAnthropicConfig(opts.APIKey)
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Temperature > 0 {
			cfg.Temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			cfg.MaxTokens = opts.MaxTokens
		}
		cfg.Logger = opts.Logger
		return NewAnthropicClientWithConfig(cfg), nil

	case ProviderGemini:
		cfg := DefaultGeminiConfig(opts.APIKey)
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Temperature > 0 {
			cfg.Temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			cfg.MaxTokens = opts.MaxTokens
		}
		cfg.Logger = opts.Logger
		return NewGeminiClientWithConfig(ctx, cfg)

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: openai, deepseek, anthropic, gemini)", opts.Provider)
	}
}

func applyOpenAIOverrides(cfg *OpenAIConfig, opts Options) {
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Temperature > 0 {
		cfg.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		cfg.MaxTokens = opts.MaxTokens
	}
	cfg.Logger = opts.Logger
}
