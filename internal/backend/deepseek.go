package backend

// DeepSeek speaks the OpenAI chat-completions wire protocol at a different
// endpoint, so its client is the OpenAI client with DeepSeek defaults.

// DefaultDeepSeekConfig returns sensible defaults for the DeepSeek API.
func DefaultDeepSeekConfig(apiKey string) OpenAIConfig {
	cfg := DefaultOpenAIConfig(apiKey)
	cfg.BaseURL = "https://api.deepseek.com/v1"
	cfg.Model = "deepseek-chat"
	return cfg
}

// NewDeepSeekClient creates a DeepSeek client with default config.
func NewDeepSeekClient(apiKey string) *OpenAIClient {
	return NewDeepSeekClientWithConfig(DefaultDeepSeekConfig(apiKey))
}

// NewDeepSeekClientWithConfig creates a DeepSeek client with custom config.
func NewDeepSeekClientWithConfig(config OpenAIConfig) *OpenAIClient {
	return newOpenAICompatible("deepseek", config)
}
