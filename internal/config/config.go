// Package config loads and validates parley configuration from
// .parley/config.yaml, with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all parley configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM backend configuration
	LLM LLMConfig `yaml:"llm"`

	// Transform plugins, applied in priority order
	Plugins []PluginConfig `yaml:"plugins"`

	// Output sinks
	Sinks SinksConfig `yaml:"sinks"`

	// Conversation persistence
	Conversations ConversationsConfig `yaml:"conversations"`

	// Session history storage
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, deepseek, anthropic, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// PluginConfig names a transform plugin and its options.
type PluginConfig struct {
	Name    string            `yaml:"name"`
	Options map[string]string `yaml:"options"`
}

// SinksConfig configures the output sinks.
type SinksConfig struct {
	// Default sink name; empty keeps the first registered sink.
	Default string `yaml:"default"`

	// Active lists the sinks every turn is delivered to. Empty means the
	// default sink only.
	Active []string `yaml:"active"`

	Terminal TerminalSinkConfig `yaml:"terminal"`
	File     FileSinkConfig     `yaml:"file"`
}

// ActiveSinks returns the sink names each turn should resolve. With no
// explicit list, every enabled sink is active.
func (s SinksConfig) ActiveSinks() []string {
	if len(s.Active) > 0 {
		return s.Active
	}
	var names []string
	if s.Terminal.Enabled {
		names = append(names, "terminal")
	}
	if s.File.Enabled {
		names = append(names, "file")
	}
	return names
}

// TerminalSinkConfig configures the interactive terminal sink.
type TerminalSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

// FileSinkConfig configures the append-only file sink.
type FileSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ConversationsConfig configures transcript persistence.
type ConversationsConfig struct {
	SaveDir string `yaml:"save_dir"`
}

// HistoryConfig configures the SQLite session history store.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
	Limit        int    `yaml:"limit"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "parley",
		Version: "0.1.0",

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   2000,
			Timeout:     "120s",
		},

		Sinks: SinksConfig{
			Terminal: TerminalSinkConfig{Enabled: true},
			File: FileSinkConfig{
				Path: filepath.Join(".parley", "output.log"),
			},
		},

		Conversations: ConversationsConfig{
			SaveDir: "conversations",
		},

		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(".parley", "history.db"),
			Limit:        50,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "parley.log",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error; defaults plus environment overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Provider keys
// are checked in order and the last one set wins, so a GEMINI_API_KEY in
// the environment beats an ambient DEEPSEEK_API_KEY.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "deepseek"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	// PARLEY_API_KEY overrides the key without touching the provider.
	if key := os.Getenv("PARLEY_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if provider := os.Getenv("PARLEY_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		c.LLM.Model = model
	}

	// Storage paths from environment
	if path := os.Getenv("PARLEY_DB"); path != "" {
		c.History.DatabasePath = path
	}
	if dir := os.Getenv("PARLEY_SAVE_DIR"); dir != "" {
		c.Conversations.SaveDir = dir
	}
}

// GetLLMTimeout returns the backend timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// DefaultConfigPath returns the default path to .parley/config.yaml.
func DefaultConfigPath() string {
	root, err := FindWorkspaceRoot()
	if err != nil {
		return filepath.Join(".parley", "config.yaml")
	}
	return filepath.Join(root, ".parley", "config.yaml")
}

// FindWorkspaceRoot walks upward looking for a .parley directory. If none
// is found, the starting working directory is returned.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".parley")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}
