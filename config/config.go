package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config structure
type Config struct {
	LLMProvider string `json:"llmProvider"` // "OpenAI", "OpenAI-Compatible", "Anthropic"
	APIKey      string `json:"apiKey"`
	BaseURL     string `json:"baseUrl"`
	ModelName   string `json:"modelName"`
	MaxTokens   int    `json:"maxTokens"`

	// Orchestration limits
	MaxIterations    int `json:"maxIterations"`    // tool-calling rounds per question
	QueryRowLimit    int `json:"queryRowLimit"`    // LIMIT appended to unbounded queries
	QueryTimeoutSecs int `json:"queryTimeoutSecs"` // run_query post-execution timeout check

	Language    string `json:"language"`
	DetailedLog bool   `json:"detailedLog"`
	DataDir     string `json:"dataDir"` // platform sqlite store + logs
}

// Default returns a Config with sensible defaults applied.
func Default() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued limit fields. Provider credentials are
// intentionally left empty; the orchestrator reports a configuration error
// when no model client can be built from them.
func (c *Config) ApplyDefaults() {
	if c.LLMProvider == "" {
		c.LLMProvider = "OpenAI"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 10
	}
	if c.QueryRowLimit == 0 {
		c.QueryRowLimit = 1000
	}
	if c.QueryTimeoutSecs == 0 {
		c.QueryTimeoutSecs = 120
	}
	if c.Language == "" {
		c.Language = "English"
	}
}

// Load reads the configuration file at path. A missing file is not an error:
// defaults are returned so a fresh install works without setup.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes the configuration atomically (write-to-temp-then-rename) so a
// crash mid-write never leaves a corrupted file behind.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}
