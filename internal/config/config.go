package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docagent/internal/git"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "config.yaml"

type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	AI         AIConfig         `yaml:"ai"`
	Generation GenerationConfig `yaml:"generation"`
	Git        GitConfig        `yaml:"git"`
	Storage    StorageConfig    `yaml:"storage"`
	Report     ReportConfig     `yaml:"report"`
}

type ProjectConfig struct {
	Root   string `yaml:"root"`
	Name   string `yaml:"name"`
	Output string `yaml:"output"` // generated markdown file
	// AnalysisOutput, when set, receives the endpoints analysis JSON.
	AnalysisOutput string `yaml:"analysis_output"`
}

type AIConfig struct {
	Provider    string        `yaml:"provider"` // groq, openai, gemini
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type GenerationConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Agentic       bool          `yaml:"agentic"`
}

type GitConfig struct {
	AutoCommit    bool   `yaml:"auto_commit"`
	CommitMessage string `yaml:"commit_message"`
	Base          string `yaml:"base"` // compare ref for `changes`; empty means the default branch
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"` // empty disables run history
}

type ReportConfig struct {
	Path        string `yaml:"path"`
	SummaryPath string `yaml:"summary_path"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Root:   ".",
			Name:   "API",
			Output: "docs/API.md",
		},
		AI: AIConfig{
			Provider:    "groq",
			Temperature: 0.3,
			MaxTokens:   3000,
			HTTPTimeout: 90 * time.Second,
		},
		Generation: GenerationConfig{
			Concurrency:   4,
			Timeout:       10 * time.Minute,
			MaxRetries:    3,
			RetryInterval: 2 * time.Second,
		},
		Git: GitConfig{
			CommitMessage: git.DefaultCommitMessage,
		},
		Storage: StorageConfig{
			DBPath: ".docagent/history.db",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if apiKey := os.Getenv("DOCAGENT_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("DOCAGENT_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("DOCAGENT_MODEL"); model != "" {
		cfg.AI.Model = model
	}

	return cfg, nil
}

// ResolvedAPIKey returns the configured key, falling back to the provider's
// conventional environment variable (GROQ_API_KEY and so on).
func (c *Config) ResolvedAPIKey() string {
	if strings.TrimSpace(c.AI.APIKey) != "" {
		return c.AI.APIKey
	}
	switch strings.ToLower(c.AI.Provider) {
	case "", "groq":
		return os.Getenv("GROQ_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// Validate checks values a run cannot start without.
func (c *Config) Validate() error {
	switch strings.ToLower(c.AI.Provider) {
	case "", "groq", "openai", "gemini":
	default:
		return fmt.Errorf("unsupported ai provider: %s", c.AI.Provider)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2, got %v", c.AI.Temperature)
	}
	if c.Generation.Concurrency < 1 {
		return fmt.Errorf("generation.concurrency must be at least 1, got %d", c.Generation.Concurrency)
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries must not be negative")
	}
	if strings.TrimSpace(c.Project.Output) == "" {
		return fmt.Errorf("project.output is required")
	}
	return nil
}
