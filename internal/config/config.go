package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Analysis  AnalysisConfig            `mapstructure:"analysis"`
	Client    ClientConfig              `mapstructure:"client"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as OpenAI or Ollama.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`     // openai, openrouter, ollama, vllm, lmstudio, custom
	BaseURL string        `mapstructure:"base_url"` // API base URL
	APIKey  string        `mapstructure:"api_key"`  // optional API key
	Timeout time.Duration `mapstructure:"timeout"`  // request timeout
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
}

// AnalysisConfig selects models for the server-side search-rank pipeline.
type AnalysisConfig struct {
	KeywordsModel  string        `mapstructure:"keywords_model"` // empty = default model
	RankingModel   string        `mapstructure:"ranking_model"`  // empty = default model
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	MaxCompetitors int           `mapstructure:"max_competitors"`
}

// ClientConfig controls how the streaming search client reaches the backend.
type ClientConfig struct {
	APIURL      string        `mapstructure:"api_url"`
	Transport   string        `mapstructure:"transport"` // sse or connect
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	MetricsEnabled bool     `mapstructure:"metrics_enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // browser origins allowed to open the stream
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: SEARCHRANK_, dots replaced with underscores).
// Without an explicit path a missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SEARCHRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("client.api_url", "http://localhost:8000")
	v.SetDefault("client.transport", "sse")
	v.SetDefault("client.dial_timeout", 10*time.Second)

	v.SetDefault("analysis.keywords_model", "")
	v.SetDefault("analysis.ranking_model", "")
	v.SetDefault("analysis.stage_timeout", 90*time.Second)
	v.SetDefault("analysis.max_competitors", 5)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.metrics_enabled", true)
}

// Validate performs sanity checks needed by every binary.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Client.APIURL) == "" {
		return errors.New("client.api_url must be set")
	}
	u, err := url.Parse(c.Client.APIURL)
	if err != nil {
		return fmt.Errorf("client.api_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client.api_url must use http or https, got %q", c.Client.APIURL)
	}

	switch strings.ToLower(strings.TrimSpace(c.Client.Transport)) {
	case "", "sse", "connect":
	default:
		return fmt.Errorf("client.transport must be one of sse or connect, got %q", c.Client.Transport)
	}

	if c.Client.DialTimeout < 0 {
		return errors.New("client.dial_timeout must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of console or json, got %q", c.Logging.Format)
	}

	return nil
}

// ValidateBackend checks the sections only the daemon needs: providers, models and analysis.
func (c *Config) ValidateBackend() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	for _, modelID := range []string{c.Analysis.KeywordsModel, c.Analysis.RankingModel} {
		if strings.TrimSpace(modelID) == "" {
			continue
		}
		if _, ok := c.Models[modelID]; !ok {
			return fmt.Errorf("analysis references unknown model %q", modelID)
		}
	}

	if c.Analysis.StageTimeout <= 0 {
		return errors.New("analysis.stage_timeout must be > 0")
	}
	if c.Analysis.MaxCompetitors < 0 {
		return errors.New("analysis.max_competitors must be >= 0")
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	return nil
}
