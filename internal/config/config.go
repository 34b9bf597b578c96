package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
)

// Global configuration structure.
type Global struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// Conversation and profiling
	HistoryWindow     int `mapstructure:"history_window" yaml:"history_window"`
	CategoryThreshold int `mapstructure:"category_threshold" yaml:"category_threshold"`
	SampleRows        int `mapstructure:"sample_rows" yaml:"sample_rows"`
	MaxRows           int `mapstructure:"max_rows" yaml:"max_rows"`

	// HTTP/Retry configuration
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	HTTPTimeoutSec    int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs  int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs   int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP server
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// ConfigurationError reports a missing or invalid setting. Commands that
// talk to a model fail with it before doing any work.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// providerKeyEnv maps providers to the environment variable their own
// tooling uses for the credential.
var providerKeyEnv = map[string]string{
	ai.ProviderGroq:       "GROQ_API_KEY",
	ai.ProviderOpenRouter: "OPENROUTER_API_KEY",
	ai.ProviderOpenAI:     "OPENAI_API_KEY",
	ai.ProviderGemini:     "GEMINI_API_KEY",
}

// KeyEnv returns the provider-specific credential variable, or "".
func KeyEnv(provider string) string { return providerKeyEnv[ai.NormalizeProvider(provider)] }

// ResolveAPIKey returns the credential for provider: the provider's own env
// variable wins over SHEETWISE_API_KEY and the config file.
func (c *Global) ResolveAPIKey(provider string) string {
	if env := KeyEnv(provider); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(c.APIKey)
}

// RequireCredential resolves the credential for the configured provider and
// returns a ConfigurationError when one is needed but absent.
func (c *Global) RequireCredential(provider string) (string, error) {
	p := ai.NormalizeProvider(provider)
	key := c.ResolveAPIKey(p)
	if key == "" && ai.RequiresKey(p) {
		name := KeyEnv(p)
		if name == "" {
			name = "SHEETWISE_API_KEY"
		}
		return "", &ConfigurationError{Key: name, Reason: fmt.Sprintf("no API key configured for provider %q", p)}
	}
	return key, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Global) Validate() error {
	switch {
	case c.Temperature < 0 || c.Temperature > 2:
		return &ConfigurationError{Key: "temperature", Reason: "must be between 0 and 2"}
	case c.HistoryWindow < 0:
		return &ConfigurationError{Key: "history_window", Reason: "must not be negative"}
	case c.MaxUploadMB <= 0:
		return &ConfigurationError{Key: "max_upload_mb", Reason: "must be positive"}
	}
	return nil
}

func (c *Global) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// RuntimeConfig builds the runtime knobs for the given credential.
func (c *Global) RuntimeConfig(apiKey string) ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      apiKey,
		BaseURL:     c.BaseURL,
		Host:        c.OllamaHost,
	}
}

// Dir returns ~/.sheetwise.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sheetwise"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sheetwise/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Variables already set are left alone and
// missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SHEETWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider", ai.ProviderGroq)
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.1)
	v.SetDefault("history_window", 5)
	v.SetDefault("category_threshold", 20)
	v.SetDefault("sample_rows", 2)
	v.SetDefault("max_rows", 0)
	// HTTP/retry defaults; a single attempt means no automatic retry
	v.SetDefault("request_timeout_sec", 60)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("max_upload_mb", 20)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Provider = ai.NormalizeProvider(strings.TrimSpace(c.Provider))
	if c.Model == "" {
		c.Model = ai.DefaultModel(c.Provider)
	}
	return &c, nil
}
