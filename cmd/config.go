package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sheetwise-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set sheetwise configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "provider: %s\n", cfg.Provider)
		fmt.Fprintf(out, "model: %s\n", cfg.Model)
		fmt.Fprintf(out, "api_key: %s (%s)\n", mask(cfg.ResolveAPIKey(cfg.Provider)), keySource(cfg))
		if cfg.BaseURL != "" {
			fmt.Fprintf(out, "base_url: %s\n", cfg.BaseURL)
		}
		fmt.Fprintf(out, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(out, "history_window: %d\n", cfg.HistoryWindow)
		fmt.Fprintf(out, "category_threshold: %d\n", cfg.CategoryThreshold)
		fmt.Fprintf(out, "sample_rows: %d\n", cfg.SampleRows)
		fmt.Fprintf(out, "max_rows: %d\n", cfg.MaxRows)
		fmt.Fprintf(out, "request_timeout_sec: %d\n", cfg.RequestTimeoutSec)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		fmt.Fprintf(out, "server_addr: %s\n", cfg.ServerAddr)
		fmt.Fprintf(out, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, key, val); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	intVal := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, &cfgpkg.ConfigurationError{Key: key, Reason: fmt.Sprintf("invalid non-negative integer %q", val)}
		}
		return i, nil
	}
	var err error
	switch key {
	case "provider":
		p := ai.NormalizeProvider(val)
		if !slices.Contains(ai.Providers(), p) {
			return &cfgpkg.ConfigurationError{Key: key, Reason: fmt.Sprintf("unknown provider %q", val)}
		}
		if mi, ok := ai.LookupModel(c.Model); ok && mi.Provider != p {
			c.Model = ai.DefaultModel(p)
		}
		c.Provider = p
	case "model":
		c.Model = val
	case "api_key":
		c.APIKey = val
	case "base_url":
		c.BaseURL = val
	case "ollama_host":
		c.OllamaHost = val
	case "server_addr":
		c.ServerAddr = val
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = val
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return &cfgpkg.ConfigurationError{Key: key, Reason: fmt.Sprintf("invalid number %q", val)}
		}
		c.Temperature = f
	case "max_tokens":
		c.MaxTokens, err = intVal()
	case "history_window":
		c.HistoryWindow, err = intVal()
	case "category_threshold":
		c.CategoryThreshold, err = intVal()
	case "sample_rows":
		c.SampleRows, err = intVal()
	case "max_rows":
		c.MaxRows, err = intVal()
	case "request_timeout_sec":
		c.RequestTimeoutSec, err = intVal()
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = intVal()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = intVal()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = intVal()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = intVal()
	case "max_upload_mb":
		c.MaxUploadMB, err = intVal()
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

// keySource tells where the effective API key comes from.
func keySource(c *cfgpkg.Global) string {
	if !ai.RequiresKey(c.Provider) {
		return "not required"
	}
	if env := cfgpkg.KeyEnv(c.Provider); env != "" && os.Getenv(env) != "" {
		return "from " + env
	}
	if c.APIKey != "" {
		return "from config"
	}
	return "missing"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
