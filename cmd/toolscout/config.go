// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/toolscout/internal/secrets"
	"github.com/pdiddy/toolscout/pkg/types"
)

// setDefaults registers every option so that viper also resolves it from
// the environment.
func setDefaults() {
	d := types.DefaultConfig()

	viper.SetDefault("search.search_timeout", d.Search.Timeout)
	viper.SetDefault("search.user_agent", d.Search.UserAgent)
	viper.SetDefault("search.max_search_results", d.Search.MaxResults)
	viper.SetDefault("search.enable_fallback_provider", d.Search.EnableFallback)
	viper.SetDefault("search.requests_per_second", d.Search.RequestsPerSecond)

	viper.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	viper.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	viper.SetDefault("retry.max_delay", d.Retry.MaxDelay)

	viper.SetDefault("workflow.max_candidates", d.Workflow.MaxCandidates)
	viper.SetDefault("workflow.max_concurrency", d.Workflow.MaxConcurrency)
	viper.SetDefault("workflow.session_timeout", d.Workflow.SessionTimeout)
	viper.SetDefault("workflow.scrape_chars", d.Workflow.ScrapeChars)

	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.temperature", d.LLM.Temperature)
	viper.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	viper.SetDefault("llm.base_url", d.LLM.BaseURL)

	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.redis_url", d.Cache.RedisURL)
	viper.SetDefault("cache.ttl", d.Cache.TTL)

	viper.SetDefault("history.path", d.History.Path)
	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("log_level", d.LogLevel)
}

// loadConfig returns the effective configuration with credentials
// attached.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	cfg.Search.FirecrawlAPIKey = creds.Firecrawl
	cfg.Search.SerperAPIKey = creds.Serper
	cfg.LLM.APIKey = creds.OpenAI
	return cfg, nil
}

func validateConfig(cfg types.Config) error {
	switch {
	case cfg.Search.MaxResults <= 0:
		return fmt.Errorf("search.max_search_results must be positive, got %d", cfg.Search.MaxResults)
	case cfg.Search.Timeout <= 0:
		return fmt.Errorf("search.search_timeout must be positive, got %s", cfg.Search.Timeout)
	case cfg.Search.RequestsPerSecond < 0:
		return fmt.Errorf("search.requests_per_second must not be negative")
	case cfg.Retry.MaxAttempts <= 0:
		return fmt.Errorf("retry.max_attempts must be positive, got %d", cfg.Retry.MaxAttempts)
	case cfg.Workflow.MaxCandidates <= 0:
		return fmt.Errorf("workflow.max_candidates must be positive, got %d", cfg.Workflow.MaxCandidates)
	case cfg.Workflow.MaxConcurrency <= 0:
		return fmt.Errorf("workflow.max_concurrency must be positive, got %d", cfg.Workflow.MaxConcurrency)
	case cfg.Workflow.SessionTimeout <= 0:
		return fmt.Errorf("workflow.session_timeout must be positive, got %s", cfg.Workflow.SessionTimeout)
	case cfg.Cache.Enabled && cfg.Cache.RedisURL == "":
		return fmt.Errorf("cache.redis_url is required when cache.enabled is true")
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Config prints the configuration after defaults, the config file and
TOOLSCOUT_* environment variables are applied. Credentials are shown only as
set or not set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		os.Stdout.Write(data)
		fmt.Printf("credentials:\n")
		fmt.Printf("    %s: %s\n", secrets.KeyFirecrawl, secrets.Status(creds.Firecrawl))
		fmt.Printf("    %s: %s\n", secrets.KeySerper, secrets.Status(creds.Serper))
		fmt.Printf("    %s: %s\n", secrets.KeyOpenAI, secrets.Status(creds.OpenAI))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
