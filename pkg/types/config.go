package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout (search_timeout).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"search_timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the provider adapters and hybrid search.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults caps the merged result list and the per-call provider limit (default 5).
	MaxResults int `json:"max_search_results" yaml:"max_search_results" mapstructure:"max_search_results"`

	// EnableFallback allows the secondary provider tier to run.
	EnableFallback bool `json:"enable_fallback_provider" yaml:"enable_fallback_provider" mapstructure:"enable_fallback_provider"`

	// RequestsPerSecond paces calls to each provider. Zero disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	FirecrawlAPIKey string `json:"-" yaml:"-" mapstructure:"-"`
	SerperAPIKey    string `json:"-" yaml:"-" mapstructure:"-"`
}

// RetryConfig bounds retries of external calls.
type RetryConfig struct {
	// MaxAttempts includes the first call (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// BaseDelay is the backoff before the second attempt; it doubles per attempt.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`

	// MaxDelay caps a single backoff.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
}

// WorkflowConfig holds settings for the research session state machine.
type WorkflowConfig struct {
	// MaxCandidates bounds how many discovered tools are researched (default 5).
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates" mapstructure:"max_candidates"`

	// MaxConcurrency bounds in-flight per-candidate research (default 5).
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" mapstructure:"max_concurrency"`

	// SessionTimeout aborts the whole session (default 5m).
	SessionTimeout time.Duration `json:"session_timeout" yaml:"session_timeout" mapstructure:"session_timeout"`

	// ScrapeChars truncates scraped content sent to the completion service (default 2500).
	ScrapeChars int `json:"scrape_chars" yaml:"scrape_chars" mapstructure:"scrape_chars"`
}

// AIConfig holds settings for the completion service.
type AIConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens limits the completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// BaseURL overrides the chat completions endpoint base.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKey is the authentication key for the completion API.
	APIKey string `json:"-" yaml:"-" mapstructure:"-"`
}

// CacheConfig configures the optional Redis result cache.
type CacheConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	RedisURL string        `json:"redis_url,omitempty" yaml:"redis_url,omitempty" mapstructure:"redis_url"`
	TTL      time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// HistoryConfig configures the SQLite session history.
type HistoryConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// Config groups all settings.
type Config struct {
	Search   SearchConfig   `json:"search" yaml:"search" mapstructure:"search"`
	Retry    RetryConfig    `json:"retry" yaml:"retry" mapstructure:"retry"`
	Workflow WorkflowConfig `json:"workflow" yaml:"workflow" mapstructure:"workflow"`
	LLM      AIConfig       `json:"llm" yaml:"llm" mapstructure:"llm"`
	Cache    CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`
	History  HistoryConfig  `json:"history" yaml:"history" mapstructure:"history"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	LogLevel string         `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "toolscout/0.1",
			},
			MaxResults:        5,
			EnableFallback:    true,
			RequestsPerSecond: 2,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Workflow: WorkflowConfig{
			MaxCandidates:  5,
			MaxConcurrency: 5,
			SessionTimeout: 5 * time.Minute,
			ScrapeChars:    2500,
		},
		LLM: AIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   2000,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		History: HistoryConfig{
			Path: "toolscout.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		LogLevel: "info",
	}
}
