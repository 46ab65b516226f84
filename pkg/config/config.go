package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Report   ReportConfig   `mapstructure:"report"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type AnalysisConfig struct {
	Days                int   `mapstructure:"days"`
	MaxMessages         int   `mapstructure:"max_messages"`
	MinActivity         int   `mapstructure:"min_activity"`
	MaxTopics           int   `mapstructure:"max_topics"`
	MaxUserTitles       int   `mapstructure:"max_user_titles"`
	MaxQuotes           int   `mapstructure:"max_quotes"`
	TimezoneOffset      int   `mapstructure:"timezone_offset"`
	LLMTimeoutSeconds   int   `mapstructure:"llm_timeout_seconds"`
	LLMRetries          int   `mapstructure:"llm_retries"`
	LLMBackoffMs        int   `mapstructure:"llm_backoff_ms"`
	SoftDeadlineSeconds int   `mapstructure:"soft_deadline_seconds"`
	CacheTTLSeconds     int64 `mapstructure:"cache_ttl_seconds"`
}

type ReportConfig struct {
	Format      string `mapstructure:"format"`
	BrowserPath string `mapstructure:"browser_path"`
}

// ConfigError names an out-of-range field and its valid range. It is the
// only error class that fails an invocation before any network call.
type ConfigError struct {
	Field string
	Value any
	Range string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s = %v (valid: %s)", e.Field, e.Value, e.Range)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 4000)
	v.SetDefault("openai.temperature", 0.6)
	v.SetDefault("analysis.days", 1)
	v.SetDefault("analysis.max_messages", 1000)
	v.SetDefault("analysis.min_activity", 5)
	v.SetDefault("analysis.max_topics", 5)
	v.SetDefault("analysis.max_user_titles", 8)
	v.SetDefault("analysis.max_quotes", 5)
	v.SetDefault("analysis.timezone_offset", 0)
	v.SetDefault("analysis.llm_timeout_seconds", 60)
	v.SetDefault("analysis.llm_retries", 3)
	v.SetDefault("analysis.llm_backoff_ms", 1000)
	v.SetDefault("analysis.soft_deadline_seconds", 300)
	v.SetDefault("analysis.cache_ttl_seconds", 3600)
	v.SetDefault("report.format", "image")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Environment variables override the file for secrets
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate enforces the ranges the analysis pipeline depends on. The outer
// layer validates too, but out-of-range values must never reach the core.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.Days < 1 || a.Days > 7 {
		return &ConfigError{Field: "analysis.days", Value: a.Days, Range: "1-7"}
	}
	if a.MaxMessages <= 0 {
		return &ConfigError{Field: "analysis.max_messages", Value: a.MaxMessages, Range: "> 0"}
	}
	if a.MinActivity < 1 {
		return &ConfigError{Field: "analysis.min_activity", Value: a.MinActivity, Range: ">= 1"}
	}
	if a.TimezoneOffset < -12 || a.TimezoneOffset > 14 {
		return &ConfigError{Field: "analysis.timezone_offset", Value: a.TimezoneOffset, Range: "-12 to 14"}
	}
	if a.LLMTimeoutSeconds <= 0 {
		return &ConfigError{Field: "analysis.llm_timeout_seconds", Value: a.LLMTimeoutSeconds, Range: "> 0"}
	}
	if a.LLMRetries < 0 {
		return &ConfigError{Field: "analysis.llm_retries", Value: a.LLMRetries, Range: ">= 0"}
	}
	if a.LLMBackoffMs < 0 {
		return &ConfigError{Field: "analysis.llm_backoff_ms", Value: a.LLMBackoffMs, Range: ">= 0"}
	}
	if a.CacheTTLSeconds <= 0 {
		return &ConfigError{Field: "analysis.cache_ttl_seconds", Value: a.CacheTTLSeconds, Range: "> 0"}
	}
	format := strings.ToLower(c.Report.Format)
	if format != "text" && format != "image" && format != "pdf" {
		return &ConfigError{Field: "report.format", Value: c.Report.Format, Range: "text, image, pdf"}
	}
	c.Report.Format = format
	return nil
}
