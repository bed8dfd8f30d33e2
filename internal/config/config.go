package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPort                 = "8080"
	defaultBraveBaseURL         = "https://api.search.brave.com/res/v1"
	defaultOpenRouterBaseURL    = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel      = "openrouter/free"
	defaultNotesDir             = "./notes"
	defaultNotesGCSPrefix       = "research-notes"
	defaultValidationDBURL      = "file:validation.db"
	defaultSearchMinIntervalMS  = 1100
	defaultSearchCacheTTLSecs   = 900
	defaultToolTimeoutSecs      = 15
	defaultRetryAttempts        = 3
	defaultRetryBaseDelayMS     = 1000
	defaultResearchMaxIters     = 25
	defaultResearchYieldMS      = 1000
	defaultResearchTimeoutSecs  = 600
	defaultValidationEveryIters = 2
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	MetricsEnabled bool

	BraveAPIKey       string
	BraveBaseURL      string
	SearchMinInterval time.Duration
	RedisURL          string
	SearchCacheTTL    time.Duration
	ToolTimeout       time.Duration
	RetryAttempts     int
	RetryBaseDelay    time.Duration

	NotesDir       string
	NotesGCSBucket string
	NotesGCSPrefix string

	ValidationDBURL       string
	ValidationDBAuthToken string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string

	ResearchMaxIterations   int
	ResearchYield           time.Duration
	ResearchTimeout         time.Duration
	ResearchValidationEvery int
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Load reads configuration from the environment, optionally layered over a
// yaml file named by RESEARCH_CONFIG_FILE. Missing service credentials are
// not an error here; the tools that need them report it when invoked.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(v.GetString("RESEARCH_CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Port:           trimmed(v, "PORT"),
		Environment:    trimmed(v, "APP_ENV"),
		LogLevel:       trimmed(v, "LOG_LEVEL"),
		LogFormat:      trimmed(v, "LOG_FORMAT"),
		AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),

		BraveAPIKey:       trimmed(v, "BRAVE_API_KEY"),
		BraveBaseURL:      trimmed(v, "BRAVE_BASE_URL"),
		SearchMinInterval: time.Duration(v.GetInt("SEARCH_MIN_INTERVAL_MS")) * time.Millisecond,
		RedisURL:          trimmed(v, "REDIS_URL"),
		SearchCacheTTL:    time.Duration(v.GetInt("SEARCH_CACHE_TTL_SECONDS")) * time.Second,
		ToolTimeout:       time.Duration(v.GetInt("TOOL_TIMEOUT_SECONDS")) * time.Second,
		RetryAttempts:     v.GetInt("RETRY_ATTEMPTS"),
		RetryBaseDelay:    time.Duration(v.GetInt("RETRY_BASE_DELAY_MS")) * time.Millisecond,

		NotesDir:       trimmed(v, "NOTES_DIR"),
		NotesGCSBucket: trimmed(v, "NOTES_GCS_BUCKET"),
		NotesGCSPrefix: strings.Trim(trimmed(v, "NOTES_GCS_PREFIX"), "/"),

		ValidationDBURL:       trimmed(v, "VALIDATION_DB_URL"),
		ValidationDBAuthToken: trimmed(v, "VALIDATION_DB_AUTH_TOKEN"),

		OpenRouterAPIKey:  trimmed(v, "OPENROUTER_API_KEY"),
		OpenRouterBaseURL: strings.TrimRight(trimmed(v, "OPENROUTER_BASE_URL"), "/"),
		OpenRouterModel:   trimmed(v, "OPENROUTER_MODEL"),

		ResearchMaxIterations:   v.GetInt("RESEARCH_MAX_ITERATIONS"),
		ResearchYield:           time.Duration(v.GetInt("RESEARCH_YIELD_MS")) * time.Millisecond,
		ResearchTimeout:         time.Duration(v.GetInt("RESEARCH_TIMEOUT_SECONDS")) * time.Second,
		ResearchValidationEvery: v.GetInt("RESEARCH_VALIDATION_EVERY"),
	}

	if len(cfg.AllowedOrigins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	if cfg.RetryAttempts < 1 {
		return Config{}, errors.New("RETRY_ATTEMPTS must be >= 1")
	}
	if cfg.ResearchMaxIterations < 1 {
		return Config{}, errors.New("RESEARCH_MAX_ITERATIONS must be >= 1")
	}
	if cfg.ResearchYield < 0 || cfg.RetryBaseDelay < 0 || cfg.SearchMinInterval < 0 {
		return Config{}, errors.New("durations must not be negative")
	}
	if strings.HasPrefix(cfg.ValidationDBURL, "libsql://") && cfg.ValidationDBAuthToken == "" {
		return Config{}, errors.New("VALIDATION_DB_AUTH_TOKEN is required for libsql:// URLs")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("BRAVE_BASE_URL", defaultBraveBaseURL)
	v.SetDefault("SEARCH_MIN_INTERVAL_MS", defaultSearchMinIntervalMS)
	v.SetDefault("SEARCH_CACHE_TTL_SECONDS", defaultSearchCacheTTLSecs)
	v.SetDefault("TOOL_TIMEOUT_SECONDS", defaultToolTimeoutSecs)
	v.SetDefault("RETRY_ATTEMPTS", defaultRetryAttempts)
	v.SetDefault("RETRY_BASE_DELAY_MS", defaultRetryBaseDelayMS)
	v.SetDefault("NOTES_DIR", defaultNotesDir)
	v.SetDefault("NOTES_GCS_PREFIX", defaultNotesGCSPrefix)
	v.SetDefault("VALIDATION_DB_URL", defaultValidationDBURL)
	v.SetDefault("OPENROUTER_BASE_URL", defaultOpenRouterBaseURL)
	v.SetDefault("OPENROUTER_MODEL", defaultOpenRouterModel)
	v.SetDefault("RESEARCH_MAX_ITERATIONS", defaultResearchMaxIters)
	v.SetDefault("RESEARCH_YIELD_MS", defaultResearchYieldMS)
	v.SetDefault("RESEARCH_TIMEOUT_SECONDS", defaultResearchTimeoutSecs)
	v.SetDefault("RESEARCH_VALIDATION_EVERY", defaultValidationEveryIters)
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
