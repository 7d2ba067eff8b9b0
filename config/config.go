// Package config loads gotlive settings from the environment and an optional
// YAML file, and builds a ready-to-use engine from them.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/gotlive"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Preference store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Translation providers.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
	ProviderLingva = "lingva"
	ProviderGoogle = "google"
)

// Config holds every setting of an engine and its backends. Zero durations
// and counts fall back to the engine defaults.
type Config struct {
	SourceLanguage string `envDefault:"en"               env:"GOTLIVE_SOURCE_LANG"    yaml:"source_language"`
	PreferenceKey  string `envDefault:"selectedLanguage" env:"GOTLIVE_PREFERENCE_KEY" yaml:"preference_key"`

	BatchSize      int           `envDefault:"10"    env:"GOTLIVE_BATCH_SIZE"      yaml:"batch_size"`
	BatchDelay     time.Duration `envDefault:"50ms"  env:"GOTLIVE_BATCH_DELAY"     yaml:"batch_delay"`
	MaxConcurrent  int           `envDefault:"4"     env:"GOTLIVE_MAX_CONCURRENT"  yaml:"max_concurrent"`
	MaxRetries     int           `envDefault:"3"     env:"GOTLIVE_MAX_RETRIES"     yaml:"max_retries"`
	RetryBaseDelay time.Duration `envDefault:"1s"    env:"GOTLIVE_RETRY_BASE"      yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `envDefault:"30s"   env:"GOTLIVE_RETRY_MAX"       yaml:"retry_max_delay"`
	SettleDelay    time.Duration `envDefault:"300ms" env:"GOTLIVE_SETTLE_DELAY"    yaml:"settle_delay"`
	WaitReadiness  bool          `envDefault:"false" env:"GOTLIVE_WAIT_READINESS"  yaml:"wait_readiness"`

	CacheBackend   string        `envDefault:"memory"   env:"GOTLIVE_CACHE"            yaml:"cache"`
	CacheTTL       time.Duration `envDefault:"0s"       env:"GOTLIVE_CACHE_TTL"        yaml:"cache_ttl"`
	RedisURL       string        `envDefault:""         env:"REDIS_URL"                yaml:"redis_url"`
	RedisKeyPrefix string        `envDefault:"gotlive:" env:"GOTLIVE_REDIS_KEY_PREFIX" yaml:"redis_key_prefix"`

	StoreKind string `envDefault:"memory" env:"GOTLIVE_STORE"      yaml:"store"`
	StorePath string `envDefault:""       env:"GOTLIVE_STORE_PATH" yaml:"store_path"`

	Provider           string   `envDefault:"mock"        env:"GOTLIVE_PROVIDER"              yaml:"provider"`
	OpenAIAPIKey       string   `envDefault:""            env:"OPENAI_API_KEY"                yaml:"openai_api_key"`
	OpenAIModel        string   `envDefault:"gpt-4o-mini" env:"OPENAI_MODEL"                  yaml:"openai_model"`
	OpenAIBaseURL      string   `envDefault:""            env:"OPENAI_BASE_URL"               yaml:"openai_base_url"`
	TranslationContext string   `envDefault:""            env:"GOTLIVE_CONTEXT"               yaml:"context"`
	ExcludedTerms      []string `env:"GOTLIVE_EXCLUDE" envSeparator:"," yaml:"excluded_terms"`
	LingvaURL          string   `envDefault:""            env:"LINGVA_URL"                    yaml:"lingva_url"`
	GoogleAPIKey       string   `envDefault:""            env:"GOOGLE_TRANSLATE_API_KEY"      yaml:"google_api_key"`
	GoogleCredentials  string   `envDefault:""            env:"GOOGLE_APPLICATION_CREDENTIALS" yaml:"google_credentials"`
	CatalogDir         string   `envDefault:""            env:"GOTLIVE_CATALOG_DIR"           yaml:"catalog_dir"`

	RateLimitRPM   int `envDefault:"0" env:"GOTLIVE_RATE_LIMIT_RPM"   yaml:"rate_limit_rpm"`
	RateLimitBurst int `envDefault:"0" env:"GOTLIVE_RATE_LIMIT_BURST" yaml:"rate_limit_burst"`

	LogLevel  string `envDefault:"info" env:"LOG_LEVEL"  yaml:"log_level"`
	LogFormat string `envDefault:"text" env:"LOG_FORMAT" yaml:"log_format"`
}

// FromEnv parses the configuration from environment variables.
func FromEnv() (Config, error) {
	return env.ParseAs[Config]()
}

// Load parses the environment and then overlays the YAML file at path, if
// path is not empty. Keys missing from the file keep their environment value.
func Load(path string) (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate reports every setting that cannot work.
func (c Config) Validate() error {
	var errs []error

	if _, err := gotlive.NormalizeLanguage(c.SourceLanguage); err != nil {
		errs = append(errs, fmt.Errorf("source_language: %w", err))
	}
	if c.PreferenceKey == "" {
		errs = append(errs, errors.New("preference_key must not be empty"))
	}
	if c.BatchSize < 0 || c.MaxConcurrent < 0 || c.MaxRetries < 0 {
		errs = append(errs, errors.New("batch_size, max_concurrent and max_retries must not be negative"))
	}
	if c.BatchDelay < 0 || c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0 || c.SettleDelay < 0 || c.CacheTTL < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.RetryMaxDelay > 0 && c.RetryBaseDelay > c.RetryMaxDelay {
		errs = append(errs, errors.New("retry_base_delay exceeds retry_max_delay"))
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis cache requires redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}

	switch c.StoreKind {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.StorePath == "" {
			errs = append(errs, fmt.Errorf("%s store requires store_path", c.StoreKind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown preference store %q", c.StoreKind))
	}

	switch c.Provider {
	case ProviderMock:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("openai provider requires OPENAI_API_KEY"))
		}
	case ProviderLingva:
		if c.LingvaURL == "" {
			errs = append(errs, errors.New("lingva provider requires lingva_url"))
		}
	case ProviderGoogle:
		if c.GoogleAPIKey == "" && c.GoogleCredentials == "" {
			errs = append(errs, errors.New("google provider requires an API key or credentials file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	if c.RateLimitRPM < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// RetryPolicy returns the configured back-off.
func (c Config) RetryPolicy() gotlive.RetryPolicy {
	return gotlive.RetryPolicy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.RetryBaseDelay,
		MaxDelay:   c.RetryMaxDelay,
	}
}
