package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/amurex/inboxtagger/internal/classifier"
	"github.com/amurex/inboxtagger/internal/google"
	"github.com/amurex/inboxtagger/internal/instrumentation"
	"github.com/amurex/inboxtagger/internal/lock"
	"github.com/amurex/inboxtagger/internal/pipeline"
	"github.com/amurex/inboxtagger/internal/store"
)

// Config is the service configuration.
type Config struct {
	Server          ServerConfig            `koanf:"server"`
	Metrics         MetricsConfig           `koanf:"metrics"`
	Log             LogConfig               `koanf:"log"`
	Google          GoogleConfig            `koanf:"google"`
	LLM             classifier.OpenAIConfig `koanf:"llm"`
	Pipeline        pipeline.Options        `koanf:"pipeline"`
	Database        store.PostgresConfig    `koanf:"database"`
	Redis           lock.RedisConfig        `koanf:"redis"`
	Instrumentation instrumentation.Config  `koanf:"instrumentation"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the dedicated metrics server.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GoogleConfig holds both registered OAuth clients and the cutoff between
// them.
type GoogleConfig struct {
	Legacy  google.ClientCredentials `koanf:"legacy"`
	Current google.ClientCredentials `koanf:"current"`
	Cutoff  time.Time                `koanf:"cutoff"`
}

const defaults = `{
  "server": {
    "addr": ":8080",
    "read_timeout": "15s",
    "write_timeout": "5m",
    "shutdown_timeout": "30s"
  },
  "metrics": {
    "enabled": true,
    "addr": ":9090"
  },
  "log": {
    "level": "info",
    "format": "text"
  },
  "google": {
    "cutoff": "2025-03-28T08:33:14.69671Z"
  },
  "llm": {
    "base_url": "https://api.groq.com/openai/v1",
    "model": "llama-3.3-70b-versatile",
    "temperature": 0.3,
    "max_tokens": 20,
    "timeout": "30s",
    "breaker_failures": 5,
    "breaker_cooldown": "30s"
  },
  "pipeline": {
    "label_prefix": "Amurex",
    "page_size": 10,
    "classify_cap": 20,
    "excerpt_length": 1500
  },
  "database": {
    "max_open_conns": 10,
    "max_idle_conns": 2
  },
  "redis": {
    "lock_ttl": "10m"
  }
}`

// envKeys maps environment variables to configuration keys. Environment
// values override the file.
var envKeys = map[string]string{
	"INBOXTAGGER_HTTP_ADDR":    "server.addr",
	"METRICS_ENABLED":          "metrics.enabled",
	"METRICS_ADDR":             "metrics.addr",
	"LOG_LEVEL":                "log.level",
	"LOG_FORMAT":               "log.format",
	"GOOGLE_CLIENT_ID_OLD":     "google.legacy.client_id",
	"GOOGLE_CLIENT_SECRET_OLD": "google.legacy.client_secret",
	"GOOGLE_REDIRECT_URI_OLD":  "google.legacy.redirect_url",
	"GOOGLE_CLIENT_ID_NEW":     "google.current.client_id",
	"GOOGLE_CLIENT_SECRET_NEW": "google.current.client_secret",
	"GOOGLE_REDIRECT_URI_NEW":  "google.current.redirect_url",
	"GOOGLE_CREDENTIAL_CUTOFF": "google.cutoff",
	"GROQ_API_KEY":             "llm.api_key",
	"LLM_BASE_URL":             "llm.base_url",
	"LLM_MODEL":                "llm.model",
	"DATABASE_URL":             "database.url",
	"REDIS_ADDR":               "redis.addr",
	"REDIS_PASSWORD":           "redis.password",
}

// Load reads the built-in defaults, then path (YAML or JSON, optional), then
// the environment.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), json.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path != "" {
		var parser koanf.Parser = yaml.Parser()
		if strings.EqualFold(filepath.Ext(path), ".json") {
			parser = json.Parser()
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	for env, key := range envKeys {
		if v, ok := lookup(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", env, err)
			}
		}
	}

	// Instrumentation defaults come from the OpenTelemetry environment
	// variables; the file only overrides the keys it sets.
	cfg := Config{Instrumentation: instrumentation.DefaultConfig()}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing value the service needs to run.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if !c.Google.Legacy.Complete() {
		errs = append(errs, errors.New("legacy Google OAuth client is incomplete (GOOGLE_CLIENT_ID_OLD, GOOGLE_CLIENT_SECRET_OLD)"))
	}
	if !c.Google.Current.Complete() {
		errs = append(errs, errors.New("current Google OAuth client is incomplete (GOOGLE_CLIENT_ID_NEW, GOOGLE_CLIENT_SECRET_NEW)"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (GROQ_API_KEY)"))
	}
	if c.Pipeline.PageSize < 0 || c.Pipeline.PageSize > 500 {
		errs = append(errs, fmt.Errorf("pipeline.page_size must be between 1 and 500, got %d", c.Pipeline.PageSize))
	}
	if c.Pipeline.ClassifyCap < 0 {
		errs = append(errs, fmt.Errorf("pipeline.classify_cap must not be negative, got %d", c.Pipeline.ClassifyCap))
	}
	if err := c.Instrumentation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("instrumentation: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
