// Package config loads the memomind configuration from defaults, an
// optional YAML file, MEMOMIND_ environment variables and command-line flags,
// in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels, e.g. MEMOMIND_SERVER__READ_TIMEOUT.
const EnvPrefix = "MEMOMIND_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Practice  PracticeConfig  `koanf:"practice"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Billing   BillingConfig   `koanf:"billing"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Reminders RemindersConfig `koanf:"reminders"`
	Import    ImportConfig    `koanf:"import"`
}

type ServerConfig struct {
	Addr               string        `koanf:"addr" validate:"required"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"min=1s"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// AuthConfig configures verification of the HS256 bearer tokens issued by
// the identity provider.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	Issuer    string        `koanf:"issuer"`
	Audience  string        `koanf:"audience"`
	Leeway    time.Duration `koanf:"leeway" validate:"min=0s"`
}

type PracticeConfig struct {
	// Timezone whose midnight starts a practice day. Empty means the
	// process's local timezone.
	Timezone string `koanf:"timezone" validate:"omitempty,timezone"`
}

type AnalysisConfig struct {
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url" validate:"required,url"`
	Model          string `koanf:"model" validate:"required"`
	MaxTokens      int    `koanf:"max_tokens" validate:"min=1"`
	Referer        string `koanf:"referer"`
	RequirePremium bool   `koanf:"require_premium"`
}

type BillingConfig struct {
	KeyID         string `koanf:"key_id"`
	KeySecret     string `koanf:"key_secret"`
	PlanIDMonthly string `koanf:"plan_id_monthly"`
	PlanIDYearly  string `koanf:"plan_id_yearly"`
	BaseURL       string `koanf:"base_url" validate:"required,url"`
}

// RateLimitConfig configures the per-user limit on analysis requests.
// An empty RedisAddr disables limiting.
type RateLimitConfig struct {
	RedisAddr     string        `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `koanf:"redis_password"`
	Prefix        string        `koanf:"prefix" validate:"required"`
	AnalyzeLimit  int           `koanf:"analyze_limit" validate:"min=1"`
	Window        time.Duration `koanf:"window" validate:"min=1s"`
}

type RemindersConfig struct {
	Enabled bool `koanf:"enabled"`
}

type ImportConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Path: "memomind.db"},
		Auth:     AuthConfig{Leeway: 30 * time.Second},
		Analysis: AnalysisConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "openrouter/auto",
			MaxTokens:      2000,
			Referer:        "http://localhost:3000",
			RequirePremium: true,
		},
		Billing: BillingConfig{BaseURL: "https://api.razorpay.com"},
		RateLimit: RateLimitConfig{
			Prefix:       "memomind:ratelimit",
			AnalyzeLimit: 20,
			Window:       time.Hour,
		},
		Import: ImportConfig{ReposDir: "repos"},
	}
}

// Load builds the configuration. path may be empty, and a missing file at
// path is not an error. flags may be nil; flag names are mapped to keys by
// FlagKeys and unmapped flags are ignored.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"addr":      "server.addr",
	"db":        "database.path",
	"log-level": "log.level",
	"timezone":  "practice.timezone",
	"repos-dir": "import.repos_dir",
	"reminders": "reminders.enabled",
}

// envKey turns MEMOMIND_SERVER__READ_TIMEOUT into server.read_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Location resolves the practice timezone.
func (c PracticeConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
