// Package daemon manages the studyquest server lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/app/replica"
	"github.com/studyquest/studyquest/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. STUDYQUEST_API_PORT.
const EnvPrefix = "STUDYQUEST"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api" envconfig:"API"`
	Store     StoreConfig     `toml:"store" envconfig:"STORE"`
	Redis     RedisConfig     `toml:"redis" envconfig:"REDIS"`
	Auth      AuthConfig      `toml:"auth" envconfig:"AUTH"`
	Sync      SyncConfig      `toml:"sync" envconfig:"SYNC"`
	Engine    EngineConfig    `toml:"engine" envconfig:"ENGINE"`
	Jobs      JobsConfig      `toml:"jobs" envconfig:"JOBS"`
	AI        AIConfig        `toml:"ai" envconfig:"AI"`
	Logging   LoggingConfig   `toml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `toml:"telemetry" envconfig:"TELEMETRY"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host" envconfig:"HOST"`
	Port int    `toml:"port" envconfig:"PORT"`
}

// StoreConfig selects where snapshots and history live.
type StoreConfig struct {
	Driver        string `toml:"driver" envconfig:"DRIVER"`
	Dir           string `toml:"dir" envconfig:"DIR"` // sqlite
	PostgresDSN   string `toml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	MaxConns      int32  `toml:"max_conns" envconfig:"MAX_CONNS"`
	MongoURI      string `toml:"mongo_uri" envconfig:"MONGO_URI"`
	MongoDatabase string `toml:"mongo_database" envconfig:"MONGO_DATABASE"`
}

// RedisConfig enables the snapshot cache.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled" envconfig:"ENABLED"`
	Addr     string `toml:"addr" envconfig:"ADDR"`
	Password string `toml:"password" envconfig:"PASSWORD"`
	DB       int    `toml:"db" envconfig:"DB"`
	TTL      string `toml:"ttl" envconfig:"TTL"`
}

// AuthConfig controls bearer tokens. An empty secret is generated once
// and kept under keys/ in the home directory.
type AuthConfig struct {
	Secret   string `toml:"secret" envconfig:"SECRET"`
	TokenTTL string `toml:"token_ttl" envconfig:"TOKEN_TTL"`
}

// SyncConfig is used by the client commands that drive a local replica.
type SyncConfig struct {
	ServerURL    string `toml:"server_url" envconfig:"SERVER_URL"`
	Token        string `toml:"token" envconfig:"TOKEN"`
	Debounce     string `toml:"debounce" envconfig:"DEBOUNCE"`
	PullInterval string `toml:"pull_interval" envconfig:"PULL_INTERVAL"`
	MaxAttempts  int    `toml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
}

// EngineConfig tunes the rule engine.
type EngineConfig struct {
	Timezone        string `toml:"timezone" envconfig:"TIMEZONE"`
	DailyGoalPolicy string `toml:"daily_goal_policy" envconfig:"DAILY_GOAL_POLICY"`
}

// JobsConfig controls the nightly rollover.
type JobsConfig struct {
	Enabled      bool   `toml:"enabled" envconfig:"ENABLED"`
	RolloverSpec string `toml:"rollover_spec" envconfig:"ROLLOVER_SPEC"`
}

// AIConfig points quiz generation at an OpenAI-compatible endpoint.
// Generation is disabled without an API key.
type AIConfig struct {
	BaseURL string `toml:"base_url" envconfig:"BASE_URL"`
	APIKey  string `toml:"api_key" envconfig:"API_KEY"`
	Model   string `toml:"model" envconfig:"MODEL"`
	Timeout string `toml:"timeout" envconfig:"TIMEOUT"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level" envconfig:"LEVEL"`
	Format string `toml:"format" envconfig:"FORMAT"` // text or json
}

// TelemetryConfig controls metrics and health checks.
type TelemetryConfig struct {
	Prometheus     bool   `toml:"prometheus" envconfig:"PROMETHEUS"`
	HealthInterval string `toml:"health_interval" envconfig:"HEALTH_INTERVAL"`
}

// DefaultConfig returns a single-node configuration on SQLite.
func DefaultConfig() Config {
	homeDir := studyquestHome()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Store: StoreConfig{
			Driver:        DriverSQLite,
			Dir:           homeDir,
			MaxConns:      10,
			MongoDatabase: "studyquest",
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
			TTL:  "10m",
		},
		Auth: AuthConfig{
			TokenTTL: "720h",
		},
		Sync: SyncConfig{
			ServerURL:    "http://127.0.0.1:8787",
			Debounce:     "2s",
			PullInterval: "5m",
			MaxAttempts:  3,
		},
		Engine: EngineConfig{
			Timezone:        "Local",
			DailyGoalPolicy: string(engagement.DailyGoalSingleDelta),
		},
		Jobs: JobsConfig{
			Enabled:      true,
			RolloverSpec: "5 0 * * *",
		},
		AI: AIConfig{
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o-mini",
			Timeout: "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			HealthInterval: "60s",
		},
	}
}

// LoadConfig reads ~/.studyquest/config.toml over the defaults, then
// applies STUDYQUEST_* environment overrides and validates the result.
func LoadConfig() (Config, error) {
	return loadConfigFile(filepath.Join(studyquestHome(), "config.toml"))
}

func loadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	var errs []error

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}

	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongo_uri is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want sqlite, postgres or mongo", c.Store.Driver))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}

	for name, v := range map[string]string{
		"redis.ttl":                 c.Redis.TTL,
		"auth.token_ttl":            c.Auth.TokenTTL,
		"sync.debounce":             c.Sync.Debounce,
		"sync.pull_interval":        c.Sync.PullInterval,
		"ai.timeout":                c.AI.Timeout,
		"telemetry.health_interval": c.Telemetry.HealthInterval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := engagement.ParseDailyGoalPolicy(c.Engine.DailyGoalPolicy); err != nil {
		errs = append(errs, fmt.Errorf("engine.daily_goal_policy: %w", err))
	}
	if c.Jobs.Enabled && c.Jobs.RolloverSpec != "" {
		if _, err := cron.ParseStandard(c.Jobs.RolloverSpec); err != nil {
			errs = append(errs, fmt.Errorf("jobs.rollover_spec: %w", err))
		}
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Location resolves the engine time zone. "Local" and "" use the host zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Engine.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone: %w", err)
	}
	return loc, nil
}

// NewEngine builds the rule engine for the configured time zone and daily
// goal policy. Call it on a validated config.
func (c Config) NewEngine() *engagement.Engine {
	loc, err := c.Location()
	if err != nil {
		loc = time.Local
	}
	policy, _ := engagement.ParseDailyGoalPolicy(c.Engine.DailyGoalPolicy)
	return engagement.NewEngine(
		engagement.WithLocation(loc),
		engagement.WithDailyGoalPolicy(policy),
	)
}

// ReplicaConfig converts the sync section for a client replica.
func (c SyncConfig) ReplicaConfig(defaults func(string, time.Time) domain.ProgressSnapshot) replica.Config {
	def := replica.DefaultConfig()
	return replica.Config{
		Debounce:     parseDuration(c.Debounce, def.Debounce),
		PullInterval: parseDuration(c.PullInterval, def.PullInterval),
		MaxAttempts:  c.MaxAttempts,
		Defaults:     defaults,
	}
}

// SaveConfig writes the config to ~/.studyquest/config.toml.
func SaveConfig(cfg Config) error {
	return saveConfigFile(filepath.Join(studyquestHome(), "config.toml"), cfg)
}

func saveConfigFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// SetupLogging configures the global logrus logger.
func SetupLogging(cfg LoggingConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	log.SetOutput(os.Stderr)
}

// studyquestHome returns the studyquest data directory.
func studyquestHome() string {
	if env := os.Getenv("STUDYQUEST_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".studyquest")
}

// Home is exported for use by other packages.
func Home() string {
	return studyquestHome()
}
