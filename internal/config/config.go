package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory    = "memory"
	DriverRedis     = "redis"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"` // json or text
	} `yaml:"log"`
	Store struct {
		Driver string `yaml:"driver" env:"STORE_DRIVER"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" env:"SQLITE_PATH"`
	} `yaml:"sqlite"`
	Firestore struct {
		ProjectID       string `yaml:"project_id" env:"FIRESTORE_PROJECT_ID"`
		Collection      string `yaml:"collection" env:"FIRESTORE_COLLECTION"`
		CredentialsFile string `yaml:"credentials_file" env:"FIRESTORE_CREDENTIALS_FILE"`
	} `yaml:"firestore"`
	Round struct {
		ID             string `yaml:"id" env:"ROUND_ID"`
		Duration       string `yaml:"duration" env:"ROUND_DURATION"`
		GracePeriod    string `yaml:"grace_period" env:"ROUND_GRACE_PERIOD"`
		Locked         bool   `yaml:"locked" env:"ROUND_LOCKED"`
		CatalogFile    string `yaml:"catalog_file" env:"ROUND_CATALOG_FILE"`
		CatalogTTL     string `yaml:"catalog_ttl" env:"ROUND_CATALOG_TTL"`
		ResyncEvery    int    `yaml:"resync_every" env:"ROUND_RESYNC_EVERY"`
		PersistTimeout string `yaml:"persist_timeout" env:"ROUND_PERSIST_TIMEOUT"`
	} `yaml:"round"`
	Scoring struct {
		CorrectPoints int `yaml:"correct_points" env:"SCORING_CORRECT_POINTS"`
		WrongPenalty  int `yaml:"wrong_penalty" env:"SCORING_WRONG_PENALTY"`
		HintCost      int `yaml:"hint_cost" env:"SCORING_HINT_COST"`
		SkipPoints    int `yaml:"skip_points" env:"SCORING_SKIP_POINTS"`
		MaxAttempts   int `yaml:"max_attempts" env:"SCORING_MAX_ATTEMPTS"`
	} `yaml:"scoring"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
		Issuer    string `yaml:"issuer" env:"AUTH_ISSUER"`
	} `yaml:"auth"`
}

// Load reads YAML config from path, then overlays environment variables. A missing
// file leaves the environment as the only source.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver() {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("store driver redis requires redis.addr")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("store driver postgres requires postgres.url")
		}
	case DriverFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("store driver firestore requires firestore.project_id")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	for name, raw := range map[string]string{
		"redis.ttl":             c.Redis.TTL,
		"round.duration":        c.Round.Duration,
		"round.grace_period":    c.Round.GracePeriod,
		"round.catalog_ttl":     c.Round.CatalogTTL,
		"round.persist_timeout": c.Round.PersistTimeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// StoreDriver returns the configured driver, defaulting to memory.
func (c Config) StoreDriver() string {
	if c.Store.Driver == "" {
		return DriverMemory
	}
	return c.Store.Driver
}

// Duration parses a duration string or returns the fallback if empty.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
