package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "MINIORM_"

type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Migrations MigrationsConfig `koanf:"migrations"`
	Log        LogConfig        `koanf:"log"`
	HTTP       HTTPConfig       `koanf:"http"`
}

type DatabaseConfig struct {
	DSN                string        `koanf:"dsn"`
	Schema             string        `koanf:"schema"`
	MaxOpenConns       int           `koanf:"max_open_conns"`
	ConnMaxIdleTime    time.Duration `koanf:"conn_max_idle_time"`
	StatementTimeout   time.Duration `koanf:"statement_timeout"`
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
}

type MigrationsConfig struct {
	Dir          string `koanf:"dir"`
	HistoryTable string `koanf:"history_table"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type HTTPConfig struct {
	Address string `koanf:"address"`
}

var defaults = map[string]any{
	"database.schema":               "public",
	"database.max_open_conns":       5,
	"database.conn_max_idle_time":   5 * time.Minute,
	"database.statement_timeout":    2 * time.Minute,
	"database.slow_query_threshold": 200 * time.Millisecond,
	"migrations.dir":                "./storage",
	"migrations.history_table":      "__orm_migrations_history",
	"log.level":                     "info",
	"log.format":                    "json",
	"http.address":                  ":8080",
}

// envKeys maps environment variables onto config keys.
var envKeys = map[string]string{
	"MINIORM_DB_DSN":               "database.dsn",
	"MINIORM_DB_SCHEMA":            "database.schema",
	"MINIORM_DB_MAX_OPEN_CONNS":    "database.max_open_conns",
	"MINIORM_DB_STATEMENT_TIMEOUT": "database.statement_timeout",
	"MINIORM_DB_SLOW_QUERY":        "database.slow_query_threshold",
	"MINIORM_MIGRATIONS_DIR":       "migrations.dir",
	"MINIORM_HISTORY_TABLE":        "migrations.history_table",
	"MINIORM_LOG_LEVEL":            "log.level",
	"MINIORM_LOG_FORMAT":           "log.format",
	"MINIORM_HTTP_ADDR":            "http.address",
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"dsn":            "database.dsn",
	"schema":         "database.schema",
	"timeout":        "database.statement_timeout",
	"migrations-dir": "migrations.dir",
	"history-table":  "migrations.history_table",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"addr":           "http.address",
}

// Load layers defaults, the optional YAML file at path, MINIORM_* environment
// variables and explicitly set flags, in that order of precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("MINIORM_DB_DSN is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return errors.New("database.max_open_conns must be positive")
	}
	if c.Migrations.HistoryTable == "" {
		return errors.New("migrations.history_table is required")
	}
	if c.Migrations.Dir == "" {
		return errors.New("migrations.dir is required")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}
