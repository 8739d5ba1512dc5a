package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "EVENTGATE"

type Config struct {
	HTTPAddr string
	GRPCAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/eventgate.db"

	// "single" | "reentry"
	SessionMode string

	// Presence fan-out to other processes; empty RedisURL disables it.
	RedisURL     string
	RedisChannel string

	LogLevel        slog.Level
	SeedDev         bool // dev only
	ShutdownTimeout time.Duration
}

var defaults = map[string]any{
	"http_addr":        ":8080",
	"grpc_addr":        ":9090",
	"env":              "dev",
	"db_path":          "./data/eventgate.db",
	"session_mode":     "single",
	"redis_url":        "",
	"redis_channel":    "eventgate:presence",
	"log_level":        "info",
	"seed_dev":         false,
	"shutdown_timeout": "10s",
}

// NewViper returns a viper instance reading EVENTGATE_* environment
// variables, with every key defaulted.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	return v
}

// ReadFile merges a config file (yaml, toml or json) into v.  An empty
// path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	v.SetConfigFile(path)
	return v.ReadInConfig()
}

func FromEnv() Config {
	return FromViper(NewViper())
}

func FromViper(v *viper.Viper) Config {
	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	mode := strings.ToLower(strings.TrimSpace(v.GetString("session_mode")))
	if mode != "single" && mode != "reentry" {
		mode = "single"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		level = slog.LevelInfo
	}

	shutdown := v.GetDuration("shutdown_timeout")
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}

	return Config{
		HTTPAddr: nonEmpty(v.GetString("http_addr"), ":8080"),
		GRPCAddr: v.GetString("grpc_addr"),
		Env:      env,
		DBPath:   nonEmpty(v.GetString("db_path"), "./data/eventgate.db"),

		SessionMode: mode,

		RedisURL:     strings.TrimSpace(v.GetString("redis_url")),
		RedisChannel: nonEmpty(v.GetString("redis_channel"), "eventgate:presence"),

		LogLevel:        level,
		SeedDev:         v.GetBool("seed_dev"),
		ShutdownTimeout: shutdown,
	}
}

func nonEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
