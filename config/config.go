// Package config reads the server configuration from the environment, with
// an optional .env or config file in the working directory.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	HTTP   HTTPConfig
	Log    LogConfig
	Ledger LedgerConfig
}

type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

type DBConfig struct {
	Path string // SQLite file; ":memory:" for a throwaway database
}

type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level string // trace, debug, info, warn, error
}

type LedgerConfig struct {
	CostScale int32 // decimal places kept on derived per-unit costs
}

// Load reads the configuration. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("APP_ENV"),
			Name: v.GetString("APP_NAME"),
		},
		DB: DBConfig{
			Path: v.GetString("DB_PATH"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Ledger: LedgerConfig{
			CostScale: v.GetInt32("COST_SCALE"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "bake-ledger")
	v.SetDefault("DB_PATH", "bake-ledger.db")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("COST_SCALE", ledger.DefaultCostScale)
}

func (c *Config) Validate() error {
	if c.DB.Path == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.HTTP.Port)
	}
	if c.Ledger.CostScale < 0 || c.Ledger.CostScale > 18 {
		return fmt.Errorf("COST_SCALE %d out of range 0-18", c.Ledger.CostScale)
	}
	return nil
}
