package config

import (
	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the query API server.
type ServeConfig struct {
	Listen   string
	PGDSN    string
	LogLevel string
}

// LoadServe merges config file, environment variables, and flags into
// ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}

	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

	cfg := ServeConfig{
		Listen:   v.GetString("listen"),
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
