package config

import (
	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for projecting a captured JSONL file.
type ReplayConfig struct {
	RPCURL    string
	Input     string
	PGDSN     string
	UseMemory bool
	Shards    int
	LogLevel  string
}

// LoadReplay merges config file, environment variables, and flags into
// ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}

	v.SetDefault("shards", 4)
	v.SetDefault("log-level", "info")

	cfg := ReplayConfig{
		RPCURL:    v.GetString("rpc"),
		Input:     v.GetString("in"),
		PGDSN:     v.GetString("pg-dsn"),
		UseMemory: v.GetBool("use-memory"),
		Shards:    v.GetInt("shards"),
		LogLevel:  v.GetString("log-level"),
	}

	return cfg, nil
}
