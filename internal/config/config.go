package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PoolConfig describes one statically known exchange contract.
type PoolConfig struct {
	Address  string `mapstructure:"address"`
	Protocol string `mapstructure:"protocol"`
	Token0   string `mapstructure:"token0"`
	Token1   string `mapstructure:"token1"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	FromBlock         uint64
	ToBlock           uint64
	Workers           int
	In                string
	Out               string
	PgDSN             string
	MetricsAddr       string
	TokenTTL          time.Duration
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
	Pools             []PoolConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("workers", 4)
	v.SetDefault("out", "./data/actions.jsonl")
	v.SetDefault("token-ttl", time.Hour)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Workers:           v.GetInt("workers"),
		In:                v.GetString("in"),
		Out:               v.GetString("out"),
		PgDSN:             v.GetString("pg-dsn"),
		MetricsAddr:       v.GetString("metrics-addr"),
		TokenTTL:          v.GetDuration("token-ttl"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}

	if err := v.UnmarshalKey("pools", &cfg.Pools); err != nil {
		return Config{}, fmt.Errorf("parse pools: %w", err)
	}

	return cfg, nil
}
