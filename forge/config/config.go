// Package config loads application configuration from a file or environment
// variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Prompting  PromptingConfig  `mapstructure:"prompting"`
	Store      StoreConfig      `mapstructure:"store"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
}

// PromptingConfig stores prompt assembly settings.
type PromptingConfig struct {
	// TotalBudget caps the whole assembled prompt in characters. Zero or
	// negative means unlimited.
	TotalBudget int `mapstructure:"total_budget"`
	// RawKeepLast is how many of the most recent completed iterations are
	// rendered in full rather than as digests.
	RawKeepLast int `mapstructure:"raw_keep_last"`
	// Blocks holds per-block overrides keyed by block name or alias. Values
	// may be booleans, character caps, or {enabled, max_chars} maps.
	Blocks map[string]any `mapstructure:"blocks"`
}

// StoreConfig stores conversation persistence settings.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "memory" or "libsql"
	DSN    string `mapstructure:"dsn"`
}

// SummarizerConfig stores iteration digest settings.
type SummarizerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxToolChars  int  `mapstructure:"max_tool_chars"`
	Workers       int  `mapstructure:"workers"`
	CacheCapacity int  `mapstructure:"cache_capacity"`
}

// PolicyInput returns the loose policy document that prompting accepts,
// combining the total budget with the per-block overrides.
func (c *Config) PolicyInput() map[string]any {
	policy := map[string]any{}
	if c.Prompting.TotalBudget > 0 {
		policy["total_budget"] = c.Prompting.TotalBudget
	}
	if len(c.Prompting.Blocks) > 0 {
		policy["blocks"] = c.Prompting.Blocks
	}
	return policy
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/promptforge")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("prompting.total_budget", 0)
	v.SetDefault("prompting.raw_keep_last", 2)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "file:promptforge.db")

	v.SetDefault("summarizer.enabled", true)
	v.SetDefault("summarizer.max_tool_chars", 2000)
	v.SetDefault("summarizer.workers", 3)
	v.SetDefault("summarizer.cache_capacity", 128)

	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment are used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}
