package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "openai"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "gpt-4o-mini"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 15 * time.Minute
	}
	if cfg.Thinking.Engine.MaxRounds == 0 {
		cfg.Thinking.Engine.MaxRounds = 4
	}
	if cfg.Thinking.Engine.ConvergenceEpsilon == 0 {
		cfg.Thinking.Engine.ConvergenceEpsilon = 0.05
	}
	if cfg.Thinking.Engine.TokenBudget == 0 {
		cfg.Thinking.Engine.TokenBudget = 4096
	}
	if cfg.Thinking.Scheduler.Fanout == 0 {
		cfg.Thinking.Scheduler.Fanout = 3
	}
	if cfg.Thinking.Scheduler.RoundRetryLimit == 0 {
		cfg.Thinking.Scheduler.RoundRetryLimit = 1
	}
	if cfg.Thinking.Temperature == 0 {
		cfg.Thinking.Temperature = 0.7
	}
	if cfg.Thinking.MaxTokens == 0 {
		cfg.Thinking.MaxTokens = 1024
	}
}
