package config

import (
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/budget"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/cache"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/provider"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/resilience"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/storage/postgres"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/engine"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/scheduler"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Provider   provider.Config  `yaml:"provider"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Cache      CacheConfig      `yaml:"cache"`
	Thinking   ThinkingConfig   `yaml:"thinking"`
	Database   postgres.Config  `yaml:"database"`
	Budget     budget.Config    `yaml:"budget"`
}

// ServerConfig holds the health/metrics listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ResilienceConfig groups the per-call resilience stack settings.
type ResilienceConfig struct {
	Breaker      resilience.BreakerConfig `yaml:"breaker"`
	Retry        resilience.RetryPolicy   `yaml:"retry"`
	Hedge        resilience.HedgeConfig   `yaml:"hedge"`
	CallDeadline time.Duration            `yaml:"call_deadline"`
}

// CacheConfig selects and configures the response cache backend.
type CacheConfig struct {
	Backend string             `yaml:"backend"` // memory, redis, badger, layered
	TTL     time.Duration      `yaml:"ttl"`
	Memory  cache.MemoryConfig `yaml:"memory"`
	Redis   cache.RedisConfig  `yaml:"redis"`
	Badger  cache.BadgerConfig `yaml:"badger"`
}

// ThinkingConfig holds refinement loop and fan-out settings.
type ThinkingConfig struct {
	Engine      engine.Config    `yaml:",inline"`
	Scheduler   scheduler.Config `yaml:",inline"`
	Temperature float32          `yaml:"temperature"`
	MaxTokens   int              `yaml:"max_tokens"`
}
