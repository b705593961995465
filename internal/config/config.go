package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/aescanero/dago-node-formula/internal/eval/cel"
	"github.com/aescanero/dago-node-formula/internal/formula"
)

// Config holds all configuration for the formula worker
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"formula-1"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamsEnabled bool          `env:"STREAMS_ENABLED" envDefault:"true"`
	StreamKey      string        `env:"STREAM_KEY" envDefault:"formula.work"`
	ConsumerGroup  string        `env:"CONSUMER_GROUP" envDefault:"formula-workers"`
	ResultStream   string        `env:"RESULT_STREAM" envDefault:"formula.evaluated"`
	BlockTime      time.Duration `env:"BLOCK_TIME" envDefault:"1s"`
	ResultTTL      time.Duration `env:"RESULT_TTL" envDefault:"24h"`

	// HTTP configuration
	HTTPPort int `env:"HTTP_PORT" envDefault:"8082"`

	// Batch configuration
	BatchConcurrency int    `env:"BATCH_CONCURRENCY" envDefault:"8"`
	AdmissionRule    string `env:"ADMISSION_RULE" envDefault:""`

	// Formula limits
	MaxInputLength    int           `env:"FORMULA_MAX_INPUT" envDefault:"8192"`
	MaxDepth          int           `env:"FORMULA_MAX_DEPTH" envDefault:"256"`
	MaxSteps          int           `env:"FORMULA_MAX_STEPS" envDefault:"1000000"`
	MaxSumTerms       int           `env:"FORMULA_MAX_SUM_TERMS" envDefault:"10000"`
	MaxExpandedLength int           `env:"FORMULA_MAX_EXPANDED" envDefault:"1048576"`
	Timeout           time.Duration `env:"FORMULA_TIMEOUT" envDefault:"1s"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.StreamsEnabled {
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}

		if c.StreamKey == "" {
			return fmt.Errorf("STREAM_KEY is required")
		}

		if c.ConsumerGroup == "" {
			return fmt.Errorf("CONSUMER_GROUP is required")
		}

		if c.ResultStream == "" {
			return fmt.Errorf("RESULT_STREAM is required")
		}

		if c.BlockTime <= 0 {
			return fmt.Errorf("BLOCK_TIME must be positive")
		}
	}

	if c.ResultTTL < 0 {
		return fmt.Errorf("RESULT_TTL must be non-negative")
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}

	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}

	if c.AdmissionRule != "" {
		if err := cel.NewEvaluator().ValidateExpression(c.AdmissionRule); err != nil {
			return fmt.Errorf("ADMISSION_RULE is invalid: %w", err)
		}
	}

	if c.MaxInputLength <= 0 || c.MaxDepth <= 0 || c.MaxSteps <= 0 ||
		c.MaxSumTerms <= 0 || c.MaxExpandedLength <= 0 {
		return fmt.Errorf("FORMULA_MAX_* limits must be positive")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("FORMULA_TIMEOUT must be positive")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// FormulaLimits returns the per-formula resource limits
func (c *Config) FormulaLimits() formula.Limits {
	return formula.Limits{
		MaxInputLength:    c.MaxInputLength,
		MaxDepth:          c.MaxDepth,
		MaxSteps:          c.MaxSteps,
		MaxSumTerms:       c.MaxSumTerms,
		MaxExpandedLength: c.MaxExpandedLength,
		Timeout:           c.Timeout,
	}
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisAddr=%s, RedisDB=%d, StreamsEnabled=%v, StreamKey=%s, ConsumerGroup=%s, "+
			"ResultStream=%s, HTTPPort=%d, BatchConcurrency=%d, AdmissionRule=%q, Timeout=%s, LogLevel=%s}",
		c.WorkerID,
		c.RedisAddr,
		c.RedisDB,
		c.StreamsEnabled,
		c.StreamKey,
		c.ConsumerGroup,
		c.ResultStream,
		c.HTTPPort,
		c.BatchConcurrency,
		c.AdmissionRule,
		c.Timeout,
		c.LogLevel,
	)
}
