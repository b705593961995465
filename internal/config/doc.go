// Package config provides configuration management for the formula worker.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development; setting
// STREAMS_ENABLED=false runs the HTTP endpoint without Redis.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ev := formula.NewEvaluator(cfg.FormulaLimits())
package config
