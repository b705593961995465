// Package worker implements the formula worker lifecycle, its Redis Streams
// integration and its HTTP surface.
//
// The worker reads batch requests from a Redis stream consumer group,
// evaluates them with the batch service, stores each result and publishes it
// to the result stream. Messages that cannot be decoded or stored are
// reported on "<result stream>.errors"; every message is acknowledged.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	svc, _ := batch.NewService(batch.Options{Limits: cfg.FormulaLimits()}, logger)
//	results := store.NewResultStore(redisClient, cfg.ResultTTL, logger)
//
//	w := worker.NewWorker(cfg, redisClient, svc, results, logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// A stream request carries its cases under "data":
//
//	{"request_id": "r-1", "cases": [{"formula": "\\frac{1}{2}", "variables": {}}]}
//
// The HTTP server exposes:
//
//	POST /trading-formula   JSON array of cases in, JSON array of outcomes out
//	GET  /results/{id}      a stored stream result
//	GET  /health, /ready    liveness and readiness
//
//	server := worker.NewServer(8082, redisClient, svc, results, logger)
//	server.Start()
//	defer server.Stop()
package worker
