// Package store persists evaluated stream requests in Redis.
//
// Each result is a JSON string under formula:result:<request_id>, expiring
// after the configured RESULT_TTL.
//
// Example usage:
//
//	results := store.NewResultStore(redisClient, cfg.ResultTTL, logger)
//	if err := results.Save(ctx, &store.Result{RequestID: id, Outcomes: outcomes}); err != nil {
//	    return err
//	}
//	r, err := results.Load(ctx, id)
//	if errors.Is(err, store.ErrNotFound) {
//	    // expired or never evaluated
//	}
package store
