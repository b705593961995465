// Package batch evaluates ordered lists of formula cases.
//
// Each case is admitted against an optional CEL rule, evaluated with the
// configured limits, rounded to 4 decimal places and rendered as either
// {"result": n} or {"error": "<Code>: <message>"}. Outcomes keep input order
// and a failing case, including one that panics, never affects the others.
//
// Example usage:
//
//	svc, err := batch.NewService(batch.Options{
//	    Limits:      cfg.FormulaLimits(),
//	    Concurrency: cfg.BatchConcurrency,
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	outcomes := svc.EvaluateAll(ctx, []batch.Case{
//	    {Formula: `\frac{1}{3}`},
//	    {Formula: `1/0`},
//	})
//	// [{"result":0.3333},{"error":"DivisionByZero: division by zero in (1 / 0)"}]
package batch
