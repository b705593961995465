// Package formula translates a constrained subset of LaTeX math notation into
// a canonical arithmetic expression and evaluates it against caller bindings.
//
// The pipeline is a sequence of pure stages, each consuming the previous
// stage's string:
//
//	Normalize                      display wrappers, \text, spacing, Greek, \cdot
//	ResolveFractions               \frac{n}{d} -> ((n)/(d))
//	RewriteStructure               subscripts, E[x], exponents, \max/\min/\log, braces
//	(sum expansion)                \sum_{i=a}^{b}(body) -> ((body_a)+...+(body_b))
//	InsertImplicitMultiplication   2x -> 2*x, (a)(b) -> (a)*(b)
//	Parse                          canonical string -> Node
//	Eval                           Node + Bindings -> float64
//
// Evaluation is a dispatch over a closed set of node types. Identifiers
// resolve only to caller bindings and the constants pi and e, and calls only
// to max, min and log; nothing in an expression can reach the host.
//
// Example usage:
//
//	v, err := formula.Evaluate(ctx, `\frac{\beta_i}{2} \cdot x`, formula.Bindings{
//	    "beta_i": 2,
//	    "x":      3,
//	})
//	if err != nil {
//	    switch formula.CodeOf(err) {
//	    case formula.CodeUnboundVariable:
//	        // ...
//	    }
//	}
//
// Every failure is a *Error whose Code is one of MalformedFraction,
// UnsupportedConstruct, SyntaxError, UnboundVariable, UnknownFunction,
// DivisionByZero, NumericOverflow or ResourceExhausted. Work per formula is
// bounded by Limits; breaching a limit is ResourceExhausted, never a hang.
package formula
