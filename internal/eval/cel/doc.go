// Package cel provides a CEL (Common Expression Language) evaluator for batch
// admission rules.
//
// A rule sees one case at a time through three variables:
//
//	name       string               case label, empty when the caller gave none
//	formula    string               the raw formula text
//	variables  map(string, double)  the case bindings
//
// Example usage:
//
//	evaluator := cel.NewEvaluator()
//
//	ok, err := evaluator.Admit(ctx, "size(formula) < 512 && size(variables) <= 64", cel.Case{
//	    Formula:   `\frac{a}{b}`,
//	    Variables: map[string]float64{"a": 1, "b": 2},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - Map access and macros: variables["x"], "x" in variables, all, exists
package cel
