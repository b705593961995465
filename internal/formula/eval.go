package formula

import (
	"context"
	"math"
	"strconv"
)

// Bindings maps identifiers to caller-supplied values. Keys are matched
// exactly against post-normalization identifiers.
type Bindings map[string]float64

// constants resolve when the caller has not bound the name.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	call    func(args []float64) (float64, error)
}

// functions is the complete set of callable names.
var functions = map[string]function{
	"max": {minArgs: 1, maxArgs: -1, call: func(args []float64) (float64, error) {
		m := args[0]
		for _, a := range args[1:] {
			m = math.Max(m, a)
		}
		return m, nil
	}},
	"min": {minArgs: 1, maxArgs: -1, call: func(args []float64) (float64, error) {
		m := args[0]
		for _, a := range args[1:] {
			m = math.Min(m, a)
		}
		return m, nil
	}},
	"log": {minArgs: 1, maxArgs: 2, call: func(args []float64) (float64, error) {
		if len(args) == 1 {
			return math.Log(args[0]), nil
		}
		base := math.Log(args[1])
		if base == 0 {
			return 0, newError(CodeDivisionByZero, map[string]string{"name": "log"}, "log base 1")
		}
		return math.Log(args[0]) / base, nil
	}},
}

// ctxCheckInterval is how many steps pass between context checks.
const ctxCheckInterval = 256

type evaluator struct {
	ctx      context.Context
	vars     Bindings
	scope    map[string]float64
	steps    int
	maxSteps int
	maxTerms int
}

// Eval evaluates n against vars. Identifiers resolve to scoped summation
// indices, then caller bindings, then the constants pi and e; anything else
// is UnboundVariable. Every intermediate value must be finite.
func Eval(ctx context.Context, n Node, vars Bindings, limits Limits) (float64, error) {
	limits = limits.withDefaults()
	e := &evaluator{
		ctx:      ctx,
		vars:     vars,
		scope:    make(map[string]float64),
		maxSteps: limits.MaxSteps,
		maxTerms: limits.MaxSumTerms,
	}
	return e.eval(n)
}

func (e *evaluator) step() error {
	e.steps++
	if e.steps > e.maxSteps {
		return exhausted("steps", "evaluation exceeded %d steps", e.maxSteps)
	}
	if e.steps%ctxCheckInterval == 0 && e.ctx.Err() != nil {
		return wrapError(CodeResourceExhausted, e.ctx.Err(), map[string]string{"limit": "time"},
			"evaluation time budget exceeded")
	}
	return nil
}

func (e *evaluator) eval(n Node) (float64, error) {
	if err := e.step(); err != nil {
		return 0, err
	}
	switch n := n.(type) {
	case *Number:
		return finite(n.Value, n)
	case *Ident:
		return e.lookup(n.Name)
	case *Neg:
		v, err := e.eval(n.Operand)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case *Binary:
		return e.binary(n)
	case *Call:
		return e.call(n)
	case *Sum:
		return e.sum(n)
	}
	return 0, newError(CodeSyntaxError, nil, "unknown node %T", n)
}

func (e *evaluator) lookup(name string) (float64, error) {
	if v, ok := e.scope[name]; ok {
		return v, nil
	}
	if v, ok := e.vars[name]; ok {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, newError(CodeNumericOverflow, map[string]string{"name": name},
				"variable %q is not a finite number", name)
		}
		return v, nil
	}
	if v, ok := constants[name]; ok {
		return v, nil
	}
	return 0, newError(CodeUnboundVariable, map[string]string{"name": name},
		"variable %q is not bound", name)
}

func (e *evaluator) binary(n *Binary) (float64, error) {
	l, err := e.eval(n.Left)
	if err != nil {
		return 0, err
	}
	r, err := e.eval(n.Right)
	if err != nil {
		return 0, err
	}
	var v float64
	switch n.Op {
	case "+":
		v = l + r
	case "-":
		v = l - r
	case "*":
		v = l * r
	case "/":
		if r == 0 {
			return 0, newError(CodeDivisionByZero, nil, "division by zero in %s", n)
		}
		v = l / r
	case "**":
		if l == 0 && r < 0 {
			return 0, newError(CodeDivisionByZero, nil, "zero raised to a negative power in %s", n)
		}
		v = math.Pow(l, r)
	default:
		return 0, newError(CodeSyntaxError, map[string]string{"token": n.Op}, "unknown operator %q", n.Op)
	}
	return finite(v, n)
}

func (e *evaluator) call(n *Call) (float64, error) {
	fn, ok := functions[n.Name]
	if !ok {
		return 0, newError(CodeUnknownFunction, map[string]string{"name": n.Name},
			"function %q is not available", n.Name)
	}
	if len(n.Args) < fn.minArgs || fn.maxArgs >= 0 && len(n.Args) > fn.maxArgs {
		return 0, newError(CodeUnsupportedConstruct, map[string]string{"name": n.Name},
			"%s cannot take %d arguments", n.Name, len(n.Args))
	}
	args := make([]float64, len(n.Args))
	for i, a := range n.Args {
		v, err := e.eval(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	v, err := fn.call(args)
	if err != nil {
		return 0, err
	}
	return finite(v, n)
}

func (e *evaluator) sum(n *Sum) (float64, error) {
	lo, err := e.bound(n.Lower)
	if err != nil {
		return 0, err
	}
	hi, err := e.bound(n.Upper)
	if err != nil {
		return 0, err
	}
	if hi >= lo && hi-lo+1 > int64(e.maxTerms) {
		return 0, exhausted("sum_terms", "summation over %s has more than %d terms", n.Var, e.maxTerms)
	}
	prev, shadowed := e.scope[n.Var]
	defer func() {
		if shadowed {
			e.scope[n.Var] = prev
		} else {
			delete(e.scope, n.Var)
		}
	}()
	total := 0.0
	for k := lo; k <= hi; k++ {
		e.scope[n.Var] = float64(k)
		v, err := e.eval(n.Body)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return finite(total, n)
}

// bound evaluates a summation bound and truncates it toward zero.
func (e *evaluator) bound(n Node) (int64, error) {
	v, err := e.eval(n)
	if err != nil {
		return 0, err
	}
	return truncBound(v)
}

func truncBound(v float64) (int64, error) {
	if math.IsNaN(v) || math.Abs(v) > 1<<53 {
		return 0, newError(CodeUnsupportedConstruct, nil,
			"summation bound %s is not an integer", strconv.FormatFloat(v, 'g', -1, 64))
	}
	return int64(math.Trunc(v)), nil
}

func finite(v float64, n Node) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, newError(CodeNumericOverflow, nil, "%s is not a finite number", n)
	}
	return v, nil
}
