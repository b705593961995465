package formula

import (
	"context"
	"strings"
	"time"
)

// Limits bounds the work done for one formula. Zero fields take the
// corresponding DefaultLimits value.
type Limits struct {
	// MaxInputLength is the longest raw formula accepted, in bytes.
	MaxInputLength int
	// MaxDepth is the deepest expression nesting the parser accepts.
	MaxDepth int
	// MaxSteps caps evaluator node visits.
	MaxSteps int
	// MaxSumTerms caps the terms of one summation.
	MaxSumTerms int
	// MaxExpandedLength caps the canonical expression after sum expansion.
	MaxExpandedLength int
	// Timeout caps wall time for one formula.
	Timeout time.Duration
}

// DefaultLimits returns the limits used by the package-level Evaluate.
func DefaultLimits() Limits {
	return Limits{
		MaxInputLength:    8192,
		MaxDepth:          DefaultMaxDepth,
		MaxSteps:          1_000_000,
		MaxSumTerms:       10_000,
		MaxExpandedLength: 1 << 20,
		Timeout:           time.Second,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxInputLength <= 0 {
		l.MaxInputLength = d.MaxInputLength
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxSteps <= 0 {
		l.MaxSteps = d.MaxSteps
	}
	if l.MaxSumTerms <= 0 {
		l.MaxSumTerms = d.MaxSumTerms
	}
	if l.MaxExpandedLength <= 0 {
		l.MaxExpandedLength = d.MaxExpandedLength
	}
	if l.Timeout <= 0 {
		l.Timeout = d.Timeout
	}
	return l
}

// Evaluator runs the full pipeline under a fixed set of limits. It holds no
// mutable state and is safe for concurrent use.
type Evaluator struct {
	limits Limits
}

// NewEvaluator creates an evaluator with the given limits.
func NewEvaluator(limits Limits) *Evaluator {
	return &Evaluator{limits: limits.withDefaults()}
}

// Limits returns the effective limits.
func (ev *Evaluator) Limits() Limits {
	return ev.limits
}

// Evaluate translates raw and evaluates it against vars.
func (ev *Evaluator) Evaluate(ctx context.Context, raw string, vars Bindings) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, ev.limits.Timeout)
	defer cancel()

	r := &run{ctx: ctx, vars: vars, limits: ev.limits}
	canonical, err := r.canonicalize(raw)
	if err != nil {
		return 0, err
	}
	node, err := parseDepth(canonical, ev.limits.MaxDepth)
	if err != nil {
		return 0, err
	}
	return Eval(ctx, node, vars, ev.limits)
}

// Canonicalize returns the canonical expression the parser would see. vars
// are needed only to resolve summation bounds.
func (ev *Evaluator) Canonicalize(ctx context.Context, raw string, vars Bindings) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ev.limits.Timeout)
	defer cancel()

	r := &run{ctx: ctx, vars: vars, limits: ev.limits}
	return r.canonicalize(raw)
}

// Evaluate runs the pipeline with DefaultLimits.
func Evaluate(ctx context.Context, raw string, vars Bindings) (float64, error) {
	return NewEvaluator(DefaultLimits()).Evaluate(ctx, raw, vars)
}

// run carries the per-call state of one pipeline pass.
type run struct {
	ctx    context.Context
	vars   Bindings
	limits Limits
}

func (r *run) canonicalize(raw string) (string, error) {
	if len(raw) > r.limits.MaxInputLength {
		return "", exhausted("input_length", "formula is longer than %d bytes", r.limits.MaxInputLength)
	}
	s := Normalize(raw)
	s, err := ResolveFractions(s)
	if err != nil {
		return "", err
	}
	if s, err = RewriteStructure(s); err != nil {
		return "", err
	}
	if s, err = r.expandSums(s); err != nil {
		return "", err
	}
	s = InsertImplicitMultiplication(s)
	if i := strings.IndexByte(s, '\\'); i >= 0 {
		name, _ := macroAt(s, i)
		return "", newError(CodeUnsupportedConstruct, map[string]string{"macro": name},
			`unsupported macro \%s`, name)
	}
	if err := r.ctx.Err(); err != nil {
		return "", wrapError(CodeResourceExhausted, err, map[string]string{"limit": "time"},
			"evaluation time budget exceeded")
	}
	return s, nil
}

// evalFragment evaluates a summation bound written in the same notation as
// the surrounding formula.
func (r *run) evalFragment(text string) (float64, error) {
	s, err := RewriteStructure(text)
	if err != nil {
		return 0, err
	}
	if i, _ := nextMacro(s, "sum"); i >= 0 {
		return 0, newError(CodeUnsupportedConstruct, map[string]string{"macro": "sum"},
			"nested summations are not supported")
	}
	node, err := parseDepth(InsertImplicitMultiplication(s), r.limits.MaxDepth)
	if err != nil {
		return 0, err
	}
	return Eval(r.ctx, node, r.vars, r.limits)
}
