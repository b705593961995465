package formula

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		vars Bindings
		want float64
	}{
		{"fraction", `\frac{1}{2}`, nil, 0.5},
		{"nested fraction", `\frac{\frac{1}{2}}{4}`, nil, 0.125},
		{"slash fraction", `\frac{3}/{4}`, nil, 0.75},
		{"exponent", `2^{3}`, nil, 8},
		{"sum", `\sum_{i=1}^{3}(i)`, nil, 6},
		{"implicit multiplication", `2x`, Bindings{"x": 5}, 10},
		{"greek subscript", `\beta_i \cdot x`, Bindings{"beta_i": 2, "x": 3}, 6},
		{"display math", `$$y = \frac{a}{b}$$`, Bindings{"a": 1, "b": 4}, 0.25},
		{"coefficient power", `2x^2`, Bindings{"x": 3}, 18},
		{"negated power", `-2^2`, nil, -4},
		{"max", `\max{a, b}`, Bindings{"a": 1, "b": 2}, 2},
		{"min", `\min(a, b)`, Bindings{"a": 1, "b": 2}, 1},
		{"log base", `\log(8, 2)`, nil, 3},
		{"expectation", `E[R_m] - R_f`, Bindings{"E_R_m": 0.08, "R_f": 0.02}, 0.06},
		{"capm", `R_f + \beta_i (E[R_m] - R_f)`, Bindings{"R_f": 0.02, "beta_i": 1.5, "E_R_m": 0.08}, 0.11},
		{"text variable", `\text{Price} \times q`, Bindings{"Price": 10, "q": 3}, 30},
		{"pi", `2\pi \cdot r`, Bindings{"r": 1}, 2 * 3.141592653589793},
		{"euler", `e^{x}`, Bindings{"x": 0}, 1},
		{"parenthesized product", `(a)(b)`, Bindings{"a": 3, "b": 4}, 12},
		{"brackets", `[a + b] \cdot 2`, Bindings{"a": 1, "b": 2}, 6},
		{"sum bound from binding", `\sum_{i=1}^{N}(i x)`, Bindings{"N": 4, "x": 2}, 20},
		{"sum bound truncated", `\sum_{i=1}^{N}(i)`, Bindings{"N": 3.7}, 6},
		{"sum bare upper", `\sum_{k=0}^3(2k)`, nil, 12},
		{"sum index not a substring", `\sum_{i=1}^{2}(i \cdot pi_i)`, Bindings{"pi_i": 1}, 3},
		{"empty sum", `\sum_{i=3}^{1}(i)`, nil, 0},
		{"sum in context", `1 + 2\sum_{i=1}^{2}(i)`, nil, 7},
		{"two sums", `\sum_{i=1}^{2}(i) + \sum_{j=1}^{3}(j)`, nil, 9},
		{"sum of products", `\sum_{i=1}^{3}(i \cdot i + 1)`, nil, 17},
		{"euler ignores binding", `e^{1}`, Bindings{"e": 5}, 2.718281828459045},
		{"binding named e", `e \cdot 2`, Bindings{"e": 5}, 10},
		{"control characters", "1 +\x00\t\\sum_{i=1}^{2}(i)", nil, 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Evaluate(context.Background(), c.in, c.vars)
			require.NoError(t, err)
			assert.InDelta(t, c.want, got, 1e-9)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		vars Bindings
		code Code
	}{
		{"division by zero", `1/0`, nil, CodeDivisionByZero},
		{"fraction by zero", `\frac{1}{0}`, nil, CodeDivisionByZero},
		{"malformed fraction", `\frac{1}{2`, nil, CodeMalformedFraction},
		{"unsupported macro", `\sqrt{2}`, nil, CodeUnsupportedConstruct},
		{"nested sum", `\sum_{i=1}^{2}(\sum_{j=1}^{2}(j))`, nil, CodeUnsupportedConstruct},
		{"sum without body", `\sum_{i=1}^{2} i`, nil, CodeUnsupportedConstruct},
		{"sum unbound bound", `\sum_{i=1}^{N}(i)`, nil, CodeUnsupportedConstruct},
		{"chained exponent", `a^b^c`, Bindings{"a": 1, "b": 1, "c": 1}, CodeUnsupportedConstruct},
		{"nested subscript", `a_{b_{c}}`, nil, CodeUnsupportedConstruct},
		{"syntax", `1 + * 2`, nil, CodeSyntaxError},
		{"unbalanced", `(1 + 2`, nil, CodeSyntaxError},
		{"unbound", `x + 1`, nil, CodeUnboundVariable},
		{"overflow", `10^{400}`, nil, CodeNumericOverflow},
		{"literal out of range", `1e999`, nil, CodeNumericOverflow},
		{"zero to negative power", `0^{-1}`, nil, CodeDivisionByZero},
		{"zero to negative variable", `0^{n}`, Bindings{"n": -2}, CodeDivisionByZero},
		{"sum body with parentheses", `\sum_{i=1}^{3}((i+1)*2)`, nil, CodeUnsupportedConstruct},
		{"sum body with brackets", `\sum_{i=1}^{3}([i+1] \cdot 2)`, nil, CodeUnsupportedConstruct},
		{"sum body with exponent", `\sum_{k=0}^{3}(2^{k})`, nil, CodeUnsupportedConstruct},
		{"fraction in sum", `\sum_{i=1}^{4}(\frac{1}{2^{i}})`, nil, CodeUnsupportedConstruct},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Evaluate(context.Background(), c.in, c.vars)
			require.Error(t, err)
			assert.Equal(t, c.code, CodeOf(err), "got %v", err)
		})
	}
}

func TestEvaluateFractionMatchesDivision(t *testing.T) {
	for n := -20; n <= 20; n++ {
		for d := -7; d <= 7; d++ {
			if d == 0 {
				continue
			}
			in := fmt.Sprintf(`\frac{%d}{%d}`, n, d)
			got, err := Evaluate(context.Background(), in, nil)
			require.NoError(t, err, in)
			assert.InDelta(t, float64(n)/float64(d), got, 1e-12, in)
		}
	}
}

func TestEvaluateUnboundNeverDefaults(t *testing.T) {
	vars := Bindings{"a": 1, "b": 2}
	for _, in := range []string{`a + z`, `z \cdot 0`, `\frac{z}{1}`, `\max{a, z}`, `0^{z}`} {
		_, err := Evaluate(context.Background(), in, vars)
		require.Error(t, err, in)
		assert.ErrorIs(t, err, ErrUnboundVariable, in)
	}
}

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		vars Bindings
		want string
	}{
		{"fraction times variable", `\frac{1}{2}x`, nil, "((1)/(2))*x"},
		{"greek", `\beta_i \cdot x`, nil, "beta_i * x"},
		{"exponent", `2^{3}`, nil, "(2)**(3)"},
		{"sum", `\sum_{i=1}^{3}(i)`, nil, "(((1))+((2))+((3)))"},
		{"empty sum", `\sum_{i=2}^{1}(i)`, nil, "(0)"},
		{"implicit", `2x`, nil, "2*x"},
		{"euler base is numeric", `e^{x}`, Bindings{"e": 5}, "(2.718281828459045)**(x)"},
	}
	ev := NewEvaluator(DefaultLimits())
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ev.Canonicalize(context.Background(), c.in, c.vars)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	inputs := []string{
		`\frac{1}{2}x`,
		`$$y = \frac{\alpha}{2} \cdot x^{2}$$`,
		`R_f + \beta_i (E[R_m] - R_f)`,
		`\sum_{i=1}^{3}(i \cdot 2 + 1)`,
		`e^{x} + 2`,
		`\max{a, b} + \log(x, 2)`,
		`{a + b}[c]`,
	}
	ev := NewEvaluator(DefaultLimits())
	for _, in := range inputs {
		canonical, err := ev.Canonicalize(context.Background(), in, nil)
		require.NoError(t, err, in)

		again := Normalize(canonical)
		again, err = ResolveFractions(again)
		require.NoError(t, err, in)
		again, err = RewriteStructure(again)
		require.NoError(t, err, in)
		again = InsertImplicitMultiplication(again)
		assert.Equal(t, canonical, again, in)
	}
}

func TestEvaluatorLimits(t *testing.T) {
	t.Run("input length", func(t *testing.T) {
		ev := NewEvaluator(Limits{MaxInputLength: 4})
		_, err := ev.Evaluate(context.Background(), "1+2+3", nil)
		assert.Equal(t, CodeResourceExhausted, CodeOf(err))
	})
	t.Run("sum terms", func(t *testing.T) {
		ev := NewEvaluator(Limits{MaxSumTerms: 10})
		_, err := ev.Evaluate(context.Background(), `\sum_{i=1}^{11}(i)`, nil)
		assert.Equal(t, CodeResourceExhausted, CodeOf(err))
		v, err := ev.Evaluate(context.Background(), `\sum_{i=1}^{10}(i)`, nil)
		require.NoError(t, err)
		assert.Equal(t, 55.0, v)
	})
	t.Run("expanded length", func(t *testing.T) {
		ev := NewEvaluator(Limits{MaxExpandedLength: 64})
		_, err := ev.Evaluate(context.Background(), `\sum_{i=1}^{100}(i)`, nil)
		assert.Equal(t, CodeResourceExhausted, CodeOf(err))
	})
	t.Run("depth", func(t *testing.T) {
		ev := NewEvaluator(Limits{MaxDepth: 8})
		_, err := ev.Evaluate(context.Background(), strings.Repeat("(", 10)+"1"+strings.Repeat(")", 10), nil)
		assert.Equal(t, CodeResourceExhausted, CodeOf(err))
	})
	t.Run("steps", func(t *testing.T) {
		ev := NewEvaluator(Limits{MaxSteps: 100})
		_, err := ev.Evaluate(context.Background(), `\sum_{i=1}^{200}(i)`, nil)
		assert.Equal(t, CodeResourceExhausted, CodeOf(err))
	})
	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Evaluate(ctx, `1 + 1`, nil)
		assert.Equal(t, CodeResourceExhausted, CodeOf(err))
	})
	t.Run("timeout", func(t *testing.T) {
		ev := NewEvaluator(Limits{Timeout: time.Nanosecond, MaxSteps: 1 << 30, MaxSumTerms: 1 << 20, MaxExpandedLength: 1 << 26})
		_, err := ev.Evaluate(context.Background(), `\sum_{i=1}^{1000000}(i*i)`, nil)
		assert.Equal(t, CodeResourceExhausted, CodeOf(err))
	})
}

func TestLimitsDefaults(t *testing.T) {
	ev := NewEvaluator(Limits{MaxSteps: 10})
	l := ev.Limits()
	assert.Equal(t, 10, l.MaxSteps)
	assert.Equal(t, DefaultLimits().MaxDepth, l.MaxDepth)
	assert.Equal(t, DefaultLimits().Timeout, l.Timeout)
}

func TestEvaluateConcurrent(t *testing.T) {
	ev := NewEvaluator(DefaultLimits())
	done := make(chan error, 32)
	for i := 0; i < cap(done); i++ {
		go func(i int) {
			v, err := ev.Evaluate(context.Background(), `\sum_{k=1}^{n}(k)`, Bindings{"n": float64(i)})
			if err == nil && v != float64(i*(i+1)/2) {
				err = fmt.Errorf("n=%d: got %v", i, v)
			}
			done <- err
		}(i)
	}
	for i := 0; i < cap(done); i++ {
		assert.NoError(t, <-done)
	}
}
