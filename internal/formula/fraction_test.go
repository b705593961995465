package formula

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFractions(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `\frac{1}{2}`, "((1)/(2))"},
		{"slash form", `\frac{a}/{b}`, "((a)/(b))"},
		{"whitespace", `\frac {a} {b}`, "((a)/(b))"},
		{"aliases", `\dfrac{a}{b} + \tfrac{c}{d}`, "((a)/(b)) + ((c)/(d))"},
		{"nested numerator", `\frac{\frac{1}{2}}{4}`, "((((1)/(2)))/(4))"},
		{"nested denominator", `\frac{1}{1+\frac{x}{y}}`, "((1)/(1+((x)/(y))))"},
		{"braces in operand", `\frac{x_{i}}{2}`, "((x_{i})/(2))"},
		{"no fraction", `a + b`, "a + b"},
		{"other macro", `\max{a, b}`, `\max{a, b}`},
		{"prefix is not a fraction", `\fraction{a}{b}`, `\fraction{a}{b}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ResolveFractions(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
			assert.NotContains(t, got, `\frac`)
		})
	}
}

func TestResolveFractionsMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"unbalanced numerator", `\frac{1{2}`},
		{"unbalanced denominator", `\frac{1}{2`},
		{"missing denominator", `\frac{1}`},
		{"missing numerator", `\frac 1 2`},
		{"slash without group", `\frac{1}/2`},
		{"empty operand", `\frac{}{2}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ResolveFractions(c.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedFraction), "got %v", err)
		})
	}
}

func TestResolveFractionsTooDeep(t *testing.T) {
	in := `\frac{` + strings.Repeat("{", maxGroupDepth+1) + strings.Repeat("}", maxGroupDepth+1) + `}{2}`
	_, err := ResolveFractions(in)
	require.Error(t, err)
	assert.Equal(t, CodeResourceExhausted, CodeOf(err))
}
