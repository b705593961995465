package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aescanero/dago-node-formula/internal/formula"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newService(t *testing.T, opts Options) *Service {
	t.Helper()
	svc, err := NewService(opts, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func result(v float64) *float64 {
	return &v
}

func TestEvaluateAll(t *testing.T) {
	svc := newService(t, Options{Concurrency: 4})

	cases := []Case{
		{Formula: `\frac{1}{2}`},
		{Formula: `1/0`},
		{Formula: `\frac{\frac{1}{2}}{4}`},
		{Formula: `x + 1`},
		{Formula: `2^{3}`},
		{Formula: `\sum_{i=1}^{3}(i)`},
		{Formula: `\frac{1}{2`},
		{Formula: `2x`, Variables: map[string]float64{"x": 5}},
		{Formula: `\beta_i \cdot x`, Variables: map[string]float64{"beta_i": 2, "x": 3}},
		{Formula: `\frac{1}{3}`},
	}
	got := svc.EvaluateAll(context.Background(), cases)

	require.Len(t, got, len(cases))
	assert.Equal(t, Outcome{Result: result(0.5)}, got[0])
	assert.Equal(t, "DivisionByZero: division by zero in (1 / 0)", got[1].Error)
	assert.Equal(t, Outcome{Result: result(0.125)}, got[2])
	assert.Equal(t, `UnboundVariable: variable "x" is not bound`, got[3].Error)
	assert.Equal(t, Outcome{Result: result(8)}, got[4])
	assert.Equal(t, Outcome{Result: result(6)}, got[5])
	assert.Contains(t, got[6].Error, "MalformedFraction: ")
	assert.Equal(t, Outcome{Result: result(10)}, got[7])
	assert.Equal(t, Outcome{Result: result(6)}, got[8])
	assert.Equal(t, Outcome{Result: result(0.3333)}, got[9])
}

func TestEvaluateAllPreservesOrder(t *testing.T) {
	svc := newService(t, Options{Concurrency: 8})

	cases := make([]Case, 200)
	for i := range cases {
		if i%3 == 0 {
			cases[i] = Case{Formula: "n/0", Variables: map[string]float64{"n": float64(i)}}
			continue
		}
		cases[i] = Case{Formula: `\sum_{k=1}^{n}(1)`, Variables: map[string]float64{"n": float64(i)}}
	}
	got := svc.EvaluateAll(context.Background(), cases)

	require.Len(t, got, len(cases))
	for i, o := range got {
		if i%3 == 0 {
			assert.True(t, o.Failed(), "case %d", i)
			continue
		}
		require.NotNil(t, o.Result, "case %d: %s", i, o.Error)
		assert.Equal(t, float64(i), *o.Result, "case %d", i)
	}
}

func TestEvaluateAllEmpty(t *testing.T) {
	svc := newService(t, Options{})
	assert.Empty(t, svc.EvaluateAll(context.Background(), nil))
}

func TestEvaluateAllZeroResult(t *testing.T) {
	svc := newService(t, Options{})
	got := svc.EvaluateAll(context.Background(), []Case{{Formula: "a - a", Variables: map[string]float64{"a": 1}}})

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"result": 0}]`, string(b))
}

func TestAdmission(t *testing.T) {
	svc := newService(t, Options{AdmissionRule: `size(formula) < 20 && !("secret" in variables)`})

	got := svc.EvaluateAll(context.Background(), []Case{
		{Formula: `1 + 1`},
		{Formula: `\sum_{i=1}^{1000}(i) + 0`},
		{Formula: `secret`, Variables: map[string]float64{"secret": 1}},
	})

	assert.Equal(t, Outcome{Result: result(2)}, got[0])
	assert.Equal(t, "ResourceExhausted: case rejected by admission rule (limit: admission)", got[1].Error)
	assert.Equal(t, "ResourceExhausted: case rejected by admission rule (limit: admission)", got[2].Error)
}

func TestAdmissionRuleInvalid(t *testing.T) {
	_, err := NewService(Options{AdmissionRule: "size(formula)"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile admission rule")
}

func TestLimitsApply(t *testing.T) {
	svc := newService(t, Options{Limits: formula.Limits{MaxSumTerms: 5}})

	got := svc.EvaluateAll(context.Background(), []Case{
		{Formula: `\sum_{i=1}^{6}(i)`},
		{Formula: `\sum_{i=1}^{5}(i)`},
	})
	assert.Contains(t, got[0].Error, "ResourceExhausted: ")
	assert.Equal(t, Outcome{Result: result(15)}, got[1])
}

func TestEvaluateJSON(t *testing.T) {
	svc := newService(t, Options{Concurrency: 2})

	body := []byte(`[
		{"name": "half", "formula": "\\frac{1}{2}", "variables": {}},
		{"formula": "x", "variables": {"x": "not a number"}},
		{"formula": "2x", "variables": {"x": 5}},
		42,
		{"formula": "\\frac{2}{3}"}
	]`)
	got, err := svc.EvaluateJSON(context.Background(), body)
	require.NoError(t, err)

	require.Len(t, got, 5)
	assert.Equal(t, Outcome{Result: result(0.5)}, got[0])
	assert.Contains(t, got[1].Error, "invalid case")
	assert.Equal(t, Outcome{Result: result(10)}, got[2])
	assert.Contains(t, got[3].Error, "invalid case")
	assert.Equal(t, Outcome{Result: result(0.6667)}, got[4])
}

func TestEvaluateJSONNotArray(t *testing.T) {
	svc := newService(t, Options{})
	for _, body := range []string{`{"formula": "1"}`, `not json`, ``} {
		_, err := svc.EvaluateJSON(context.Background(), []byte(body))
		assert.Error(t, err, body)
	}
}

func TestOutcomeJSON(t *testing.T) {
	b, err := json.Marshal([]Outcome{{Result: result(1.5)}, {Error: "SyntaxError: empty expression"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"result": 1.5}, {"error": "SyntaxError: empty expression"}]`, string(b))
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc, err := NewService(Options{}, zap.New(core))
	require.NoError(t, err)

	svc.EvaluateAll(context.Background(), []Case{
		{Name: "ok", Formula: "1"},
		{Name: "broken", Formula: "1/0"},
	})

	failed := logs.FilterMessage("Case failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].ContextMap()["name"])
	assert.Equal(t, "DivisionByZero", failed[0].ContextMap()["code"])

	batches := logs.FilterMessage("Batch evaluated").All()
	require.Len(t, batches, 1)
	assert.EqualValues(t, 2, batches[0].ContextMap()["cases"])
	assert.EqualValues(t, 1, batches[0].ContextMap()["failed"])
}

func TestRound(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{1.0 / 3, 0.3333},
		{2.0 / 3, 0.6667},
		{-2.0 / 3, -0.6667},
		{123.456789, 123.4568},
		{-0.00001, 0},
		{1e20, 1e20},
		{math.MaxFloat64, math.MaxFloat64},
	}
	for _, c := range cases {
		t.Run(fmt.Sprint(c.in), func(t *testing.T) {
			got := Round(c.in)
			assert.Equal(t, c.want, got)
			assert.False(t, math.Signbit(got) && got == 0)
		})
	}
}
