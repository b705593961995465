package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out strings.Builder
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEval(t *testing.T) {
	out, err := execute(t, "eval", `R_f + \beta_i (E[R_m] - R_f)`,
		"--var", "R_f=0.02", "--var", "beta_i=1.5", "--var", "E_R_m=0.08")
	require.NoError(t, err)
	assert.Equal(t, "0.11\n", out)
}

func TestEvalRounds(t *testing.T) {
	out, err := execute(t, "eval", `\frac{1}{3}`)
	require.NoError(t, err)
	assert.Equal(t, "0.3333\n", out)
}

func TestEvalError(t *testing.T) {
	_, err := execute(t, "eval", "1/0")
	require.Error(t, err)
	assert.Equal(t, "DivisionByZero: division by zero in (1 / 0)", err.Error())

	_, err = execute(t, "eval", "x + 1")
	require.Error(t, err)
	assert.Equal(t, `UnboundVariable: variable "x" is not bound`, err.Error())
}

func TestEvalBadVar(t *testing.T) {
	for _, v := range []string{"x", "=1", "x=abc"} {
		_, err := execute(t, "eval", "x", "--var", v)
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "invalid --var", v)
	}
}

func TestEvalSumLimit(t *testing.T) {
	_, err := execute(t, "eval", `\sum_{i=1}^{20}(i)`, "--max-sum-terms", "10")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "ResourceExhausted:"), err.Error())
}

func TestCanonical(t *testing.T) {
	out, err := execute(t, "canonical", `\frac{1}{2}x`)
	require.NoError(t, err)
	assert.Equal(t, "((1)/(2))*x\n", out)

	out, err = execute(t, "canonical", `\sum_{i=1}^{n}(i)`, "--var", "n=3")
	require.NoError(t, err)
	assert.Equal(t, "(((1))+((2))+((3)))\n", out)
}

func TestBatchJSON(t *testing.T) {
	path := writeFile(t, "cases.json", `[
		{"formula": "\\frac{1}{2}", "variables": {}},
		{"formula": "1/0", "variables": {}}
	]`)

	out, err := execute(t, "batch", path)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"result": 0.5},
		{"error": "DivisionByZero: division by zero in (1 / 0)"}
	]`, out)
}

func TestBatchYAML(t *testing.T) {
	path := writeFile(t, "cases.yaml", `
- name: scaled
  formula: '\frac{\beta_i}{2} \cdot x'
  variables:
    beta_i: 2
    x: 3
- name: unbound
  formula: 'x + y'
  variables:
    x: 1
`)

	out, err := execute(t, "batch", path)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"result": 3},
		{"error": "UnboundVariable: variable \"y\" is not bound"}
	]`, out)
}

func TestBatchRule(t *testing.T) {
	path := writeFile(t, "cases.json", `[
		{"name": "ok", "formula": "1", "variables": {}},
		{"name": "skip", "formula": "2", "variables": {}}
	]`)

	out, err := execute(t, "batch", path, "--rule", `name == "ok"`)
	require.NoError(t, err)
	assert.Contains(t, out, `"result": 1`)
	assert.Contains(t, out, "ResourceExhausted")
}

func TestBatchErrors(t *testing.T) {
	_, err := execute(t, "batch", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")

	_, err = execute(t, "batch", writeFile(t, "bad.json", `{"formula": "1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode batch")

	_, err = execute(t, "batch", writeFile(t, "bad.yaml", "formula: [1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")

	_, err = execute(t, "batch", writeFile(t, "cases.json", `[]`), "--rule", "name +")
	require.Error(t, err)
}
