package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// interruptCheckFrequency is how many comprehension iterations run between
// context checks.
const interruptCheckFrequency = 100

// Case is the view of one batch case that admission rules can inspect.
type Case struct {
	Name      string
	Formula   string
	Variables map[string]float64
}

func (c Case) activation() map[string]interface{} {
	vars := c.Variables
	if vars == nil {
		vars = map[string]float64{}
	}
	return map[string]interface{}{
		"name":      c.Name,
		"formula":   c.Formula,
		"variables": vars,
	}
}

// Evaluator evaluates CEL admission rules
type Evaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new CEL evaluator
func NewEvaluator() *Evaluator {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("formula", cel.StringType),
		cel.Variable("variables", cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}

	return &Evaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}
}

// Evaluate evaluates a CEL expression against a case
func (e *Evaluator) Evaluate(ctx context.Context, expression string, c Case) (interface{}, error) {
	// Get or compile program
	program, err := e.getProgram(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	out, _, err := program.ContextEval(ctx, c.activation())
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return out.Value(), nil
}

// Admit reports whether rule accepts the case. The rule must produce a bool.
func (e *Evaluator) Admit(ctx context.Context, rule string, c Case) (bool, error) {
	result, err := e.Evaluate(ctx, rule, c)
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("admission rule returned %T, want bool", result)
	}
	return ok, nil
}

// getProgram gets a compiled program from cache or compiles it
func (e *Evaluator) getProgram(expression string) (cel.Program, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}

	program, err := e.env.Program(ast, cel.InterruptCheckFrequency(interruptCheckFrequency))
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}

	e.cache[expression] = program

	return program, nil
}

// ValidateExpression checks that expression compiles and yields a boolean
func (e *Evaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	return nil
}

// ClearCache clears the compiled program cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}
