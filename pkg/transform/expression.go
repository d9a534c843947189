package transform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultTimeout bounds the evaluation of a single statement.
const DefaultTimeout = 5 * time.Second

// evaluator runs single script statements with expr-lang. Statements are
// sandboxed: only the functions registered through options and the
// variables of the environment are reachable.
type evaluator struct {
	timeout time.Duration
	options []expr.Option
}

func newEvaluator(timeout time.Duration, options ...expr.Option) *evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &evaluator{timeout: timeout, options: options}
}

// Evaluate compiles and runs a statement against env.
func (e *evaluator) Evaluate(ctx context.Context, statement string, env map[string]interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := validateExpression(statement); err != nil {
		return nil, err
	}

	program, err := e.compile(statement, env)
	if err != nil {
		return nil, err
	}

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("%w: %v", ErrInvalidExpression, r)
			}
		}()
		result, err := vm.Run(program, env)
		if err != nil {
			errChan <- classify(err)
			return
		}
		resultChan <- result
	}()

	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result, nil
	case err := <-errChan:
		return nil, err
	case <-time.After(timeout):
		return nil, ErrEvaluationTimeout
	}
}

func (e *evaluator) compile(statement string, env map[string]interface{}) (*vm.Program, error) {
	options := append([]expr.Option{expr.Env(env)}, e.options...)
	program, err := expr.Compile(statement, options...)
	if err != nil {
		return nil, classify(err)
	}
	return program, nil
}

// classify maps expr errors onto the package sentinels.
func classify(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "undefined") || strings.Contains(msg, "unknown name") {
		return fmt.Errorf("%w: %v", ErrUndefinedVariable, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidExpression, err)
}

// validateExpression rejects statements that try to reach outside the sandbox.
func validateExpression(expression string) error {
	unsafePatterns := []string{
		"os.",
		"exec.",
		"http.",
		"net.",
		"syscall.",
		"unsafe.",
		"__proto__",
		"ReadFile",
		"WriteFile",
	}

	lowerExpr := strings.ToLower(expression)
	for _, pattern := range unsafePatterns {
		if strings.Contains(lowerExpr, strings.ToLower(pattern)) {
			return ErrUnsafeOperation
		}
	}
	return nil
}

// isTruthy checks if a value is truthy in a boolean context.
// Falsy values: nil, false, 0, 0.0, empty string, empty collections.
func isTruthy(val interface{}) bool {
	if val == nil {
		return false
	}

	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}
