package transform

import "fmt"

// extractParam is a generic helper for type-safe parameter extraction from
// script function parameters.
//
// Example usage:
//
//	name, err := extractParam[string](params, 0, "name")
//	if err != nil {
//	    return nil, err
//	}
func extractParam[T any](params []interface{}, index int, name string) (T, error) {
	var zero T

	if index >= len(params) {
		return zero, fmt.Errorf("parameter %d (%s) not provided", index, name)
	}

	if v, ok := params[index].(T); ok {
		return v, nil
	}

	return zero, fmt.Errorf("%w: parameter %d (%s) must be %T, got %T", ErrTypeMismatch, index, name, zero, params[index])
}

// checkArity verifies the number of parameters passed to a script function.
func checkArity(fn string, params []interface{}, n int) error {
	if len(params) != n {
		return fmt.Errorf("%s() requires %d argument(s), got %d", fn, n, len(params))
	}
	return nil
}
