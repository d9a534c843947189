package workflow

import (
	"fmt"
	"math"
	"strconv"
)

// validateType is a generic helper for type-safe argument extraction.
// It checks if a value matches the expected type T and returns the typed value or an error.
func validateType[T any](value interface{}, fieldName string) (T, error) {
	if v, ok := value.(T); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("argument: type mismatch for %s: expected %T, got %T", fieldName, zero, value)
}

// toInt converts the numeric representations produced by YAML, JSON and
// Go literals to int. Non-integral floats are rejected.
func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		if float64(v) != math.Trunc(float64(v)) {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// toFloat converts numeric representations to float64.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		n, ok := toInt(v)
		return float64(n), ok
	}
}
