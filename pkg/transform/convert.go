package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ToString converts a script value to a cell value. nil becomes the empty
// (missing) value.
func ToString(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}

	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []byte:
		return string(val), nil
	case json.Number:
		return val.String(), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val), nil
		}
		return string(data), nil
	}
}

// ToInt converts a script value to an int. Floats must be integral.
func ToInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrTypeMismatch, val)
		}
		return int(val), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("%w: cannot parse %q as int", ErrTypeMismatch, val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to int", ErrTypeMismatch, v)
	}
}

// ToArray converts any slice or array to []interface{}.
func ToArray(v interface{}) ([]interface{}, error) {
	if v == nil {
		return []interface{}{}, nil
	}
	if arr, ok := v.([]interface{}); ok {
		return arr, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array, reflect.Slice:
		result := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			result[i] = rv.Index(i).Interface()
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: cannot convert %T to array", ErrTypeMismatch, v)
	}
}

// ToStrings converts a list value to cell values.
func ToStrings(v interface{}) ([]string, error) {
	arr, err := ToArray(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(arr))
	for i, item := range arr {
		if out[i], err = ToString(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}
