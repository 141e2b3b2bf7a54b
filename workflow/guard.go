package workflow

import "reflect"

// Guard decides whether an edge fires, given only the producer's output.
// Guards must be pure; they run concurrently and may run more than once.
type Guard func(output map[string]any) bool

// Always fires unconditionally. A nil guard on an edge behaves the same.
func Always() Guard {
	return func(map[string]any) bool { return true }
}

// Equals fires when the output field equals the given value. Numeric types
// are compared by value, so an int literal matches a float64 field.
func Equals(field string, value any) Guard {
	return func(output map[string]any) bool {
		actual, ok := output[field]
		if !ok {
			return false
		}
		return equalValues(actual, value)
	}
}

func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
