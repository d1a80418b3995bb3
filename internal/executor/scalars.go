package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	schema "github.com/hanpama/graphexec/internal/schema"
)

// SerializeBuiltinScalar converts a resolved Go value into the result form of
// a built-in scalar: int for Int, float64 for Float, string for String and
// ID, bool for Boolean. Values of other type names are returned unchanged.
func SerializeBuiltinScalar(typeName string, value any) (any, error) {
	if !schema.IsBuiltinScalar(typeName) {
		return value, nil
	}
	value = indirect(value)
	if value == nil {
		return nil, nil
	}
	switch typeName {
	case "Int":
		n, ok := integerValue(value)
		if !ok {
			if b, isBool := value.(bool); isBool {
				if b {
					return 1, nil
				}
				return 0, nil
			}
			return nil, fmt.Errorf("Int cannot represent non-integer value: %s", describeValue(value))
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", n)
		}
		return int(n), nil

	case "Float":
		f, ok := floatValue(value)
		if !ok {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %s", describeValue(value))
		}
		return f, nil

	case "String":
		if s, ok := stringValue(value); ok {
			return s, nil
		}
		switch v := value.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case json.Number:
			return v.String(), nil
		}
		if n, ok := integerValue(value); ok {
			return strconv.FormatInt(n, 10), nil
		}
		if f, ok := floatValue(value); ok {
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}
		return nil, fmt.Errorf("String cannot represent value: %s", describeValue(value))

	case "Boolean":
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
		if f, ok := floatValue(value); ok {
			return f != 0, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %s", describeValue(value))

	case "ID":
		if s, ok := stringValue(value); ok {
			return s, nil
		}
		if n, ok := integerValue(value); ok {
			return strconv.FormatInt(n, 10), nil
		}
		return nil, fmt.Errorf("ID cannot represent value: %s", describeValue(value))
	}
	return value, nil
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// indirect dereferences pointers; a nil pointer becomes nil.
func indirect(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
