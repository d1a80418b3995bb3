package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// coerceVariableValues coerces the raw, JSON-decoded variable values of an
// operation according to its variable definitions.
func coerceVariableValues(
	sch *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, []error) {
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	var errs []error
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := typeRefFromAST(varDef.Type)
		fail := func(format string, args ...any) {
			errs = append(errs, &GraphQLError{
				Message:   fmt.Sprintf("Variable \"$%s\" %s", name, fmt.Sprintf(format, args...)),
				Locations: positionLocations(varDef.Position),
				Kind:      KindArgumentCoercion,
			})
		}
		val, ok := variableValues[name]
		if !ok {
			if varDef.DefaultValue != nil {
				v, err := coerceLiteral(sch, varDef.DefaultValue, t, nil)
				if err != nil {
					fail("has an invalid default value: %v", err)
					continue
				}
				coerced[name] = v
				continue
			}
			if t.IsNonNull() {
				fail("of required type %s was not provided.", t)
			}
			continue
		}
		if val == nil && t.IsNonNull() {
			fail("of non-null type %s must not be null.", t)
			continue
		}
		cv, err := coerceInputValue(sch, val, t)
		if err != nil {
			fail("got invalid value %s; %v", describeValue(val), err)
			continue
		}
		coerced[name] = cv
	}
	return coerced, errs
}

// coerceArguments coerces the arguments of one field occurrence. Arguments
// that are neither given nor defaulted are left out of the map.
func coerceArguments(
	sch *schema.Schema,
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	variableValues map[string]any,
) (map[string]any, error) {
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, argDef := range fieldDef.Arguments {
		name := argDef.Name
		fail := func(err error) (map[string]any, error) {
			return nil, &ArgumentError{Name: name, DeclaredType: argDef.Type.String(), Err: err}
		}

		var node *language.Value
		if arg := arguments.ForName(name); arg != nil {
			node = arg.Value
		}

		provided := node != nil
		if provided && node.Kind == language.Variable {
			_, provided = variableValues[node.Raw]
		}

		if !provided {
			if argDef.HasDefault() {
				v, err := coerceInputValue(sch, argDef.DefaultValue, argDef.Type)
				if err != nil {
					return fail(fmt.Errorf("invalid default value: %w", err))
				}
				coerced[name] = v
				continue
			}
			if argDef.Type.IsNonNull() {
				return fail(fmt.Errorf("required argument was not provided"))
			}
			continue
		}

		if node.Kind == language.Variable {
			v := variableValues[node.Raw]
			if v == nil && argDef.Type.IsNonNull() {
				return fail(fmt.Errorf("variable $%s must not be null", node.Raw))
			}
			coerced[name] = v
			continue
		}

		v, err := coerceLiteral(sch, node, argDef.Type, variableValues)
		if err != nil {
			return fail(err)
		}
		coerced[name] = v
	}
	return coerced, nil
}

// coerceLiteral coerces a value literal from the document to t. Variables
// nested inside the literal are substituted from variableValues.
func coerceLiteral(sch *schema.Schema, value *language.Value, t *schema.TypeRef, variableValues map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if value.Kind == language.Variable {
		v, ok := variableValues[value.Raw]
		if (!ok || v == nil) && t.IsNonNull() {
			return nil, fmt.Errorf("variable $%s must not be null", value.Raw)
		}
		return v, nil
	}

	switch t.Kind {
	case schema.TypeRefKindNonNull:
		if value.Kind == language.NullValue {
			return nil, fmt.Errorf("expected non-null %s, found null", t)
		}
		return coerceLiteral(sch, value, t.OfType, variableValues)

	case schema.TypeRefKindList:
		if value.Kind == language.NullValue {
			return nil, nil
		}
		if value.Kind != language.ListValue {
			item, err := coerceLiteral(sch, value, t.OfType, variableValues)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(value.Children))
		for i, child := range value.Children {
			item, err := coerceLiteral(sch, child.Value, t.OfType, variableValues)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %w", i, err)
			}
			out[i] = item
		}
		return out, nil
	}

	if value.Kind == language.NullValue {
		return nil, nil
	}
	named := sch.Types[t.Named]
	if named == nil {
		return nil, fmt.Errorf("unknown type %s", t.Named)
	}

	switch named.Kind {
	case schema.TypeKindInputObject:
		if value.Kind != language.ObjectValue {
			return nil, fmt.Errorf("expected input object %s", named.Name)
		}
		given := make(map[string]*language.Value, len(value.Children))
		for _, child := range value.Children {
			if named.InputField(child.Name) == nil {
				return nil, fmt.Errorf("field %q is not defined by type %s", child.Name, named.Name)
			}
			given[child.Name] = child.Value
		}
		out := make(map[string]any, len(named.InputFields))
		for _, field := range named.InputFields {
			node, ok := given[field.Name]
			if ok && node.Kind == language.Variable {
				_, ok = variableValues[node.Raw]
			}
			if !ok {
				if field.HasDefault() {
					v, err := coerceInputValue(sch, field.DefaultValue, field.Type)
					if err != nil {
						return nil, fmt.Errorf("field %s.%s: %w", named.Name, field.Name, err)
					}
					out[field.Name] = v
				} else if field.Type.IsNonNull() {
					return nil, fmt.Errorf("field %s.%s of required type %s was not provided", named.Name, field.Name, field.Type)
				}
				continue
			}
			v, err := coerceLiteral(sch, node, field.Type, variableValues)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", named.Name, field.Name, err)
			}
			out[field.Name] = v
		}
		if err := checkOneOf(named, out); err != nil {
			return nil, err
		}
		return out, nil

	case schema.TypeKindEnum:
		if value.Kind != language.EnumValue {
			return nil, fmt.Errorf("enum %s cannot represent non-enum value %s", named.Name, value.String())
		}
		if named.EnumValue(value.Raw) == nil {
			return nil, fmt.Errorf("value %q does not exist in %s enum", value.Raw, named.Name)
		}
		return value.Raw, nil

	case schema.TypeKindScalar:
		return coerceScalarLiteral(named.Name, value)
	}
	return nil, fmt.Errorf("type %s is not an input type", named.Name)
}

func coerceScalarLiteral(typeName string, value *language.Value) (any, error) {
	switch typeName {
	case "Int":
		if value.Kind != language.IntValue {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %s", value.String())
		}
		n, err := strconv.ParseInt(value.Raw, 10, 64)
		if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %s", value.Raw)
		}
		return int(n), nil
	case "Float":
		if value.Kind != language.IntValue && value.Kind != language.FloatValue {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %s", value.String())
		}
		f, err := strconv.ParseFloat(value.Raw, 64)
		if err != nil {
			return nil, fmt.Errorf("Float cannot represent value: %s", value.Raw)
		}
		return f, nil
	case "String":
		if value.Kind != language.StringValue && value.Kind != language.BlockValue {
			return nil, fmt.Errorf("String cannot represent a non string value: %s", value.String())
		}
		return value.Raw, nil
	case "Boolean":
		if value.Kind != language.BooleanValue {
			return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %s", value.String())
		}
		return value.Raw == "true", nil
	case "ID":
		if value.Kind != language.StringValue && value.Kind != language.IntValue {
			return nil, fmt.Errorf("ID cannot represent a non-string and non-integer value: %s", value.String())
		}
		return value.Raw, nil
	}
	// Custom scalars receive the plain Go form of the literal.
	return value.Value(nil)
}

// coerceInputValue coerces an already decoded runtime value (a variable or a
// schema default) to t.
func coerceInputValue(sch *schema.Schema, value any, t *schema.TypeRef) (any, error) {
	switch t.Kind {
	case schema.TypeRefKindNonNull:
		if value == nil {
			return nil, fmt.Errorf("expected non-null %s, found null", t)
		}
		return coerceInputValue(sch, value, t.OfType)

	case schema.TypeRefKindList:
		if value == nil {
			return nil, nil
		}
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			item, err := coerceInputValue(sch, value, t.OfType)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			item, err := coerceInputValue(sch, rv.Index(i).Interface(), t.OfType)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %w", i, err)
			}
			out[i] = item
		}
		return out, nil
	}

	if value == nil {
		return nil, nil
	}
	named := sch.Types[t.Named]
	if named == nil {
		return nil, fmt.Errorf("unknown type %s", t.Named)
	}

	switch named.Kind {
	case schema.TypeKindInputObject:
		given, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object for input type %s, found %s", named.Name, describeValue(value))
		}
		for key := range given {
			if named.InputField(key) == nil {
				return nil, fmt.Errorf("field %q is not defined by type %s", key, named.Name)
			}
		}
		out := make(map[string]any, len(named.InputFields))
		for _, field := range named.InputFields {
			v, ok := given[field.Name]
			if !ok {
				if field.HasDefault() {
					dv, err := coerceInputValue(sch, field.DefaultValue, field.Type)
					if err != nil {
						return nil, fmt.Errorf("field %s.%s: %w", named.Name, field.Name, err)
					}
					out[field.Name] = dv
				} else if field.Type.IsNonNull() {
					return nil, fmt.Errorf("field %s.%s of required type %s was not provided", named.Name, field.Name, field.Type)
				}
				continue
			}
			cv, err := coerceInputValue(sch, v, field.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", named.Name, field.Name, err)
			}
			out[field.Name] = cv
		}
		if err := checkOneOf(named, out); err != nil {
			return nil, err
		}
		return out, nil

	case schema.TypeKindEnum:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("enum %s cannot represent non-string value %s", named.Name, describeValue(value))
		}
		if named.EnumValue(s) == nil {
			return nil, fmt.Errorf("value %q does not exist in %s enum", s, named.Name)
		}
		return s, nil

	case schema.TypeKindScalar:
		return coerceScalarInput(named.Name, value)
	}
	return nil, fmt.Errorf("type %s is not an input type", named.Name)
}

func coerceScalarInput(typeName string, value any) (any, error) {
	switch typeName {
	case "Int":
		n, ok := integerValue(value)
		if !ok {
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
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("String cannot represent a non string value: %s", describeValue(value))
		}
		return s, nil
	case "Boolean":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %s", describeValue(value))
		}
		return b, nil
	case "ID":
		if s, ok := value.(string); ok {
			return s, nil
		}
		if n, ok := integerValue(value); ok {
			return strconv.FormatInt(n, 10), nil
		}
		return nil, fmt.Errorf("ID cannot represent value: %s", describeValue(value))
	}
	return value, nil
}

func checkOneOf(t *schema.Type, fields map[string]any) error {
	if !t.OneOf {
		return nil
	}
	if len(fields) != 1 {
		return fmt.Errorf("OneOf input object %s must specify exactly one key", t.Name)
	}
	for k, v := range fields {
		if v == nil {
			return fmt.Errorf("field %s.%s must be non-null", t.Name, k)
		}
	}
	return nil
}

// integerValue reads any Go integer, an integral float or a json.Number.
func integerValue(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return integralFloat(f)
	case float64:
		return integralFloat(n)
	case float32:
		return integralFloat(float64(n))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func integralFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	}
	if i, ok := integerValue(v); ok {
		return float64(i), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
		f := rv.Float()
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func describeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	return schema.ListType(typeRefFromAST(t.Elem))
}

func positionLocations(pos *language.Position) []Location {
	if pos == nil {
		return nil
	}
	return []Location{{Line: pos.Line, Column: pos.Column}}
}
