package resolver

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// accessor reads one member from a value of a fixed Go type.
type accessor func(ctx context.Context, v reflect.Value) (any, error)

type memberKey struct {
	t    reflect.Type
	name string
}

// accessors caches member lookups per (Go type, member name).
var accessors sync.Map

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// ReadMember reads the member called name from source.
//
// Sources are read as follows:
//   - map[string]any and other string-keyed maps: the value under name.
//   - proto.Message and protoreflect.Message: the field whose proto name or
//     JSON name is name.
//   - structs and pointers to structs: a method called Name or GetName,
//     then a field tagged `graphql:"name"`, then a field whose name equals
//     name ignoring case.
//
// Methods may take a context.Context and may return an error as their last
// result. A nil source reads as nil.
func ReadMember(ctx context.Context, source any, name string) (any, error) {
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[name], nil
	case protoreflect.Message:
		return protoField(src, name)
	case proto.Message:
		return protoField(src.ProtoReflect(), name)
	}

	v := reflect.ValueOf(source)
	key := memberKey{t: v.Type(), name: name}
	if cached, ok := accessors.Load(key); ok {
		return cached.(accessor)(ctx, v)
	}
	acc, err := lookupMember(v.Type(), name)
	if err != nil {
		return nil, err
	}
	actual, _ := accessors.LoadOrStore(key, acc)
	return actual.(accessor)(ctx, v)
}

func lookupMember(t reflect.Type, name string) (accessor, error) {
	exported := exportName(name)
	for _, methodName := range []string{exported, "Get" + exported} {
		if m, ok := t.MethodByName(methodName); ok {
			if acc := methodAccessor(m); acc != nil {
				return acc, nil
			}
		}
	}

	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Struct:
		if index, ok := structField(base, name); ok {
			return func(_ context.Context, v reflect.Value) (any, error) {
				v, ok := deref(v)
				if !ok {
					return nil, nil
				}
				f, err := v.FieldByIndexErr(index)
				if err != nil {
					return nil, nil
				}
				return f.Interface(), nil
			}, nil
		}
	case reflect.Map:
		if base.Key().Kind() == reflect.String {
			key := reflect.ValueOf(name).Convert(base.Key())
			return func(_ context.Context, v reflect.Value) (any, error) {
				v, ok := deref(v)
				if !ok {
					return nil, nil
				}
				item := v.MapIndex(key)
				if !item.IsValid() {
					return nil, nil
				}
				return item.Interface(), nil
			}, nil
		}
	}
	return nil, fmt.Errorf("resolver: %s has no member %q", t, name)
}

// methodAccessor adapts methods of the shapes
//
//	func() T
//	func() (T, error)
//	func(context.Context) T
//	func(context.Context) (T, error)
//
// and returns nil for any other signature.
func methodAccessor(m reflect.Method) accessor {
	mt := m.Type
	withCtx := false
	switch mt.NumIn() {
	case 1:
	case 2:
		if mt.In(1) != contextType {
			return nil
		}
		withCtx = true
	default:
		return nil
	}
	withErr := false
	switch mt.NumOut() {
	case 1:
	case 2:
		if mt.Out(1) != errorType {
			return nil
		}
		withErr = true
	default:
		return nil
	}
	return func(ctx context.Context, v reflect.Value) (any, error) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, nil
		}
		in := []reflect.Value{v}
		if withCtx {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		out := m.Func.Call(in)
		if withErr && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}
}

func structField(t reflect.Type, name string) ([]int, bool) {
	fields := reflect.VisibleFields(t)
	for _, f := range fields {
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("graphql"); ok {
			if tag == name {
				return f.Index, true
			}
		}
	}
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && strings.EqualFold(f.Name, name) {
			return f.Index, true
		}
	}
	return nil, false
}

func deref(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, true
}

func exportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
