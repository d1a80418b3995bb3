package resolver

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// protoField reads the field of msg whose proto name or JSON name is name.
// Unset message fields read as nil; repeated fields read as []any.
func protoField(msg protoreflect.Message, name string) (any, error) {
	if msg == nil || !msg.IsValid() {
		return nil, nil
	}
	fields := msg.Descriptor().Fields()
	fd := fields.ByName(protoreflect.Name(name))
	if fd == nil {
		fd = fields.ByJSONName(name)
	}
	if fd == nil {
		fd = fields.ByTextName(name)
	}
	if fd == nil {
		return nil, fmt.Errorf("resolver: message %s has no field %q", msg.Descriptor().FullName(), name)
	}
	if fd.Kind() == protoreflect.MessageKind && !fd.IsList() && !fd.IsMap() && !msg.Has(fd) {
		return nil, nil
	}
	if fd.ContainingOneof() != nil && !msg.Has(fd) {
		return nil, nil
	}
	v := msg.Get(fd)
	switch {
	case fd.IsList():
		lst := v.List()
		out := make([]any, 0, lst.Len())
		for i := 0; i < lst.Len(); i++ {
			out = append(out, protoValue(fd, lst.Get(i)))
		}
		return out, nil
	case fd.IsMap():
		out := make(map[string]any, v.Map().Len())
		v.Map().Range(func(k protoreflect.MapKey, item protoreflect.Value) bool {
			out[k.String()] = protoValue(fd.MapValue(), item)
			return true
		})
		return out, nil
	}
	return protoValue(fd, v), nil
}

// protoValue converts a single protobuf value into the Go value the executor
// completes. Enums become their value names.
func protoValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return v.Bytes()
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return v.Message()
	default:
		return nil
	}
}

// protoTypeName derives a GraphQL type name from a message name. A trailing
// "Source" suffix is dropped, so UserSource resolves to User.
func protoTypeName(msg protoreflect.Message) string {
	name := string(msg.Descriptor().Name())
	if trimmed := strings.TrimSuffix(name, "Source"); trimmed != "" {
		return trimmed
	}
	return name
}
