package resolver

import (
	"encoding/base64"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/reflect/protoreflect"
)

type protoEnum interface {
	Descriptor() protoreflect.EnumDescriptor
	Number() protoreflect.EnumNumber
}

func serializeEnum(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case protoEnum:
		if ev := v.Descriptor().Values().ByNumber(v.Number()); ev != nil {
			return string(ev.Name()), nil
		}
		return nil, fmt.Errorf("enum value %d is not defined in %s", v.Number(), v.Descriptor().FullName())
	case fmt.Stringer:
		return v.String(), nil
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return nil, fmt.Errorf("enum cannot represent non-string value: %T", value)
}

func serializeCustomScalar(value any) any {
	switch v := value.(type) {
	case []byte:
		if v == nil {
			return nil
		}
		return base64.StdEncoding.EncodeToString(v)
	}
	return value
}
