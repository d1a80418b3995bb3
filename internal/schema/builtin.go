package schema

import "strings"

// builtinScalarDescriptions are the five scalars every schema has.
var builtinScalarDescriptions = map[string]string{
	"String":  "The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
	"Int":     "The `Int` scalar type represents non-fractional signed whole numeric values.",
	"Float":   "The `Float` scalar type represents signed double-precision fractional values.",
	"Boolean": "The `Boolean` scalar type represents `true` or `false`.",
	"ID":      "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.",
}

var builtinDirectives = map[string]bool{
	"include":     true,
	"skip":        true,
	"deprecated":  true,
	"specifiedBy": true,
	"oneOf":       true,
	"defer":       true,
}

// IsBuiltinScalar reports whether name is one of the five specified scalars.
func IsBuiltinScalar(name string) bool {
	_, ok := builtinScalarDescriptions[name]
	return ok
}

// IsIntrospectionType reports whether name is reserved for introspection.
func IsIntrospectionType(name string) bool { return strings.HasPrefix(name, "__") }

func builtinScalar(name string) *Type {
	return &Type{Name: name, Kind: TypeKindScalar, Description: builtinScalarDescriptions[name]}
}

// conditionDirective builds @include or @skip.
func conditionDirective(name, description, ifDescription string) *Directive {
	return &Directive{
		Name:        name,
		Description: description,
		Arguments: []*InputValue{{
			Name:        "if",
			Description: ifDescription,
			Type:        NonNullType(NamedType("Boolean")),
		}},
		Locations: []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
	}
}
