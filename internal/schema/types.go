package schema

// TypeKind is the __TypeKind of a named type.
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Type is a named type. Only the members relevant to Kind are set.
type Type struct {
	Name        string
	Kind        TypeKind
	Description string

	// OBJECT and INTERFACE
	Fields     []*Field
	Interfaces []string
	// INTERFACE and UNION
	PossibleTypes []string
	// ENUM
	EnumValues []*EnumValue
	// INPUT_OBJECT
	InputFields []*InputValue
	OneOf       bool
	// SCALAR
	SpecifiedByURL *string
}

func (t *Type) Field(name string) *Field {
	return find(t.Fields, func(f *Field) bool { return f.Name == name })
}

func (t *Type) InputField(name string) *InputValue {
	return find(t.InputFields, func(v *InputValue) bool { return v.Name == name })
}

func (t *Type) EnumValue(name string) *EnumValue {
	return find(t.EnumValues, func(v *EnumValue) bool { return v.Name == name })
}

// IsAbstract reports whether t is an interface or a union.
func (t *Type) IsAbstract() bool {
	return t.Kind == TypeKindInterface || t.Kind == TypeKindUnion
}

// IsLeaf reports whether t is a scalar or an enum.
func (t *Type) IsLeaf() bool {
	return t.Kind == TypeKindScalar || t.Kind == TypeKindEnum
}

type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	IsDeprecated      bool
	DeprecationReason string
}

func (f *Field) Argument(name string) *InputValue {
	return find(f.Arguments, func(a *InputValue) bool { return a.Name == name })
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

// InputValue is an argument or an input object field.
type InputValue struct {
	Name        string
	Description string
	Type        *TypeRef
	// DefaultValue holds the uncoerced default, nil when there is none.
	DefaultValue any
	// DefaultLiteral is the default as written in SDL. Empty when the value
	// was set programmatically.
	DefaultLiteral    string
	IsDeprecated      bool
	DeprecationReason string
}

// HasDefault reports whether a default value was declared.
func (v *InputValue) HasDefault() bool {
	return v.DefaultValue != nil || v.DefaultLiteral != ""
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

func find[T any](items []*T, match func(*T) bool) *T {
	for _, it := range items {
		if match(it) {
			return it
		}
	}
	return nil
}
