package schema

// TypeRefKind distinguishes a named reference from its wrappers.
type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// TypeRef is a possibly wrapped reference to a named type. Wrappers set
// OfType; named references set Named.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef
	Named  string
}

func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }

func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

// GetNamedType returns the name at the bottom of the wrappers.
func (t *TypeRef) GetNamedType() string {
	for t != nil && t.Kind != TypeRefKindNamed {
		t = t.OfType
	}
	if t == nil {
		return ""
	}
	return t.Named
}

// String renders the reference in SDL notation, e.g. "[Int!]!".
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	}
	return ""
}
