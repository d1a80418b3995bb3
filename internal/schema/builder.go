package schema

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// BuildFromSDL parses and validates sdl and builds an executable Schema.
// Built-in scalars, directives and introspection types come from the
// parser's prelude.
func BuildFromSDL(sdl string) (*Schema, error) {
	return Build(&ast.Source{Name: "schema.graphql", Input: sdl})
}

// Build loads every source into a single schema. Type extensions are merged
// into their base definitions.
func Build(sources ...*ast.Source) (*Schema, error) {
	src, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return FromAST(src), nil
}

// FromAST converts a validated gqlparser schema.
func FromAST(src *ast.Schema) *Schema {
	s := &Schema{
		Types:       make(map[string]*Type, len(src.Types)),
		Directives:  make(map[string]*Directive, len(src.Directives)),
		Description: src.Description,
		source:      src,
	}
	if src.Query != nil {
		s.QueryType = src.Query.Name
	}
	if src.Mutation != nil {
		s.MutationType = src.Mutation.Name
	}
	if src.Subscription != nil {
		s.SubscriptionType = src.Subscription.Name
	}
	for name, def := range src.Types {
		t := buildType(def)
		if def.Kind == ast.Interface {
			for _, impl := range src.PossibleTypes[name] {
				t.PossibleTypes = append(t.PossibleTypes, impl.Name)
			}
		}
		s.Types[name] = t
	}
	for name, dir := range src.Directives {
		s.Directives[name] = buildDirective(dir)
	}
	return s
}

func buildType(def *ast.Definition) *Type {
	t := NewType(def.Name, typeKind(def.Kind), def.Description)
	t.Interfaces = append(t.Interfaces, def.Interfaces...)
	switch def.Kind {
	case ast.Object, ast.Interface:
		for _, f := range def.Fields {
			t.AddField(buildField(f))
		}
	case ast.InputObject:
		for _, f := range def.Fields {
			t.InputFields = append(t.InputFields, buildInputField(f))
		}
		t.OneOf = def.Directives.ForName("oneOf") != nil
	case ast.Union:
		t.PossibleTypes = append(t.PossibleTypes, def.Types...)
	case ast.Enum:
		for _, v := range def.EnumValues {
			deprecated, reason := deprecation(v.Directives)
			t.EnumValues = append(t.EnumValues, &EnumValue{
				Name:              v.Name,
				Description:       v.Description,
				IsDeprecated:      deprecated,
				DeprecationReason: reason,
			})
		}
	case ast.Scalar:
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				url := arg.Value.Raw
				t.SpecifiedByURL = &url
			}
		}
	}
	return t
}

func buildField(def *ast.FieldDefinition) *Field {
	deprecated, reason := deprecation(def.Directives)
	f := &Field{
		Name:              def.Name,
		Description:       def.Description,
		Type:              buildTypeRef(def.Type),
		IsDeprecated:      deprecated,
		DeprecationReason: reason,
	}
	for _, arg := range def.Arguments {
		f.Arguments = append(f.Arguments, buildArgument(arg))
	}
	return f
}

func buildArgument(def *ast.ArgumentDefinition) *InputValue {
	deprecated, reason := deprecation(def.Directives)
	v := &InputValue{
		Name:              def.Name,
		Description:       def.Description,
		Type:              buildTypeRef(def.Type),
		IsDeprecated:      deprecated,
		DeprecationReason: reason,
	}
	setDefault(v, def.DefaultValue)
	return v
}

func buildInputField(def *ast.FieldDefinition) *InputValue {
	deprecated, reason := deprecation(def.Directives)
	v := &InputValue{
		Name:              def.Name,
		Description:       def.Description,
		Type:              buildTypeRef(def.Type),
		IsDeprecated:      deprecated,
		DeprecationReason: reason,
	}
	setDefault(v, def.DefaultValue)
	return v
}

func setDefault(v *InputValue, value *ast.Value) {
	if value == nil {
		return
	}
	v.DefaultLiteral = value.String()
	// Constant values never reference variables.
	if raw, err := value.Value(nil); err == nil {
		v.DefaultValue = raw
	}
}

func buildDirective(def *ast.DirectiveDefinition) *Directive {
	d := &Directive{
		Name:         def.Name,
		Description:  def.Description,
		IsRepeatable: def.IsRepeatable,
	}
	for _, loc := range def.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range def.Arguments {
		d.Arguments = append(d.Arguments, buildArgument(arg))
	}
	return d
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func typeKind(k ast.DefinitionKind) TypeKind {
	switch k {
	case ast.Object:
		return TypeKindObject
	case ast.Interface:
		return TypeKindInterface
	case ast.Union:
		return TypeKindUnion
	case ast.Enum:
		return TypeKindEnum
	case ast.InputObject:
		return TypeKindInputObject
	default:
		return TypeKindScalar
	}
}

func deprecation(directives ast.DirectiveList) (bool, string) {
	d := directives.ForName("deprecated")
	if d == nil {
		return false, ""
	}
	reason := "No longer supported"
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = strings.TrimSpace(arg.Value.Raw)
	}
	return true, reason
}

// ----- programmatic construction -----

// NewSchema returns an empty schema preloaded with the built-in scalars and
// the @include and @skip directives.
func NewSchema(description string) *Schema {
	s := &Schema{
		Types:       map[string]*Type{},
		Directives:  map[string]*Directive{},
		Description: description,
	}
	for _, name := range []string{"String", "Int", "Float", "Boolean", "ID"} {
		s.AddType(builtinScalar(name))
	}
	s.AddDirective(conditionDirective("include",
		"Directs the executor to include this field or fragment only when the `if` argument is true.",
		"Included when true.")).
		AddDirective(conditionDirective("skip",
			"Directs the executor to skip this field or fragment when the `if` argument is true.",
			"Skipped when true."))
	return s
}

func (s *Schema) SetQueryType(name string) *Schema {
	s.QueryType = name
	return s
}

func (s *Schema) SetMutationType(name string) *Schema {
	s.MutationType = name
	return s
}

func (s *Schema) SetSubscriptionType(name string) *Schema {
	s.SubscriptionType = name
	return s
}

// AddType registers t. For object types, every interface t names is updated
// to list t as a possible type.
func (s *Schema) AddType(t *Type) *Schema {
	s.Types[t.Name] = t
	if t.Kind == TypeKindObject {
		for _, name := range t.Interfaces {
			if iface := s.Types[name]; iface != nil {
				iface.AddPossibleType(t.Name)
			}
		}
	}
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	s.Directives[d.Name] = d
	return s
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type {
	t.Fields = append(t.Fields, f)
	return t
}

func (t *Type) AddInterface(name string) *Type {
	t.Interfaces = append(t.Interfaces, name)
	return t
}

func (t *Type) AddPossibleType(name string) *Type {
	for _, existing := range t.PossibleTypes {
		if existing == name {
			return t
		}
	}
	t.PossibleTypes = append(t.PossibleTypes, name)
	return t
}

func (t *Type) AddEnumValue(name string) *Type {
	t.EnumValues = append(t.EnumValues, &EnumValue{Name: name})
	return t
}

func (t *Type) AddInputField(v *InputValue) *Type {
	t.InputFields = append(t.InputFields, v)
	return t
}
