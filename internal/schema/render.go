package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render prints s as SDL. Types and directives are sorted by name; built-in
// scalars, built-in directives and introspection types are left out.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	p := &printer{}
	p.schemaBlock(s)

	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		if !IsBuiltinScalar(name) && !IsIntrospectionType(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		p.typeDef(s.Types[name])
	}

	directives := make([]string, 0, len(s.Directives))
	for name := range s.Directives {
		if !builtinDirectives[name] {
			directives = append(directives, name)
		}
	}
	sort.Strings(directives)
	for _, name := range directives {
		p.directiveDef(s.Directives[name])
	}

	return strings.TrimRight(p.String(), "\n") + "\n"
}

type printer struct {
	strings.Builder
}

func (p *printer) line(indent string, parts ...string) {
	p.WriteString(indent)
	for _, s := range parts {
		p.WriteString(s)
	}
	p.WriteByte('\n')
}

// schemaBlock prints a schema definition only when a root type is not named
// after its operation.
func (p *printer) schemaBlock(s *Schema) {
	roots := [...][2]string{
		{"query", s.QueryType},
		{"mutation", s.MutationType},
		{"subscription", s.SubscriptionType},
	}
	conventional := true
	for _, r := range roots {
		if r[1] != "" && !strings.EqualFold(r[0], r[1]) {
			conventional = false
		}
	}
	if conventional {
		return
	}
	p.line("", "schema {")
	for _, r := range roots {
		if r[1] != "" {
			p.line("  ", r[0], ": ", r[1])
		}
	}
	p.line("", "}")
	p.WriteByte('\n')
}

func (p *printer) description(indent, desc string) {
	if desc == "" {
		return
	}
	p.line(indent, `"""`)
	for _, l := range strings.Split(strings.ReplaceAll(desc, `"""`, `\"""`), "\n") {
		p.line(indent, l)
	}
	p.line(indent, `"""`)
}

func (p *printer) typeDef(t *Type) {
	p.description("", t.Description)
	switch t.Kind {
	case TypeKindScalar:
		head := "scalar " + t.Name
		if t.SpecifiedByURL != nil {
			head += ` @specifiedBy(url: ` + strconv.Quote(*t.SpecifiedByURL) + `)`
		}
		p.line("", head)
	case TypeKindEnum:
		p.line("", "enum ", t.Name, " {")
		for _, v := range t.EnumValues {
			p.description("  ", v.Description)
			p.line("  ", v.Name, deprecatedSuffix(v.IsDeprecated, v.DeprecationReason))
		}
		p.line("", "}")
	case TypeKindInputObject:
		head := "input " + t.Name
		if t.OneOf {
			head += " @oneOf"
		}
		p.line("", head, " {")
		for _, f := range t.InputFields {
			p.description("  ", f.Description)
			p.line("  ", inputValue(f), deprecatedSuffix(f.IsDeprecated, f.DeprecationReason))
		}
		p.line("", "}")
	case TypeKindObject, TypeKindInterface:
		keyword := "type "
		if t.Kind == TypeKindInterface {
			keyword = "interface "
		}
		head := keyword + t.Name
		if len(t.Interfaces) > 0 {
			head += " implements " + strings.Join(t.Interfaces, " & ")
		}
		p.line("", head, " {")
		for _, f := range t.Fields {
			if IsIntrospectionType(f.Name) {
				continue
			}
			p.description("  ", f.Description)
			p.line("  ", f.Name, arguments(f.Arguments), ": ", f.Type.String(), deprecatedSuffix(f.IsDeprecated, f.DeprecationReason))
		}
		p.line("", "}")
	case TypeKindUnion:
		p.line("", "union ", t.Name, " = ", strings.Join(t.PossibleTypes, " | "))
	}
	p.WriteByte('\n')
}

func (p *printer) directiveDef(d *Directive) {
	p.description("", d.Description)
	head := "directive @" + d.Name + arguments(d.Arguments)
	if d.IsRepeatable {
		head += " repeatable"
	}
	p.line("", head, " on ", strings.Join(d.Locations, " | "))
	p.WriteByte('\n')
}

func arguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = inputValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// inputValue prints "name: Type" with its default, if any.
func inputValue(v *InputValue) string {
	out := v.Name + ": " + v.Type.String()
	if !v.HasDefault() {
		return out
	}
	if v.DefaultLiteral != "" {
		return out + " = " + v.DefaultLiteral
	}
	return out + " = " + RenderValue(v.DefaultValue)
}

func deprecatedSuffix(deprecated bool, reason string) string {
	switch {
	case !deprecated:
		return ""
	case reason == "":
		return " @deprecated"
	default:
		return " @deprecated(reason: " + strconv.Quote(reason) + ")"
	}
}

// RenderValue renders a Go value as a GraphQL literal. Map keys are sorted.
func RenderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = RenderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + RenderValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	// enum values and other bare words
	return fmt.Sprint(value)
}
