// Package introspection serves the __schema and __type meta fields.
//
// Introspection is opt-in: a registry built without Register answers both
// meta fields with an error. __typename is handled by the executor and needs
// no registration.
package introspection

import (
	"fmt"
	"sort"
	"strings"

	executor "github.com/hanpama/graphexec/internal/executor"
	resolver "github.com/hanpama/graphexec/internal/resolver"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// getter reads one meta field from a source value. It reports false when
// src is not a value the field applies to.
type getter func(src any, args map[string]any) (any, bool)

// on adapts a getter for sources of type T.
func on[T any](f func(T, map[string]any) any) getter {
	return func(src any, args map[string]any) (any, bool) {
		v, ok := src.(T)
		if !ok {
			return nil, false
		}
		return f(v, args), true
	}
}

// either tries each getter in turn.
func either(gs ...getter) getter {
	return func(src any, args map[string]any) (any, bool) {
		for _, g := range gs {
			if v, ok := g(src, args); ok {
				return v, true
			}
		}
		return nil, false
	}
}

// absentOnWrapper answers fields that LIST and NON_NULL wrappers leave null.
var absentOnWrapper = on(func(*schema.TypeRef, map[string]any) any { return nil })

// Register binds the introspection meta fields on b's schema. All bindings
// are synchronous.
func Register(b *resolver.Builder) *resolver.Builder {
	in := &introspector{sch: b.Schema()}
	b.ResolveSync(in.sch.QueryType, "__schema", func(*executor.ResolverContext) (any, error) {
		return in.sch, nil
	})
	b.ResolveSync(in.sch.QueryType, "__type", func(rc *executor.ResolverContext) (any, error) {
		name, err := executor.Argument[string](rc, "name")
		if err != nil {
			return nil, err
		}
		if t := in.sch.Types[name]; t != nil {
			return t, nil
		}
		return nil, nil
	})

	table := in.table()
	for typeName, getters := range table {
		t := in.sch.Types[typeName]
		if t == nil {
			continue
		}
		for _, f := range t.Fields {
			b.ResolveSync(typeName, f.Name, bind(typeName, f.Name, getters[f.Name]))
		}
	}
	return b
}

func bind(typeName, field string, get getter) executor.FieldResolver {
	return func(rc *executor.ResolverContext) (any, error) {
		if get != nil {
			if v, ok := get(rc.Source(), rc.Arguments()); ok {
				return v, nil
			}
		}
		return nil, fmt.Errorf("introspection: cannot resolve %s.%s on %T", typeName, field, rc.Source())
	}
}

type introspector struct {
	sch *schema.Schema
}

func (in *introspector) table() map[string]map[string]getter {
	return map[string]map[string]getter{
		"__Schema": {
			"description":      on(func(s *schema.Schema, _ map[string]any) any { return optional(s.Description) }),
			"types":            on(func(s *schema.Schema, _ map[string]any) any { return sortedTypes(s) }),
			"queryType":        on(func(s *schema.Schema, _ map[string]any) any { return s.GetQueryType() }),
			"mutationType":     on(func(s *schema.Schema, _ map[string]any) any { return s.GetMutationType() }),
			"subscriptionType": on(func(s *schema.Schema, _ map[string]any) any { return s.GetSubscriptionType() }),
			"directives":       on(func(s *schema.Schema, _ map[string]any) any { return sortedDirectives(s) }),
		},
		"__Type": {
			"kind": either(
				on(func(t *schema.Type, _ map[string]any) any { return string(t.Kind) }),
				on(func(r *schema.TypeRef, _ map[string]any) any { return string(r.Kind) }),
			),
			"ofType": either(
				on(func(*schema.Type, map[string]any) any { return nil }),
				on(func(r *schema.TypeRef, _ map[string]any) any { return in.typeOf(r.OfType) }),
			),
			"name":           either(on(func(t *schema.Type, _ map[string]any) any { return t.Name }), absentOnWrapper),
			"description":    either(on(func(t *schema.Type, _ map[string]any) any { return optional(t.Description) }), absentOnWrapper),
			"specifiedByURL": either(on(func(t *schema.Type, _ map[string]any) any { return t.SpecifiedByURL }), absentOnWrapper),
			"fields":         either(on(typeFields), absentOnWrapper),
			"interfaces":     either(on(in.interfaces), absentOnWrapper),
			"possibleTypes":  either(on(in.possibleTypes), absentOnWrapper),
			"enumValues":     either(on(enumValues), absentOnWrapper),
			"inputFields":    either(on(inputFields), absentOnWrapper),
			"isOneOf":        either(on(isOneOf), absentOnWrapper),
		},
		"__Field": {
			"name":              on(func(f *schema.Field, _ map[string]any) any { return f.Name }),
			"description":       on(func(f *schema.Field, _ map[string]any) any { return optional(f.Description) }),
			"args":              on(func(f *schema.Field, args map[string]any) any { return visibleInputs(f.Arguments, args) }),
			"type":              on(func(f *schema.Field, _ map[string]any) any { return in.typeOf(f.Type) }),
			"isDeprecated":      on(func(f *schema.Field, _ map[string]any) any { return f.IsDeprecated }),
			"deprecationReason": on(func(f *schema.Field, _ map[string]any) any { return reason(f.IsDeprecated, f.DeprecationReason) }),
		},
		"__InputValue": {
			"name":              on(func(a *schema.InputValue, _ map[string]any) any { return a.Name }),
			"description":       on(func(a *schema.InputValue, _ map[string]any) any { return optional(a.Description) }),
			"type":              on(func(a *schema.InputValue, _ map[string]any) any { return in.typeOf(a.Type) }),
			"defaultValue":      on(func(a *schema.InputValue, _ map[string]any) any { return defaultValue(a) }),
			"isDeprecated":      on(func(a *schema.InputValue, _ map[string]any) any { return a.IsDeprecated }),
			"deprecationReason": on(func(a *schema.InputValue, _ map[string]any) any { return reason(a.IsDeprecated, a.DeprecationReason) }),
		},
		"__EnumValue": {
			"name":              on(func(ev *schema.EnumValue, _ map[string]any) any { return ev.Name }),
			"description":       on(func(ev *schema.EnumValue, _ map[string]any) any { return optional(ev.Description) }),
			"isDeprecated":      on(func(ev *schema.EnumValue, _ map[string]any) any { return ev.IsDeprecated }),
			"deprecationReason": on(func(ev *schema.EnumValue, _ map[string]any) any { return reason(ev.IsDeprecated, ev.DeprecationReason) }),
		},
		"__Directive": {
			"name":         on(func(d *schema.Directive, _ map[string]any) any { return d.Name }),
			"description":  on(func(d *schema.Directive, _ map[string]any) any { return optional(d.Description) }),
			"isRepeatable": on(func(d *schema.Directive, _ map[string]any) any { return d.IsRepeatable }),
			"locations":    on(func(d *schema.Directive, _ map[string]any) any { return d.Locations }),
			"args":         on(func(d *schema.Directive, args map[string]any) any { return visibleInputs(d.Arguments, args) }),
		},
	}
}

// typeOf resolves a named reference to its *schema.Type and leaves list and
// non-null wrappers as they are.
func (in *introspector) typeOf(tr *schema.TypeRef) any {
	if tr == nil {
		return nil
	}
	if tr.Kind != schema.TypeRefKindNamed {
		return tr
	}
	if t := in.sch.Types[tr.Named]; t != nil {
		return t
	}
	return nil
}

func (in *introspector) named(names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if t := in.sch.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (in *introspector) interfaces(t *schema.Type, _ map[string]any) any {
	if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
		return nil
	}
	return in.named(t.Interfaces)
}

func (in *introspector) possibleTypes(t *schema.Type, _ map[string]any) any {
	if !t.IsAbstract() {
		return nil
	}
	return in.named(t.PossibleTypes)
}

func typeFields(t *schema.Type, args map[string]any) any {
	if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
		return nil
	}
	all := includeDeprecated(args)
	out := []*schema.Field{}
	for _, f := range t.Fields {
		if strings.HasPrefix(f.Name, "__") || (f.IsDeprecated && !all) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func enumValues(t *schema.Type, args map[string]any) any {
	if t.Kind != schema.TypeKindEnum {
		return nil
	}
	all := includeDeprecated(args)
	out := []*schema.EnumValue{}
	for _, ev := range t.EnumValues {
		if ev.IsDeprecated && !all {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func inputFields(t *schema.Type, args map[string]any) any {
	if t.Kind != schema.TypeKindInputObject {
		return nil
	}
	return visibleInputs(t.InputFields, args)
}

func isOneOf(t *schema.Type, _ map[string]any) any {
	if t.Kind != schema.TypeKindInputObject {
		return nil
	}
	return t.OneOf
}

func visibleInputs(values []*schema.InputValue, args map[string]any) []*schema.InputValue {
	all := includeDeprecated(args)
	out := []*schema.InputValue{}
	for _, iv := range values {
		if iv.IsDeprecated && !all {
			continue
		}
		out = append(out, iv)
	}
	return out
}

func sortedTypes(sch *schema.Schema) []*schema.Type {
	out := make([]*schema.Type, 0, len(sch.Types))
	for _, t := range sch.Types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedDirectives(sch *schema.Schema) []*schema.Directive {
	out := make([]*schema.Directive, 0, len(sch.Directives))
	for _, d := range sch.Directives {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func defaultValue(a *schema.InputValue) *string {
	if a.DefaultLiteral != "" {
		return &a.DefaultLiteral
	}
	if a.DefaultValue == nil {
		return nil
	}
	v := schema.RenderValue(a.DefaultValue)
	return &v
}

func reason(deprecated bool, r string) *string {
	if !deprecated {
		return nil
	}
	return &r
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func includeDeprecated(args map[string]any) bool {
	v, _ := args["includeDeprecated"].(bool)
	return v
}
