package executor

import (
	"fmt"
	"sync"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// typenameField is the definition served for __typename on every composite
// type.
var typenameField = &schema.Field{
	Name: "__typename",
	Type: schema.NonNullType(schema.NamedType("String")),
}

// FieldSelection is one response key of a collected selection set: the
// field occurrences merged under it and their coerced arguments.
type FieldSelection struct {
	ResponseKey string
	Field       *schema.Field
	// Nodes are the field occurrences merged under ResponseKey, in document
	// order.
	Nodes []*language.Field
	// SelectionSet is the union of the occurrences' sub-selections.
	SelectionSet language.SelectionSet
	Arguments    map[string]any
	Locations    []Location

	argErr error
}

// Name is the schema field name.
func (fs *FieldSelection) Name() string { return fs.Nodes[0].Name }

// collectedFields is the ordered result of collecting one selection set.
type collectedFields struct {
	fields []*FieldSelection
	index  map[string]int
}

func newCollectedFields() *collectedFields {
	return &collectedFields{index: make(map[string]int)}
}

func (cf *collectedFields) add(responseKey string, fieldDef *schema.Field, node *language.Field) {
	if idx, exists := cf.index[responseKey]; exists {
		fs := cf.fields[idx]
		fs.Nodes = append(fs.Nodes, node)
		fs.SelectionSet = append(fs.SelectionSet, node.SelectionSet...)
		fs.Locations = append(fs.Locations, positionLocations(node.Position)...)
		return
	}
	cf.index[responseKey] = len(cf.fields)
	cf.fields = append(cf.fields, &FieldSelection{
		ResponseKey:  responseKey,
		Field:        fieldDef,
		Nodes:        []*language.Field{node},
		SelectionSet: append(language.SelectionSet(nil), node.SelectionSet...),
		Locations:    positionLocations(node.Position),
	})
}

func (cf *collectedFields) keys() []string {
	keys := make([]string, len(cf.fields))
	for i, fs := range cf.fields {
		keys[i] = fs.ResponseKey
	}
	return keys
}

// fatalf creates an error that aborts the whole operation.
func fatalf(format string, args ...any) *GraphQLError {
	return &GraphQLError{Message: fmt.Sprintf(format, args...), Kind: KindFatal}
}

// collector collects and caches selection sets for one operation. The same
// selection set is visited once per list item; the cache key is the object
// type and the field the selection set belongs to, nil for the root.
type collector struct {
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any

	mu    sync.Mutex
	cache map[collectorKey]*collectedFields
}

type collectorKey struct {
	typeName string
	owner    *FieldSelection
}

func newCollector(sch *schema.Schema, doc *language.QueryDocument, variables map[string]any) *collector {
	return &collector{
		schema:    sch,
		document:  doc,
		variables: variables,
		cache:     make(map[collectorKey]*collectedFields),
	}
}

func (c *collector) collect(objectType *schema.Type, owner *FieldSelection, selectionSet language.SelectionSet) (*collectedFields, error) {
	key := collectorKey{typeName: objectType.Name, owner: owner}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.cache[key]; ok {
		return cached, nil
	}
	fields := newCollectedFields()
	if err := c.collectInto(objectType, selectionSet, fields, map[string]bool{}); err != nil {
		return nil, err
	}
	for _, fs := range fields.fields {
		if fs.Field == typenameField {
			continue
		}
		args, err := coerceArguments(c.schema, fs.Field, fs.Nodes[0].Arguments, c.variables)
		if err != nil {
			fs.argErr = err
			continue
		}
		fs.Arguments = args
	}
	c.cache[key] = fields
	return fields, nil
}

func (c *collector) collectInto(objectType *schema.Type, selectionSet language.SelectionSet, fields *collectedFields, visited map[string]bool) error {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			include, err := c.shouldInclude(sel.Directives)
			if err != nil {
				return err
			}
			if !include {
				continue
			}
			responseKey := sel.Alias
			if responseKey == "" {
				responseKey = sel.Name
			}
			var fieldDef *schema.Field
			if sel.Name == "__typename" {
				fieldDef = typenameField
			} else if fieldDef = objectType.Field(sel.Name); fieldDef == nil {
				return fatalf("Cannot query field %q on type %q.", sel.Name, objectType.Name)
			}
			fields.add(responseKey, fieldDef, sel)

		case *language.InlineFragment:
			include, err := c.shouldInclude(sel.Directives)
			if err != nil {
				return err
			}
			if !include || !c.doesFragmentApply(sel.TypeCondition, objectType) {
				continue
			}
			if err := c.collectInto(objectType, sel.SelectionSet, fields, visited); err != nil {
				return err
			}

		case *language.FragmentSpread:
			include, err := c.shouldInclude(sel.Directives)
			if err != nil {
				return err
			}
			if !include || visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			fragment := c.document.Fragments.ForName(sel.Name)
			if fragment == nil {
				return fatalf("Unknown fragment %q.", sel.Name)
			}
			if !c.doesFragmentApply(fragment.TypeCondition, objectType) {
				continue
			}
			if err := c.collectInto(objectType, fragment.SelectionSet, fields, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *collector) doesFragmentApply(typeCondition string, objectType *schema.Type) bool {
	if typeCondition == "" {
		return true
	}
	return c.schema.IsPossibleType(typeCondition, objectType.Name)
}

// shouldInclude evaluates @skip and @include. When both are present and
// disagree, @skip wins.
func (c *collector) shouldInclude(directives language.DirectiveList) (bool, error) {
	if skip := directives.ForName("skip"); skip != nil {
		v, err := c.directiveCondition(skip)
		if err != nil {
			return false, err
		}
		if v {
			return false, nil
		}
	}
	if include := directives.ForName("include"); include != nil {
		v, err := c.directiveCondition(include)
		if err != nil {
			return false, err
		}
		if !v {
			return false, nil
		}
	}
	return true, nil
}

func (c *collector) directiveCondition(d *language.Directive) (bool, error) {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, fatalf("Directive @%s requires argument \"if\".", d.Name)
	}
	v, err := coerceLiteral(c.schema, arg.Value, schema.NonNullType(schema.NamedType("Boolean")), c.variables)
	if err != nil {
		return false, fatalf("Directive @%s: %v", d.Name, err)
	}
	b, _ := v.(bool)
	return b, nil
}

// CollectFields collects the fields selectionSet selects on objectType,
// merging same-key fields and applying fragments and @skip/@include. Keys
// keep first-seen order.
func CollectFields(
	sch *schema.Schema,
	document *language.QueryDocument,
	objectType *schema.Type,
	selectionSet language.SelectionSet,
	variableValues map[string]any,
) ([]*FieldSelection, error) {
	fields, err := newCollector(sch, document, variableValues).collect(objectType, nil, selectionSet)
	if err != nil {
		return nil, err
	}
	for _, fs := range fields.fields {
		if fs.argErr != nil {
			return nil, fs.argErr
		}
	}
	return fields.fields, nil
}
