// Package schema holds the executable type system: named types linked by
// name through a single map, directive definitions and the root operation
// types.
package schema

import (
	"slices"

	"github.com/vektah/gqlparser/v2/ast"
)

// Schema is the type system an executor runs against. Types refer to each
// other by name only, so every lookup goes through Types.
type Schema struct {
	Description      string
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type
	Directives       map[string]*Directive

	source *ast.Schema
}

// GetQueryType returns the query root, or nil.
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the mutation root, or nil.
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the subscription root, or nil.
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// Source returns the parsed schema this Schema was built from, or nil when
// it was assembled by hand. Document validation needs it.
func (s *Schema) Source() *ast.Schema { return s.source }

// GetField looks up typeName.fieldName.
func (s *Schema) GetField(typeName, fieldName string) *Field {
	if t := s.Types[typeName]; t != nil {
		return t.Field(fieldName)
	}
	return nil
}

// IsPossibleType reports whether objectType can stand in for abstractType:
// it is the same type, implements the interface, or belongs to the union.
func (s *Schema) IsPossibleType(abstractType, objectType string) bool {
	if abstractType == objectType {
		return true
	}
	if obj := s.Types[objectType]; obj != nil && slices.Contains(obj.Interfaces, abstractType) {
		return true
	}
	abs := s.Types[abstractType]
	return abs != nil && slices.Contains(abs.PossibleTypes, objectType)
}
