package language

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Error is a positioned syntax or validation error.
type Error = gqlerror.Error

// ErrorList is a list of positioned errors.
type ErrorList = gqlerror.List

// Location is a line/column pair inside the source text.
type Location = gqlerror.Location

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks doc against the schema with the default rule set.
func Validate(schema *ast.Schema, doc *QueryDocument) ErrorList {
	return validator.ValidateWithRules(schema, doc, nil)
}

// AsErrorList converts err into positioned errors, wrapping foreign errors.
func AsErrorList(err error) ErrorList {
	if err == nil {
		return nil
	}
	var list ErrorList
	if errors.As(err, &list) {
		return list
	}
	var single *Error
	if errors.As(err, &single) {
		return ErrorList{single}
	}
	return ErrorList{gqlerror.Wrap(err)}
}
