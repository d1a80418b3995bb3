package language

import "github.com/vektah/gqlparser/v2/ast"

// Executable documents.
type (
	QueryDocument       = ast.QueryDocument
	OperationDefinition = ast.OperationDefinition
	SelectionSet        = ast.SelectionSet
	Field               = ast.Field
	InlineFragment      = ast.InlineFragment
	FragmentSpread      = ast.FragmentSpread
	Directive           = ast.Directive
	DirectiveList       = ast.DirectiveList
	ArgumentList        = ast.ArgumentList
	Position            = ast.Position
)

// Schema documents and input values.
type (
	SchemaDocument = ast.SchemaDocument
	Value          = ast.Value
	Type           = ast.Type
)

const (
	Query        = ast.Query
	Mutation     = ast.Mutation
	Subscription = ast.Subscription
)

// Literal kinds of a Value.
const (
	Variable     = ast.Variable
	IntValue     = ast.IntValue
	FloatValue   = ast.FloatValue
	StringValue  = ast.StringValue
	BlockValue   = ast.BlockValue
	BooleanValue = ast.BooleanValue
	NullValue    = ast.NullValue
	EnumValue    = ast.EnumValue
	ListValue    = ast.ListValue
	ObjectValue  = ast.ObjectValue
)
