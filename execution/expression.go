package execution

import (
	"github.com/thingsql/thingsql"
)

// Expression is a source of a single value, evaluated against a record.
type Expression interface {
	ExpressionValue(record *Record) (thingsql.Value, error)
}

type Variable struct {
	name string
}

func NewVariable(name string) *Variable {
	return &Variable{name: name}
}

func (v *Variable) ExpressionValue(record *Record) (thingsql.Value, error) {
	return record.Value(v.name), nil
}

type ConstantValue struct {
	value thingsql.Value
}

func NewConstant(value thingsql.Value) *ConstantValue {
	return &ConstantValue{value: value}
}

func (c *ConstantValue) ExpressionValue(record *Record) (thingsql.Value, error) {
	return c.value, nil
}
