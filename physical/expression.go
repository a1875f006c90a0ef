package physical

import (
	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/execution"
	"github.com/thingsql/thingsql/graph"
)

// Expression describes any source of a single value within a predicate.
type Expression interface {
	Transform(transformers *Transformers) Expression
	Materialize() (execution.Expression, error)
	graph.Visualizer
}

// Variable references a column of the scanned resource by name.
type Variable struct {
	Name string
}

func NewVariable(name string) *Variable {
	return &Variable{Name: name}
}

func (v *Variable) Transform(transformers *Transformers) Expression {
	var expr Expression = &Variable{Name: v.Name}
	if transformers.ExprT != nil {
		expr = transformers.ExprT(expr)
	}
	return expr
}

func (v *Variable) Materialize() (execution.Expression, error) {
	return execution.NewVariable(v.Name), nil
}

func (v *Variable) Visualize() *graph.Node {
	n := graph.NewNode("Variable")
	n.AddField("name", v.Name)
	return n
}

// ConstantValue is a literal operand.
type ConstantValue struct {
	Value thingsql.Value
}

func NewConstantValue(value thingsql.Value) *ConstantValue {
	return &ConstantValue{Value: value}
}

func (c *ConstantValue) Transform(transformers *Transformers) Expression {
	var expr Expression = &ConstantValue{Value: c.Value}
	if transformers.ExprT != nil {
		expr = transformers.ExprT(expr)
	}
	return expr
}

func (c *ConstantValue) Materialize() (execution.Expression, error) {
	return execution.NewConstant(c.Value), nil
}

func (c *ConstantValue) Visualize() *graph.Node {
	n := graph.NewNode("Constant")
	n.AddField("value", c.Value.String())
	return n
}
