package physical

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/thingsql/thingsql/execution"
	"github.com/thingsql/thingsql/graph"
)

// Transformers are callbacks applied by Formula.Transform and
// Expression.Transform after recursing into children.
type Transformers struct {
	FormulaT func(Formula) Formula
	ExprT    func(Expression) Expression
}

// Formula describes any source of a logical value. It's a closed set of
// variants: Constant, And, Or, Not and Predicate.
type Formula interface {
	// Transform returns a new Formula after recursively calling Transform.
	Transform(transformers *Transformers) Formula
	// SplitByAnd splits a top-level conjunction into its conjuncts.
	SplitByAnd() []Formula
	// ExtractPredicates lists all leaf predicates of the tree.
	ExtractPredicates() []*Predicate
	Materialize() (execution.Formula, error)
	graph.Visualizer
}

type Constant struct {
	Value bool
}

func NewConstant(value bool) *Constant {
	return &Constant{Value: value}
}

func (f *Constant) Transform(transformers *Transformers) Formula {
	var formula Formula = &Constant{Value: f.Value}
	if transformers.FormulaT != nil {
		formula = transformers.FormulaT(formula)
	}
	return formula
}

func (f *Constant) SplitByAnd() []Formula {
	return []Formula{f}
}

func (f *Constant) ExtractPredicates() []*Predicate {
	return []*Predicate{}
}

func (f *Constant) Materialize() (execution.Formula, error) {
	return execution.NewConstantFormula(f.Value), nil
}

func (f *Constant) Visualize() *graph.Node {
	n := graph.NewNode("Constant")
	n.AddField("value", fmt.Sprint(f.Value))
	return n
}

type And struct {
	Left, Right Formula
}

func NewAnd(left, right Formula) *And {
	return &And{Left: left, Right: right}
}

func (f *And) Transform(transformers *Transformers) Formula {
	var formula Formula = &And{
		Left:  f.Left.Transform(transformers),
		Right: f.Right.Transform(transformers),
	}
	if transformers.FormulaT != nil {
		formula = transformers.FormulaT(formula)
	}
	return formula
}

func (f *And) SplitByAnd() []Formula {
	return append(f.Left.SplitByAnd(), f.Right.SplitByAnd()...)
}

func (f *And) ExtractPredicates() []*Predicate {
	return append(f.Left.ExtractPredicates(), f.Right.ExtractPredicates()...)
}

func (f *And) Materialize() (execution.Formula, error) {
	materializedLeft, err := f.Left.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize left operand")
	}
	materializedRight, err := f.Right.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize right operand")
	}
	return execution.NewAnd(materializedLeft, materializedRight), nil
}

func (f *And) Visualize() *graph.Node {
	n := graph.NewNode("And")
	n.AddChild("left", f.Left.Visualize())
	n.AddChild("right", f.Right.Visualize())
	return n
}

type Or struct {
	Left, Right Formula
}

func NewOr(left, right Formula) *Or {
	return &Or{Left: left, Right: right}
}

func (f *Or) Transform(transformers *Transformers) Formula {
	var formula Formula = &Or{
		Left:  f.Left.Transform(transformers),
		Right: f.Right.Transform(transformers),
	}
	if transformers.FormulaT != nil {
		formula = transformers.FormulaT(formula)
	}
	return formula
}

func (f *Or) SplitByAnd() []Formula {
	return []Formula{f}
}

func (f *Or) ExtractPredicates() []*Predicate {
	return append(f.Left.ExtractPredicates(), f.Right.ExtractPredicates()...)
}

func (f *Or) Materialize() (execution.Formula, error) {
	materializedLeft, err := f.Left.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize left operand")
	}
	materializedRight, err := f.Right.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize right operand")
	}
	return execution.NewOr(materializedLeft, materializedRight), nil
}

func (f *Or) Visualize() *graph.Node {
	n := graph.NewNode("Or")
	n.AddChild("left", f.Left.Visualize())
	n.AddChild("right", f.Right.Visualize())
	return n
}

type Not struct {
	Child Formula
}

func NewNot(child Formula) *Not {
	return &Not{Child: child}
}

func (f *Not) Transform(transformers *Transformers) Formula {
	var formula Formula = &Not{
		Child: f.Child.Transform(transformers),
	}
	if transformers.FormulaT != nil {
		formula = transformers.FormulaT(formula)
	}
	return formula
}

func (f *Not) SplitByAnd() []Formula {
	return []Formula{f}
}

func (f *Not) ExtractPredicates() []*Predicate {
	return f.Child.ExtractPredicates()
}

func (f *Not) Materialize() (execution.Formula, error) {
	materialized, err := f.Child.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize operand")
	}
	return execution.NewNot(materialized), nil
}

func (f *Not) Visualize() *graph.Node {
	n := graph.NewNode("Not")
	n.AddChild("source", f.Child.Visualize())
	return n
}

type Predicate struct {
	Left     Expression
	Relation Relation
	Right    Expression
}

func NewPredicate(left Expression, relation Relation, right Expression) *Predicate {
	return &Predicate{Left: left, Relation: relation, Right: right}
}

func (f *Predicate) Transform(transformers *Transformers) Formula {
	var formula Formula = &Predicate{
		Left:     f.Left.Transform(transformers),
		Relation: f.Relation,
		Right:    f.Right.Transform(transformers),
	}
	if transformers.FormulaT != nil {
		formula = transformers.FormulaT(formula)
	}
	return formula
}

func (f *Predicate) SplitByAnd() []Formula {
	return []Formula{f}
}

func (f *Predicate) ExtractPredicates() []*Predicate {
	return []*Predicate{f}
}

func (f *Predicate) Materialize() (execution.Formula, error) {
	materializedLeft, err := f.Left.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize left operand")
	}
	materializedRight, err := f.Right.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize right operand")
	}
	materializedRelation, err := f.Relation.Materialize()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't materialize relation")
	}
	return execution.NewPredicate(materializedLeft, materializedRelation, materializedRight), nil
}

func (f *Predicate) Visualize() *graph.Node {
	n := graph.NewNode("Predicate")
	n.AddField("relation", string(f.Relation))
	n.AddChild("left", f.Left.Visualize())
	n.AddChild("right", f.Right.Visualize())
	return n
}
