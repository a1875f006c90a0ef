package execution

import (
	"github.com/pkg/errors"
)

// Formula is a materialized boolean predicate evaluated record by record.
type Formula interface {
	Evaluate(record *Record) (bool, error)
}

type Constant struct {
	Value bool
}

func NewConstantFormula(value bool) *Constant {
	return &Constant{Value: value}
}

func (f *Constant) Evaluate(record *Record) (bool, error) {
	return f.Value, nil
}

type And struct {
	Left, Right Formula
}

func NewAnd(left, right Formula) *And {
	return &And{Left: left, Right: right}
}

func (f *And) Evaluate(record *Record) (bool, error) {
	left, err := f.Left.Evaluate(record)
	if err != nil {
		return false, errors.Wrap(err, "couldn't evaluate left operand of and")
	}
	if !left {
		return false, nil
	}
	right, err := f.Right.Evaluate(record)
	if err != nil {
		return false, errors.Wrap(err, "couldn't evaluate right operand of and")
	}
	return right, nil
}

type Or struct {
	Left, Right Formula
}

func NewOr(left, right Formula) *Or {
	return &Or{Left: left, Right: right}
}

func (f *Or) Evaluate(record *Record) (bool, error) {
	left, err := f.Left.Evaluate(record)
	if err != nil {
		return false, errors.Wrap(err, "couldn't evaluate left operand of or")
	}
	if left {
		return true, nil
	}
	right, err := f.Right.Evaluate(record)
	if err != nil {
		return false, errors.Wrap(err, "couldn't evaluate right operand of or")
	}
	return right, nil
}

type Not struct {
	Child Formula
}

func NewNot(child Formula) *Not {
	return &Not{Child: child}
}

func (f *Not) Evaluate(record *Record) (bool, error) {
	child, err := f.Child.Evaluate(record)
	if err != nil {
		return false, errors.Wrap(err, "couldn't evaluate operand of not")
	}
	return !child, nil
}

type Predicate struct {
	Left     Expression
	Relation Relation
	Right    Expression
}

func NewPredicate(left Expression, relation Relation, right Expression) *Predicate {
	return &Predicate{Left: left, Relation: relation, Right: right}
}

func (f *Predicate) Evaluate(record *Record) (bool, error) {
	return f.Relation.Apply(record, f.Left, f.Right)
}
