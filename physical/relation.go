package physical

import (
	"github.com/pkg/errors"

	"github.com/thingsql/thingsql/execution"
)

// Relation describes a comparison operator.
type Relation string

const (
	Equal        Relation = "equal"
	NotEqual     Relation = "not_equal"
	MoreThan     Relation = "more_than"
	LessThan     Relation = "less_than"
	GreaterEqual Relation = "greater_equal"
	LessEqual    Relation = "less_equal"
	Like         Relation = "like"
	In           Relation = "in"
	NotIn        Relation = "not_in"
)

// Range tells whether this relation is a range comparison, which is only
// meaningful for ordered operand types.
func (rel Relation) Range() bool {
	switch rel {
	case MoreThan, LessThan, GreaterEqual, LessEqual:
		return true
	default:
		return false
	}
}

func (rel Relation) Materialize() (execution.Relation, error) {
	switch rel {
	case Equal:
		return execution.NewEqual(), nil
	case NotEqual:
		return execution.NewNotEqual(), nil
	case MoreThan:
		return execution.NewMoreThan(), nil
	case LessThan:
		return execution.NewLessThan(), nil
	case GreaterEqual:
		return execution.NewGreaterEqual(), nil
	case LessEqual:
		return execution.NewLessEqual(), nil
	case Like:
		return execution.NewLike(), nil
	case In:
		return execution.NewIn(), nil
	case NotIn:
		return execution.NewNotIn(), nil
	default:
		return nil, errors.Errorf("invalid relation: %s", rel)
	}
}
