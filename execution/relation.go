package execution

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/thingsql/thingsql"
)

// Relation applies a comparison operator to the values of two expressions.
type Relation interface {
	Apply(record *Record, left, right Expression) (bool, error)
}

func operands(record *Record, left, right Expression) (thingsql.Value, thingsql.Value, error) {
	leftValue, err := left.ExpressionValue(record)
	if err != nil {
		return thingsql.ZeroValue, thingsql.ZeroValue, errors.Wrap(err, "couldn't get value of left operand")
	}
	rightValue, err := right.ExpressionValue(record)
	if err != nil {
		return thingsql.ZeroValue, thingsql.ZeroValue, errors.Wrap(err, "couldn't get value of right operand")
	}
	return leftValue, rightValue, nil
}

type Equal struct{}

func NewEqual() Relation { return &Equal{} }

func (rel *Equal) Apply(record *Record, left, right Expression) (bool, error) {
	leftValue, rightValue, err := operands(record, left, right)
	if err != nil {
		return false, err
	}
	if leftValue.IsNull() || rightValue.IsNull() {
		return false, nil
	}
	return leftValue.Equal(rightValue), nil
}

type NotEqual struct{}

func NewNotEqual() Relation { return &NotEqual{} }

func (rel *NotEqual) Apply(record *Record, left, right Expression) (bool, error) {
	leftValue, rightValue, err := operands(record, left, right)
	if err != nil {
		return false, err
	}
	if leftValue.IsNull() || rightValue.IsNull() {
		return false, nil
	}
	return !leftValue.Equal(rightValue), nil
}

func applyOrdered(record *Record, left, right Expression, matches func(int) bool) (bool, error) {
	leftValue, rightValue, err := operands(record, left, right)
	if err != nil {
		return false, err
	}
	if leftValue.IsNull() || rightValue.IsNull() {
		return false, nil
	}
	if !leftValue.Type.Ordered() || !rightValue.Type.Ordered() {
		return false, errors.Errorf(
			"invalid operands to ordered comparison: %s and %s with types %s and %s",
			leftValue.String(), rightValue.String(), leftValue.Type.String(), rightValue.Type.String())
	}
	return matches(leftValue.Compare(rightValue)), nil
}

type MoreThan struct{}

func NewMoreThan() Relation { return &MoreThan{} }

func (rel *MoreThan) Apply(record *Record, left, right Expression) (bool, error) {
	return applyOrdered(record, left, right, func(c int) bool { return c > 0 })
}

type LessThan struct{}

func NewLessThan() Relation { return &LessThan{} }

func (rel *LessThan) Apply(record *Record, left, right Expression) (bool, error) {
	return applyOrdered(record, left, right, func(c int) bool { return c < 0 })
}

type GreaterEqual struct{}

func NewGreaterEqual() Relation { return &GreaterEqual{} }

func (rel *GreaterEqual) Apply(record *Record, left, right Expression) (bool, error) {
	return applyOrdered(record, left, right, func(c int) bool { return c >= 0 })
}

type LessEqual struct{}

func NewLessEqual() Relation { return &LessEqual{} }

func (rel *LessEqual) Apply(record *Record, left, right Expression) (bool, error) {
	return applyOrdered(record, left, right, func(c int) bool { return c <= 0 })
}

type Like struct {
	compiled map[string]*regexp.Regexp
}

func NewLike() Relation {
	return &Like{compiled: make(map[string]*regexp.Regexp)}
}

func (rel *Like) Apply(record *Record, left, right Expression) (bool, error) {
	leftValue, rightValue, err := operands(record, left, right)
	if err != nil {
		return false, err
	}
	if leftValue.IsNull() || rightValue.IsNull() {
		return false, nil
	}
	if leftValue.Type.TypeID != thingsql.TypeIDString || rightValue.Type.TypeID != thingsql.TypeIDString {
		return false, errors.Errorf(
			"invalid operands to like: %s and %s with types %s and %s",
			leftValue.String(), rightValue.String(), leftValue.Type.String(), rightValue.Type.String())
	}

	re, ok := rel.compiled[rightValue.Str]
	if !ok {
		re, err = compileLikePattern(rightValue.Str)
		if err != nil {
			return false, errors.Wrapf(err, "couldn't compile like pattern %s", rightValue.Str)
		}
		rel.compiled[rightValue.Str] = re
	}
	return re.MatchString(leftValue.Str), nil
}

// compileLikePattern translates a SQL LIKE pattern into an anchored regexp:
// % matches any run of characters, _ matches exactly one.
func compileLikePattern(pattern string) (*regexp.Regexp, error) {
	var builder strings.Builder
	builder.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			builder.WriteString(".*")
		case '_':
			builder.WriteString(".")
		default:
			builder.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	builder.WriteString("$")
	return regexp.Compile(builder.String())
}

type In struct{}

func NewIn() Relation { return &In{} }

func (rel *In) Apply(record *Record, left, right Expression) (bool, error) {
	leftValue, rightValue, err := operands(record, left, right)
	if err != nil {
		return false, err
	}
	if leftValue.IsNull() || rightValue.IsNull() {
		return false, nil
	}
	if rightValue.Type.TypeID != thingsql.TypeIDStringSet {
		return false, errors.Errorf(
			"invalid right operand to in: %s with type %s, wanted a string set",
			rightValue.String(), rightValue.Type.String())
	}
	if leftValue.Type.TypeID != thingsql.TypeIDString {
		return false, errors.Errorf(
			"invalid left operand to in: %s with type %s, wanted a string",
			leftValue.String(), leftValue.Type.String())
	}
	for _, candidate := range rightValue.StringSet {
		if candidate == leftValue.Str {
			return true, nil
		}
	}
	return false, nil
}

type NotIn struct{}

func NewNotIn() Relation { return &NotIn{} }

func (rel *NotIn) Apply(record *Record, left, right Expression) (bool, error) {
	matched, err := (&In{}).Apply(record, left, right)
	if err != nil {
		return false, err
	}
	return !matched, nil
}
