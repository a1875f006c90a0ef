package physical

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/graph"
)

// FilterRule describes how a natively-filterable attribute is translated
// into a remote request parameter.
type FilterRule struct {
	// Parameter is the remote API query parameter receiving the value.
	Parameter string
	// Exact tells whether the remote filter implements the relation
	// precisely. Inexact rules (e.g. a prefix filter standing in for
	// equality) narrow the fetched set, but the predicate must still be
	// re-checked locally.
	Exact bool
	// Rewrite converts the literal operand into the parameter value.
	// Returning false rejects the pushdown for this particular literal.
	// A nil Rewrite accepts string, int and time literals as-is.
	Rewrite func(value thingsql.Value) (string, bool)
}

// PushdownSource is the schema knowledge the planner needs about a resource.
// The catalog's resource descriptors implement it.
type PushdownSource interface {
	NativeFilter(column string, relation Relation) (FilterRule, bool)
	NativeSort(column string) bool
	// SupportsDisjunction tells whether the remote API can evaluate an OR
	// of several values of one attribute in a single request.
	SupportsDisjunction() bool
	ColumnType(column string) (thingsql.Type, bool)
}

// SortField is a single requested ordering.
type SortField struct {
	Column     string
	Descending bool
}

// PushdownPlan is the per-scan split of a predicate tree into remote
// request parameters and a locally-evaluated residual. Immutable after
// planning.
type PushdownPlan struct {
	RemoteParams map[string]string
	// RemoteLimit is a row-count hint for the remote API. Zero means no
	// limit is pushed. Only set when the residual is trivially true, since
	// remote truncation under a non-trivial residual would undercount.
	RemoteLimit int
	// Residual must by itself filter correctly everything the remote
	// parameters didn't already exclude.
	Residual Formula
	// RemoteSort is set when the whole requested ordering was pushed down.
	RemoteSort *SortField
	// ExternalSortRequired signals the caller that the requested ordering
	// was not pushed down and has to be applied outside this scan.
	ExternalSortRequired bool
	// Selectivity is a best-effort fraction-of-rows-surviving hint. Not
	// load-bearing for correctness.
	Selectivity float64
}

// Plan splits the predicate into a remote-satisfiable fragment and a local
// residual for the given resource. Pushdown is an optimization only: the
// returned residual filters correctly on its own.
func Plan(source PushdownSource, columns []string, predicate Formula, sortFields []SortField, limit int) *PushdownPlan {
	if predicate == nil {
		predicate = NewConstant(true)
	}

	// Literal-on-the-left comparisons are flipped up front, so the rule
	// matching below only ever sees column-versus-literal predicates.
	predicate = predicate.Transform(&Transformers{FormulaT: flipLiteralLeft})

	plan := &PushdownPlan{
		RemoteParams: map[string]string{},
		Selectivity:  1.0,
	}

	// Coarse per-leaf estimate over the whole predicate, pushed or not.
	for _, leaf := range predicate.ExtractPredicates() {
		plan.Selectivity *= relationSelectivity(leaf.Relation)
	}

	var residual []Formula
	for _, conjunct := range predicate.SplitByAnd() {
		switch f := conjunct.(type) {
		case *Constant:
			if !f.Value {
				residual = append(residual, f)
			}
		case *Predicate:
			pushed, exact := pushPredicate(source, plan, f)
			if !pushed || !exact {
				residual = append(residual, f)
			}
		case *Or:
			// Disjunctions are pushed whole or not at all. Splitting one
			// would widen or narrow the result set.
			if !pushDisjunction(source, plan, f) {
				residual = append(residual, f)
			}
		case *Not:
			// Negation is never pushed down.
			residual = append(residual, f)
		default:
			residual = append(residual, conjunct)
		}
	}
	plan.Residual = combineByAnd(residual)

	switch {
	case len(sortFields) == 0:
	case len(sortFields) == 1 && source.NativeSort(sortFields[0].Column):
		field := sortFields[0]
		plan.RemoteSort = &field
	default:
		plan.ExternalSortRequired = true
	}

	if limit > 0 && isTriviallyTrue(plan.Residual) {
		plan.RemoteLimit = limit
	}

	return plan
}

func isTriviallyTrue(formula Formula) bool {
	constant, ok := formula.(*Constant)
	return ok && constant.Value
}

func combineByAnd(formulas []Formula) Formula {
	if len(formulas) == 0 {
		return NewConstant(true)
	}
	out := formulas[0]
	for _, formula := range formulas[1:] {
		out = NewAnd(out, formula)
	}
	return out
}

// flipLiteralLeft rewrites a literal-versus-column comparison into
// column-versus-literal form where the relation allows it. Applied to the
// whole tree before planning, so the pushdown rules only deal with one
// operand order.
func flipLiteralLeft(formula Formula) Formula {
	predicate, ok := formula.(*Predicate)
	if !ok {
		return formula
	}
	constant, isConstant := predicate.Left.(*ConstantValue)
	variable, isVariable := predicate.Right.(*Variable)
	if !isConstant || !isVariable {
		return formula
	}
	flipped, flippable := flipRelation(predicate.Relation)
	if !flippable {
		return formula
	}
	return NewPredicate(NewVariable(variable.Name), flipped, NewConstantValue(constant.Value))
}

// normalizePredicate reads a column-versus-literal comparison into
// (column, relation, literal) form. Anything else isn't a candidate for
// pushdown.
func normalizePredicate(f *Predicate) (column string, relation Relation, literal thingsql.Value, ok bool) {
	variable, isVariable := f.Left.(*Variable)
	constant, isConstant := f.Right.(*ConstantValue)
	if !isVariable || !isConstant {
		return "", "", thingsql.ZeroValue, false
	}
	return variable.Name, f.Relation, constant.Value, true
}

func flipRelation(relation Relation) (Relation, bool) {
	switch relation {
	case Equal, NotEqual:
		return relation, true
	case MoreThan:
		return LessThan, true
	case LessThan:
		return MoreThan, true
	case GreaterEqual:
		return LessEqual, true
	case LessEqual:
		return GreaterEqual, true
	default:
		return "", false
	}
}

func pushPredicate(source PushdownSource, plan *PushdownPlan, f *Predicate) (pushed, exact bool) {
	column, relation, literal, ok := normalizePredicate(f)
	if !ok {
		return false, false
	}
	columnType, ok := source.ColumnType(column)
	if !ok {
		return false, false
	}
	if relation.Range() && !columnType.Ordered() {
		return false, false
	}
	rule, ok := source.NativeFilter(column, relation)
	if !ok {
		return false, false
	}
	value, ok := rewriteLiteral(rule, literal)
	if !ok {
		return false, false
	}
	if _, taken := plan.RemoteParams[rule.Parameter]; taken {
		// The remote API takes a single value per parameter. Further
		// conjuncts on it stay local.
		return false, false
	}
	plan.RemoteParams[rule.Parameter] = value
	return true, rule.Exact
}

func rewriteLiteral(rule FilterRule, literal thingsql.Value) (string, bool) {
	if rule.Rewrite != nil {
		return rule.Rewrite(literal)
	}
	switch literal.Type.TypeID {
	case thingsql.TypeIDString:
		return literal.Str, true
	case thingsql.TypeIDInt:
		return fmt.Sprint(literal.Int), true
	case thingsql.TypeIDTime:
		return literal.Time.Format(time.RFC3339), true
	default:
		return "", false
	}
}

func relationSelectivity(relation Relation) float64 {
	switch relation {
	case Equal:
		return 0.1
	case In:
		return 0.2
	case Like:
		return 0.25
	case MoreThan, LessThan, GreaterEqual, LessEqual:
		return 0.3
	default:
		return 1.0
	}
}

// pushDisjunction pushes an OR only when the remote API supports per-
// attribute disjunction and every flattened child is an exactly-pushable
// comparison against the same parameter. The values are sent as one
// comma-joined parameter.
func pushDisjunction(source PushdownSource, plan *PushdownPlan, f *Or) bool {
	if !source.SupportsDisjunction() {
		return false
	}

	parameter := ""
	var values []string
	for _, child := range flattenOr(f) {
		predicate, isPredicate := child.(*Predicate)
		if !isPredicate {
			return false
		}
		column, relation, literal, ok := normalizePredicate(predicate)
		if !ok {
			return false
		}
		if _, ok := source.ColumnType(column); !ok {
			return false
		}
		rule, ok := source.NativeFilter(column, relation)
		if !ok || !rule.Exact {
			return false
		}
		if parameter == "" {
			parameter = rule.Parameter
		} else if parameter != rule.Parameter {
			return false
		}
		value, ok := rewriteLiteral(rule, literal)
		if !ok {
			return false
		}
		values = append(values, value)
	}
	if _, taken := plan.RemoteParams[parameter]; taken {
		return false
	}

	sort.Strings(values)
	plan.RemoteParams[parameter] = strings.Join(values, ",")
	return true
}

func flattenOr(f *Or) []Formula {
	var out []Formula
	if left, ok := f.Left.(*Or); ok {
		out = append(out, flattenOr(left)...)
	} else {
		out = append(out, f.Left)
	}
	if right, ok := f.Right.(*Or); ok {
		out = append(out, flattenOr(right)...)
	} else {
		out = append(out, f.Right)
	}
	return out
}

func (plan *PushdownPlan) Visualize() *graph.Node {
	n := graph.NewNode("PushdownPlan")

	params := graph.NewNode("RemoteParams")
	keys := make([]string, 0, len(plan.RemoteParams))
	for key := range plan.RemoteParams {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		params.AddField(key, plan.RemoteParams[key])
	}
	n.AddChild("remote", params)

	n.AddChild("residual", plan.Residual.Visualize())
	if plan.RemoteLimit > 0 {
		n.AddField("remoteLimit", fmt.Sprint(plan.RemoteLimit))
	}
	if plan.RemoteSort != nil {
		n.AddField("remoteSort", plan.RemoteSort.Column)
	}
	if plan.ExternalSortRequired {
		n.AddField("externalSort", "required")
	}
	n.AddField("selectivity", fmt.Sprintf("%.3f", plan.Selectivity))
	return n
}
