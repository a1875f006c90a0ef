package physical

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/thingsql/thingsql"
)

// stubSource is a minimal PushdownSource with per-test filter rules.
type stubSource struct {
	filters     map[string]map[Relation]FilterRule
	sortable    map[string]bool
	disjunction bool
	types       map[string]thingsql.Type
}

func (s *stubSource) NativeFilter(column string, relation Relation) (FilterRule, bool) {
	rule, ok := s.filters[column][relation]
	return rule, ok
}

func (s *stubSource) NativeSort(column string) bool {
	return s.sortable[column]
}

func (s *stubSource) SupportsDisjunction() bool {
	return s.disjunction
}

func (s *stubSource) ColumnType(column string) (thingsql.Type, bool) {
	t, ok := s.types[column]
	return t, ok
}

func newStubSource() *stubSource {
	return &stubSource{
		filters: map[string]map[Relation]FilterRule{
			"device_type": {
				Equal: {Parameter: "deviceType", Exact: true},
			},
			"device_name": {
				Equal: {Parameter: "namePrefix", Exact: false},
			},
		},
		sortable: map[string]bool{"device_name": true},
		types: map[string]thingsql.Type{
			"device_type": thingsql.String,
			"device_name": thingsql.String,
			"version":     thingsql.Int,
			"attributes":  thingsql.Json,
		},
	}
}

func eq(column, literal string) Formula {
	return NewPredicate(NewVariable(column), Equal, NewConstantValue(thingsql.NewString(literal)))
}

func TestPlanExactEquality(t *testing.T) {
	plan := Plan(newStubSource(), nil, eq("device_type", "sensor"), nil, 0)

	wantParams := map[string]string{"deviceType": "sensor"}
	if !reflect.DeepEqual(plan.RemoteParams, wantParams) {
		t.Errorf("got remote params %v, want %v", plan.RemoteParams, wantParams)
	}
	if !isTriviallyTrue(plan.Residual) {
		t.Errorf("exactly pushed predicate should leave a trivially true residual, got %v", plan.Residual)
	}
}

func TestPlanInexactEqualityStaysInResidual(t *testing.T) {
	predicate := eq("device_name", "dev-1")
	plan := Plan(newStubSource(), nil, predicate, nil, 0)

	wantParams := map[string]string{"namePrefix": "dev-1"}
	if !reflect.DeepEqual(plan.RemoteParams, wantParams) {
		t.Errorf("got remote params %v, want %v", plan.RemoteParams, wantParams)
	}
	// The parameter narrows the listing to a superset, so the predicate must
	// still be evaluated locally.
	if isTriviallyTrue(plan.Residual) {
		t.Errorf("inexactly pushed predicate must stay in the residual")
	}
	if _, ok := plan.Residual.(*Predicate); !ok {
		t.Errorf("got residual %v, want the original predicate", plan.Residual)
	}
}

func TestPlanConjunctionSplits(t *testing.T) {
	predicate := NewAnd(
		eq("device_type", "sensor"),
		NewPredicate(NewVariable("version"), MoreThan, NewConstantValue(thingsql.NewInt(3))),
	)
	plan := Plan(newStubSource(), nil, predicate, nil, 0)

	wantParams := map[string]string{"deviceType": "sensor"}
	if !reflect.DeepEqual(plan.RemoteParams, wantParams) {
		t.Errorf("got remote params %v, want %v", plan.RemoteParams, wantParams)
	}
	residual, ok := plan.Residual.(*Predicate)
	if !ok {
		t.Fatalf("got residual %v, want the version predicate", plan.Residual)
	}
	if residual.Relation != MoreThan {
		t.Errorf("got residual relation %s, want %s", residual.Relation, MoreThan)
	}
}

func TestPlanNegationNeverPushed(t *testing.T) {
	predicate := NewNot(eq("device_type", "sensor"))
	plan := Plan(newStubSource(), nil, predicate, nil, 0)

	if len(plan.RemoteParams) != 0 {
		t.Errorf("negation must not produce remote params, got %v", plan.RemoteParams)
	}
	if _, ok := plan.Residual.(*Not); !ok {
		t.Errorf("got residual %v, want the negation", plan.Residual)
	}
}

func TestPlanLiteralOnLeftFlips(t *testing.T) {
	predicate := NewPredicate(NewConstantValue(thingsql.NewString("sensor")), Equal, NewVariable("device_type"))
	plan := Plan(newStubSource(), nil, predicate, nil, 0)

	wantParams := map[string]string{"deviceType": "sensor"}
	if !reflect.DeepEqual(plan.RemoteParams, wantParams) {
		t.Errorf("got remote params %v, want %v", plan.RemoteParams, wantParams)
	}
}

func TestPlanDuplicateParameterStaysLocal(t *testing.T) {
	predicate := NewAnd(eq("device_type", "sensor"), eq("device_type", "gateway"))
	plan := Plan(newStubSource(), nil, predicate, nil, 0)

	wantParams := map[string]string{"deviceType": "sensor"}
	if !reflect.DeepEqual(plan.RemoteParams, wantParams) {
		t.Errorf("got remote params %v, want %v", plan.RemoteParams, wantParams)
	}
	if isTriviallyTrue(plan.Residual) {
		t.Errorf("second conjunct on the same parameter must stay in the residual")
	}
}

func TestPlanRangeOnUnorderedStaysLocal(t *testing.T) {
	source := newStubSource()
	source.filters["attributes"] = map[Relation]FilterRule{
		MoreThan: {Parameter: "attributes", Exact: true},
	}
	predicate := NewPredicate(NewVariable("attributes"), MoreThan, NewConstantValue(thingsql.NewString("x")))
	plan := Plan(source, nil, predicate, nil, 0)

	if len(plan.RemoteParams) != 0 {
		t.Errorf("range comparison on an unordered column must not be pushed, got %v", plan.RemoteParams)
	}
}

func TestPlanDisjunctionAllOrNothing(t *testing.T) {
	source := newStubSource()
	source.disjunction = true

	// Every child exactly pushable against one parameter: pushed whole,
	// values joined in sorted order.
	pushable := NewOr(NewOr(eq("device_type", "sensor"), eq("device_type", "gateway")), eq("device_type", "camera"))
	plan := Plan(source, nil, pushable, nil, 0)
	wantParams := map[string]string{"deviceType": "camera,gateway,sensor"}
	if !reflect.DeepEqual(plan.RemoteParams, wantParams) {
		t.Errorf("got remote params %v, want %v", plan.RemoteParams, wantParams)
	}
	if !isTriviallyTrue(plan.Residual) {
		t.Errorf("fully pushed disjunction should leave a trivially true residual, got %v", plan.Residual)
	}

	// One child not exactly pushable: the whole disjunction stays local.
	mixed := NewOr(eq("device_type", "sensor"), eq("device_name", "dev-1"))
	plan = Plan(source, nil, mixed, nil, 0)
	if len(plan.RemoteParams) != 0 {
		t.Errorf("partially pushable disjunction must not be split, got %v", plan.RemoteParams)
	}
	if _, ok := plan.Residual.(*Or); !ok {
		t.Errorf("got residual %v, want the whole disjunction", plan.Residual)
	}
}

func TestPlanDisjunctionUnsupportedStaysLocal(t *testing.T) {
	predicate := NewOr(eq("device_type", "sensor"), eq("device_type", "gateway"))
	plan := Plan(newStubSource(), nil, predicate, nil, 0)

	if len(plan.RemoteParams) != 0 {
		t.Errorf("disjunction must stay local when the source doesn't support it, got %v", plan.RemoteParams)
	}
}

func TestPlanLimitOnlyWithTrivialResidual(t *testing.T) {
	plan := Plan(newStubSource(), nil, eq("device_type", "sensor"), nil, 10)
	if plan.RemoteLimit != 10 {
		t.Errorf("got remote limit %d, want 10", plan.RemoteLimit)
	}

	plan = Plan(newStubSource(), nil, eq("device_name", "dev-1"), nil, 10)
	if plan.RemoteLimit != 0 {
		t.Errorf("limit must not be pushed below a non-trivial residual, got %d", plan.RemoteLimit)
	}
}

func TestPlanSort(t *testing.T) {
	plan := Plan(newStubSource(), nil, nil, []SortField{{Column: "device_name"}}, 0)
	if plan.RemoteSort == nil || plan.RemoteSort.Column != "device_name" {
		t.Errorf("got remote sort %v, want device_name", plan.RemoteSort)
	}
	if plan.ExternalSortRequired {
		t.Errorf("pushed sort must not require an external sort")
	}

	plan = Plan(newStubSource(), nil, nil, []SortField{{Column: "device_type"}}, 0)
	if plan.RemoteSort != nil {
		t.Errorf("got remote sort %v, want none", plan.RemoteSort)
	}
	if !plan.ExternalSortRequired {
		t.Errorf("unpushable sort must set ExternalSortRequired")
	}

	plan = Plan(newStubSource(), nil, nil, []SortField{{Column: "device_name"}, {Column: "device_type"}}, 0)
	if !plan.ExternalSortRequired {
		t.Errorf("multi-column sort must set ExternalSortRequired")
	}
}

func TestPlanNilPredicate(t *testing.T) {
	plan := Plan(newStubSource(), nil, nil, nil, 0)
	if len(plan.RemoteParams) != 0 {
		t.Errorf("got remote params %v, want none", plan.RemoteParams)
	}
	if !isTriviallyTrue(plan.Residual) {
		t.Errorf("got residual %v, want trivially true", plan.Residual)
	}
	if plan.Selectivity != 1.0 {
		t.Errorf("got selectivity %f, want 1.0", plan.Selectivity)
	}
}

func TestTransformRebuildsTree(t *testing.T) {
	formula := NewAnd(
		NewNot(eq("device_type", "sensor")),
		NewOr(eq("device_name", "dev-1"), NewConstant(true)),
	)

	prefixed := formula.Transform(&Transformers{
		ExprT: func(expr Expression) Expression {
			if variable, ok := expr.(*Variable); ok {
				return NewVariable("raw_" + variable.Name)
			}
			return expr
		},
	})

	predicates := prefixed.ExtractPredicates()
	if len(predicates) != 2 {
		t.Fatalf("got %d predicates, want 2", len(predicates))
	}
	for _, predicate := range predicates {
		variable, ok := predicate.Left.(*Variable)
		if !ok || !strings.HasPrefix(variable.Name, "raw_") {
			t.Errorf("got left operand %v, want a raw_-prefixed variable", predicate.Left)
		}
	}

	// The original tree is untouched.
	original := formula.ExtractPredicates()
	if len(original) != 2 || original[0].Left.(*Variable).Name != "device_type" {
		t.Errorf("transforming must not mutate the source tree, got %v", original)
	}
}

func TestPlanNormalizesOperandOrderEverywhere(t *testing.T) {
	source := newStubSource()
	source.disjunction = true

	// Flipping applies inside disjunction children too, not only at the
	// top-level conjuncts.
	predicate := NewOr(
		NewPredicate(NewConstantValue(thingsql.NewString("sensor")), Equal, NewVariable("device_type")),
		eq("device_type", "gateway"),
	)
	plan := Plan(source, nil, predicate, nil, 0)

	wantParams := map[string]string{"deviceType": "gateway,sensor"}
	if !reflect.DeepEqual(plan.RemoteParams, wantParams) {
		t.Errorf("got remote params %v, want %v", plan.RemoteParams, wantParams)
	}
}

func TestPlanSelectivityCoversResidual(t *testing.T) {
	// One pushed equality (0.1) and one residual range comparison (0.3):
	// the estimate covers both.
	predicate := NewAnd(
		eq("device_type", "sensor"),
		NewPredicate(NewVariable("version"), MoreThan, NewConstantValue(thingsql.NewInt(3))),
	)
	plan := Plan(newStubSource(), nil, predicate, nil, 0)

	if math.Abs(plan.Selectivity-0.03) > 1e-9 {
		t.Errorf("got selectivity %f, want 0.03", plan.Selectivity)
	}
}

func TestPlanRewriteRejectionStaysLocal(t *testing.T) {
	source := newStubSource()
	source.filters["device_name"][Like] = FilterRule{
		Parameter: "namePrefix",
		Exact:     true,
		Rewrite: func(value thingsql.Value) (string, bool) {
			return "", false
		},
	}
	predicate := NewPredicate(NewVariable("device_name"), Like, NewConstantValue(thingsql.NewString("%middle%")))
	plan := Plan(source, nil, predicate, nil, 0)

	if len(plan.RemoteParams) != 0 {
		t.Errorf("rejected rewrite must keep the predicate local, got %v", plan.RemoteParams)
	}
}
