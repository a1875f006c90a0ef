package execution

import (
	"testing"
	"time"

	"github.com/thingsql/thingsql"
)

func testRecord() *Record {
	return NewRecord(
		[]string{"name", "kind", "version", "created", "tags"},
		[]thingsql.Value{
			thingsql.NewString("dev-001"),
			thingsql.NewNull(),
			thingsql.NewInt(7),
			thingsql.NewTime(time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)),
			thingsql.NewStringSet([]string{"floor", "room"}),
		},
	)
}

func TestRelations(t *testing.T) {
	record := testRecord()

	tests := []struct {
		name     string
		relation Relation
		left     Expression
		right    Expression
		want     bool
	}{
		{"equal", NewEqual(), NewVariable("name"), NewConstant(thingsql.NewString("dev-001")), true},
		{"equal mismatch", NewEqual(), NewVariable("name"), NewConstant(thingsql.NewString("dev-002")), false},
		{"not equal", NewNotEqual(), NewVariable("name"), NewConstant(thingsql.NewString("dev-002")), true},
		{"more than", NewMoreThan(), NewVariable("version"), NewConstant(thingsql.NewInt(3)), true},
		{"less than", NewLessThan(), NewVariable("version"), NewConstant(thingsql.NewInt(3)), false},
		{"greater equal", NewGreaterEqual(), NewVariable("version"), NewConstant(thingsql.NewInt(7)), true},
		{"less equal", NewLessEqual(), NewVariable("version"), NewConstant(thingsql.NewInt(7)), true},
		{"time range", NewMoreThan(), NewVariable("created"), NewConstant(thingsql.NewTime(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))), true},
		{"like prefix", NewLike(), NewVariable("name"), NewConstant(thingsql.NewString("dev-%")), true},
		{"like single char", NewLike(), NewVariable("name"), NewConstant(thingsql.NewString("dev-00_")), true},
		{"like no match", NewLike(), NewVariable("name"), NewConstant(thingsql.NewString("sensor-%")), false},
		{"like escapes meta", NewLike(), NewVariable("name"), NewConstant(thingsql.NewString("dev.001")), false},
		{"in", NewIn(), NewVariable("name"), NewConstant(thingsql.NewStringSet([]string{"dev-001", "dev-002"})), true},
		{"not in", NewNotIn(), NewVariable("name"), NewConstant(thingsql.NewStringSet([]string{"dev-002"})), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.relation.Apply(record, tt.left, tt.right)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullOperandsNeverMatch(t *testing.T) {
	record := testRecord()

	relations := []Relation{
		NewEqual(), NewNotEqual(), NewMoreThan(), NewLessThan(),
		NewGreaterEqual(), NewLessEqual(), NewLike(), NewIn(),
	}
	for _, relation := range relations {
		got, err := relation.Apply(record, NewVariable("kind"), NewConstant(thingsql.NewString("sensor")))
		if err != nil {
			t.Fatal(err)
		}
		if got {
			t.Errorf("%T matched a null operand", relation)
		}
	}
}

func TestOrderedComparisonRejectsUnorderedTypes(t *testing.T) {
	record := testRecord()

	if _, err := NewMoreThan().Apply(record, NewVariable("tags"), NewConstant(thingsql.NewStringSet([]string{"a"}))); err == nil {
		t.Error("range comparison of string sets should fail")
	}
}

func TestFormulaEvaluation(t *testing.T) {
	record := testRecord()

	isDev := NewPredicate(NewVariable("name"), NewLike(), NewConstant(thingsql.NewString("dev-%")))
	highVersion := NewPredicate(NewVariable("version"), NewMoreThan(), NewConstant(thingsql.NewInt(10)))

	tests := []struct {
		name    string
		formula Formula
		want    bool
	}{
		{"constant true", NewConstantFormula(true), true},
		{"constant false", NewConstantFormula(false), false},
		{"predicate", isDev, true},
		{"and", NewAnd(isDev, highVersion), false},
		{"or", NewOr(isDev, highVersion), true},
		{"not", NewNot(highVersion), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.formula.Evaluate(record)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
