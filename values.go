package thingsql

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ZeroValue = Value{}

// Value is a single typed cell of a record. Only the field matching the
// TypeID is meaningful.
type Value struct {
	Type      Type
	Int       int
	Str       string
	Time      time.Time
	Json      []byte
	StringSet []string
}

func NewNull() Value {
	return Value{
		Type: Type{TypeID: TypeIDNull},
	}
}

func NewInt(value int) Value {
	return Value{
		Type: Type{TypeID: TypeIDInt},
		Int:  value,
	}
}

func NewString(value string) Value {
	return Value{
		Type: Type{TypeID: TypeIDString},
		Str:  value,
	}
}

func NewTime(value time.Time) Value {
	return Value{
		Type: Type{TypeID: TypeIDTime},
		Time: value,
	}
}

func NewJson(value []byte) Value {
	return Value{
		Type: Type{TypeID: TypeIDJson},
		Json: value,
	}
}

func NewStringSet(values []string) Value {
	return Value{
		Type:      Type{TypeID: TypeIDStringSet},
		StringSet: values,
	}
}

func (value Value) IsNull() bool {
	return value.Type.TypeID == TypeIDNull
}

// Compare defines a total order over values. Values of different types are
// ordered by their TypeID, so mixed-type comparisons are stable rather than
// erroneous.
func (value Value) Compare(other Value) int {
	if value.Type.TypeID != other.Type.TypeID {
		if value.Type.TypeID < other.Type.TypeID {
			return -1
		}
		return 1
	}

	switch value.Type.TypeID {
	case TypeIDNull:
		return 0
	case TypeIDInt:
		if value.Int < other.Int {
			return -1
		} else if value.Int > other.Int {
			return 1
		}
		return 0
	case TypeIDString:
		return strings.Compare(value.Str, other.Str)
	case TypeIDTime:
		if value.Time.Before(other.Time) {
			return -1
		} else if value.Time.After(other.Time) {
			return 1
		}
		return 0
	case TypeIDJson:
		return bytes.Compare(value.Json, other.Json)
	case TypeIDStringSet:
		left := sortedCopy(value.StringSet)
		right := sortedCopy(other.StringSet)
		for i := 0; i < len(left) && i < len(right); i++ {
			if c := strings.Compare(left[i], right[i]); c != 0 {
				return c
			}
		}
		if len(left) < len(right) {
			return -1
		} else if len(left) > len(right) {
			return 1
		}
		return 0
	}
	panic("impossible type in value comparison")
}

func (value Value) Equal(other Value) bool {
	return value.Compare(other) == 0
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func (value Value) String() string {
	switch value.Type.TypeID {
	case TypeIDNull:
		return "<null>"
	case TypeIDInt:
		return fmt.Sprint(value.Int)
	case TypeIDString:
		return value.Str
	case TypeIDTime:
		return value.Time.Format(time.RFC3339Nano)
	case TypeIDJson:
		return string(value.Json)
	case TypeIDStringSet:
		return fmt.Sprintf("{%s}", strings.Join(value.StringSet, ", "))
	}
	return "<invalid>"
}
