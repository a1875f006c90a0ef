package thingsql

// TypeID discriminates the semantic types a registry column can carry.
type TypeID int

const (
	TypeIDNull TypeID = iota
	TypeIDInt
	TypeIDString
	TypeIDTime
	TypeIDJson
	TypeIDStringSet
)

type Type struct {
	TypeID TypeID
}

func (t Type) String() string {
	switch t.TypeID {
	case TypeIDNull:
		return "NULL"
	case TypeIDInt:
		return "Int"
	case TypeIDString:
		return "String"
	case TypeIDTime:
		return "Time"
	case TypeIDJson:
		return "Json"
	case TypeIDStringSet:
		return "StringSet"
	}
	return "Invalid"
}

// Ordered tells whether values of this type have a meaningful total order,
// which gates range comparisons.
func (t Type) Ordered() bool {
	switch t.TypeID {
	case TypeIDInt, TypeIDString, TypeIDTime:
		return true
	case TypeIDNull, TypeIDJson, TypeIDStringSet:
		return false
	}
	return false
}

var (
	Null      = Type{TypeID: TypeIDNull}
	Int       = Type{TypeID: TypeIDInt}
	String    = Type{TypeID: TypeIDString}
	Time      = Type{TypeID: TypeIDTime}
	Json      = Type{TypeID: TypeIDJson}
	StringSet = Type{TypeID: TypeIDStringSet}
)
