package execution

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/thingsql/thingsql"
)

// Record is a single typed row in catalog column order.
type Record struct {
	FieldNames []string
	Data       []thingsql.Value
}

func NewRecord(fieldNames []string, data []thingsql.Value) *Record {
	return &Record{
		FieldNames: fieldNames,
		Data:       data,
	}
}

// Value returns the value of the named field, or a null value if the record
// doesn't carry that field.
func (r *Record) Value(fieldName string) thingsql.Value {
	for i := range r.FieldNames {
		if r.FieldNames[i] == fieldName {
			return r.Data[i]
		}
	}
	return thingsql.NewNull()
}

// RecordStream is a pull-based forward-only cursor over records.
type RecordStream interface {
	Next(ctx context.Context) (*Record, error)
	io.Closer
}

var ErrEndOfStream = errors.New("end of stream")
