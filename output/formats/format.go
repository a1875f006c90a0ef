package formats

import (
	"github.com/thingsql/thingsql/execution"
)

// Formatter renders a stream of records to some sink.
type Formatter interface {
	SetSchema(columns []string)
	Write(record *execution.Record) error
	Close() error
}
