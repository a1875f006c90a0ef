package formats

import (
	"encoding/csv"
	"io"

	"github.com/thingsql/thingsql/execution"
)

type CSVFormatter struct {
	writer  *csv.Writer
	columns []string
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{
		writer: csv.NewWriter(w),
	}
}

func (t *CSVFormatter) SetSchema(columns []string) {
	t.columns = columns
	t.writer.Write(columns)
}

func (t *CSVFormatter) Write(record *execution.Record) error {
	row := make([]string, len(t.columns))
	for i, column := range t.columns {
		value := record.Value(column)
		if value.IsNull() {
			row[i] = ""
			continue
		}
		row[i] = value.String()
	}
	return t.writer.Write(row)
}

func (t *CSVFormatter) Close() error {
	t.writer.Flush()
	return t.writer.Error()
}
