package formats

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/thingsql/thingsql/execution"
)

type TableFormatter struct {
	table   *tablewriter.Table
	columns []string
}

func NewTableFormatter(w io.Writer) *TableFormatter {
	table := tablewriter.NewWriter(w)
	table.SetColWidth(24)
	table.SetRowLine(false)

	return &TableFormatter{
		table: table,
	}
}

func (t *TableFormatter) SetSchema(columns []string) {
	t.columns = columns
	t.table.SetHeader(columns)
	t.table.SetAutoFormatHeaders(false)
}

func (t *TableFormatter) Write(record *execution.Record) error {
	row := make([]string, len(t.columns))
	for i, column := range t.columns {
		row[i] = record.Value(column).String()
	}
	t.table.Append(row)
	return nil
}

func (t *TableFormatter) Close() error {
	t.table.Render()
	return nil
}
