package cmd

import (
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/thingsql/thingsql/catalog"
	"github.com/thingsql/thingsql/execution"
	"github.com/thingsql/thingsql/output/formats"
	"github.com/thingsql/thingsql/physical"
	"github.com/thingsql/thingsql/scan"
)

var (
	scanColumns string
	scanWhere   string
	scanOrderBy string
	scanLimit   int
	scanOutput  string
)

var scanCmd = &cobra.Command{
	Use:   "scan <table>",
	Short: "Scan a registry table and print the matching rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptor, err := catalog.DescribeTable(args[0])
		if err != nil {
			return err
		}

		columns := descriptor.ColumnNames()
		if scanColumns != "" {
			columns = splitList(scanColumns)
			for _, column := range columns {
				if _, ok := descriptor.Column(column); !ok {
					return errors.Errorf("no column %s in table %s", column, descriptor.Table)
				}
			}
		}

		var predicate physical.Formula
		if scanWhere != "" {
			predicate, err = parseWhere(scanWhere)
			if err != nil {
				return errors.Wrap(err, "couldn't parse filter")
			}
		}

		var sortFields []physical.SortField
		if scanOrderBy != "" {
			sortFields, err = parseOrderBy(scanOrderBy)
			if err != nil {
				return err
			}
		}

		formatter, err := newFormatter(scanOutput)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		s := scan.NewScan(client)
		if err := s.Open(descriptor, columns, predicate, sortFields, scanLimit); err != nil {
			return errors.Wrap(err, "couldn't open scan")
		}
		defer s.Close()

		if s.Plan().ExternalSortRequired {
			log.Printf("scan %s: ordering not satisfiable remotely, output is unordered", s.ID())
		}

		formatter.SetSchema(columns)
		ctx := cmd.Context()
		for {
			record, err := s.Next(ctx)
			if err == execution.ErrEndOfStream {
				break
			}
			if err != nil {
				return errors.Wrap(err, "couldn't get next record")
			}
			if err := formatter.Write(record); err != nil {
				return errors.Wrap(err, "couldn't write record")
			}
		}
		return formatter.Close()
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanColumns, "columns", "", "comma-separated columns to fetch (default all)")
	scanCmd.Flags().StringVar(&scanWhere, "where", "", "filter, e.g. \"thing_type_name = 'sensor' AND thing_name LIKE 'dev-%'\"")
	scanCmd.Flags().StringVar(&scanOrderBy, "order-by", "", "comma-separated ordering columns, each optionally suffixed with desc")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "maximum rows to return (0 means unlimited)")
	scanCmd.Flags().StringVar(&scanOutput, "output", "table", "output format: table, json or csv")
	rootCmd.AddCommand(scanCmd)
}

func newFormatter(name string) (formats.Formatter, error) {
	switch name {
	case "table":
		return formats.NewTableFormatter(os.Stdout), nil
	case "json":
		return formats.NewJSONFormatter(os.Stdout), nil
	case "csv":
		return formats.NewCSVFormatter(os.Stdout), nil
	default:
		return nil, errors.Errorf("invalid output format: %s", name)
	}
}

func parseOrderBy(input string) ([]physical.SortField, error) {
	var fields []physical.SortField
	for _, part := range splitList(input) {
		words := strings.Fields(part)
		field := physical.SortField{Column: words[0]}
		switch {
		case len(words) == 1:
		case len(words) == 2 && strings.EqualFold(words[1], "desc"):
			field.Descending = true
		case len(words) == 2 && strings.EqualFold(words[1], "asc"):
		default:
			return nil, errors.Errorf("invalid ordering field %q", part)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
