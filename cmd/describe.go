package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/thingsql/thingsql/catalog"
)

var describeCmd = &cobra.Command{
	Use:   "describe [table]",
	Short: "Show the schema of one table, or list all tables",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"table", "resource", "columns"})
			table.SetAutoFormatHeaders(false)
			for _, descriptor := range catalog.Descriptors() {
				table.Append([]string{
					descriptor.Table,
					descriptor.Kind,
					fmt.Sprintf("%d", len(descriptor.Columns)),
				})
			}
			table.Render()
			return nil
		}

		descriptor, err := catalog.DescribeTable(args[0])
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"column", "type", "nullable", "native filters"})
		table.SetAutoFormatHeaders(false)
		for _, column := range descriptor.Columns {
			nullable := "yes"
			if !column.Nullable {
				nullable = "no"
			}
			var filters []string
			for _, relation := range descriptor.NativeFilterRelations(column.Name) {
				filters = append(filters, string(relation))
			}
			table.Append([]string{
				column.Name,
				column.Type.String(),
				nullable,
				strings.Join(filters, ", "),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
