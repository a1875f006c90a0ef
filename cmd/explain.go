package cmd

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/thingsql/thingsql/catalog"
	"github.com/thingsql/thingsql/graph"
	"github.com/thingsql/thingsql/physical"
)

var (
	explainWhere   string
	explainOrderBy string
	explainLimit   int
	explainDot     bool
)

var explainCmd = &cobra.Command{
	Use:   "explain <table>",
	Short: "Show how a filter splits into remote request parameters and a local residual",
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptor, err := catalog.DescribeTable(args[0])
		if err != nil {
			return err
		}

		var predicate physical.Formula
		if explainWhere != "" {
			predicate, err = parseWhere(explainWhere)
			if err != nil {
				return errors.Wrap(err, "couldn't parse filter")
			}
		}

		var sortFields []physical.SortField
		if explainOrderBy != "" {
			sortFields, err = parseOrderBy(explainOrderBy)
			if err != nil {
				return err
			}
		}

		plan := physical.Plan(descriptor, descriptor.ColumnNames(), predicate, sortFields, explainLimit)

		if explainDot {
			viz, err := graph.Show(plan.Visualize())
			if err != nil {
				return errors.Wrap(err, "couldn't render plan graph")
			}
			fmt.Println(viz.String())
			return nil
		}

		fmt.Printf("table: %s\n", descriptor.Table)
		if len(plan.RemoteParams) == 0 {
			fmt.Println("remote params: none")
		} else {
			fmt.Println("remote params:")
			for _, parameter := range sortedKeys(plan.RemoteParams) {
				fmt.Printf("  %s = %s\n", parameter, plan.RemoteParams[parameter])
			}
		}
		fmt.Printf("residual: %s\n", formulaString(plan.Residual))
		if plan.RemoteLimit > 0 {
			fmt.Printf("remote limit: %d\n", plan.RemoteLimit)
		}
		if plan.RemoteSort != nil {
			direction := "asc"
			if plan.RemoteSort.Descending {
				direction = "desc"
			}
			fmt.Printf("remote sort: %s %s\n", plan.RemoteSort.Column, direction)
		}
		if plan.ExternalSortRequired {
			fmt.Println("external sort required")
		}
		fmt.Printf("estimated selectivity: %.2f\n", plan.Selectivity)
		return nil
	},
	Args: cobra.ExactArgs(1),
}

func sortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func formulaString(formula physical.Formula) string {
	switch f := formula.(type) {
	case *physical.Constant:
		return fmt.Sprint(f.Value)
	case *physical.And:
		return fmt.Sprintf("(%s AND %s)", formulaString(f.Left), formulaString(f.Right))
	case *physical.Or:
		return fmt.Sprintf("(%s OR %s)", formulaString(f.Left), formulaString(f.Right))
	case *physical.Not:
		return fmt.Sprintf("NOT %s", formulaString(f.Child))
	case *physical.Predicate:
		return fmt.Sprintf("%s %s %s", expressionString(f.Left), f.Relation, expressionString(f.Right))
	default:
		return fmt.Sprintf("%v", formula)
	}
}

func expressionString(expression physical.Expression) string {
	switch e := expression.(type) {
	case *physical.Variable:
		return e.Name
	case *physical.ConstantValue:
		return e.Value.String()
	default:
		return fmt.Sprintf("%v", expression)
	}
}

func init() {
	explainCmd.Flags().StringVar(&explainWhere, "where", "", "filter to plan")
	explainCmd.Flags().StringVar(&explainOrderBy, "order-by", "", "ordering to plan")
	explainCmd.Flags().IntVar(&explainLimit, "limit", 0, "row limit to plan")
	explainCmd.Flags().BoolVar(&explainDot, "dot", false, "print the plan as a graphviz document")
	rootCmd.AddCommand(explainCmd)
}
