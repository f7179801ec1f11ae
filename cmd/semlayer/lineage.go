package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semlayer/internal/semantic/lineage"
)

func newLineageCommand() *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "lineage --column <object.column>...",
		Short: "Show the base columns a calculated field transitively reads",
		Long: `lineage resolves one or more qualified calculated-field names to the
minimal set of source columns, per object, that a plan for them would need
- a visualization aid over the same closure plan uses internally.`,
		Example: `  semlayer lineage --manifest m.json --column Orders.customer_name`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(columns) == 0 {
				return fmt.Errorf("at least one --column is required")
			}
			am, err := loadManifest(cmd)
			if err != nil {
				return err
			}

			result, err := lineage.New(am).RequiredFields(columns)
			if err != nil {
				return fmt.Errorf("lineage: %w", err)
			}

			r := getRenderer(cmd.Context())
			if r.isJSON() {
				type objectLineage struct {
					Object  string   `json:"object"`
					Columns []string `json:"source_columns"`
				}
				out := make([]objectLineage, len(result.Objects))
				for i, obj := range result.Objects {
					out[i] = objectLineage{Object: obj, Columns: result.Columns(obj)}
				}
				return r.JSON(out)
			}

			var rows []table.Row
			for _, obj := range result.Objects {
				for _, col := range result.Columns(obj) {
					rows = append(rows, table.Row{obj, col})
				}
			}
			r.Table(table.Row{"Object", "Source Column"}, rows)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "column", nil, "qualified object.column name (repeatable)")
	return cmd
}
