package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <sql>",
		Short: "Rewrite manifest-aware SQL into executable SQL",
		Long: `plan parses a SQL statement written against the manifest's models,
metrics and views, resolves it into a chain of CTEs against the manifest's
physical sources, and prints the resulting SQL.`,
		Example: `  semlayer plan --manifest m.json --catalog tpch --schema public "SELECT orderkey, customer_name FROM Orders"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			am, err := loadManifest(cmd)
			if err != nil {
				return err
			}
			dialect, err := dialectFromFlags(cmd)
			if err != nil {
				return err
			}

			sql, err := getPlanner(cmd.Context()).Plan(cmd.Context(), am, args[0], sessionFromFlags(cmd), dialect)
			if err != nil {
				return fmt.Errorf("plan: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}
	return cmd
}

func newDryPlanCommand() *cobra.Command {
	var modelingOnly bool
	cmd := &cobra.Command{
		Use:   "dry-plan <sql>",
		Short: "Show the rewritten SQL without executing it",
		Long: `dry-plan behaves like plan, but --modeling-only stops before the dialect
adapter runs, leaving the statement in its dialect-neutral form.`,
		Example: `  semlayer dry-plan --manifest m.json --modeling-only "SELECT orderdate, revenue FROM DailyRevenue"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			am, err := loadManifest(cmd)
			if err != nil {
				return err
			}

			sql, err := getPlanner(cmd.Context()).DryPlan(cmd.Context(), am, args[0], sessionFromFlags(cmd), modelingOnly)
			if err != nil {
				return fmt.Errorf("dry-plan: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}
	cmd.Flags().BoolVar(&modelingOnly, "modeling-only", false, "skip the dialect adapter")
	return cmd
}
