package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semlayer/internal/validate"
)

func newValidateCommand() *cobra.Command {
	var rule, model, column, relationship, metric string
	cmd := &cobra.Command{
		Use:   "validate --rule <rule-id>",
		Short: "Run a built-in validation rule against the manifest",
		Long: `validate runs one named rule from the built-in rule registry against the
manifest and reports PASS, FAIL, or ERROR.`,
		Example: `  semlayer validate --manifest m.json --rule column_is_valid --model Orders --column orderkey
  semlayer validate --manifest m.json --rule relationship_is_valid --relationship OrdersCustomer`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rule == "" {
				return fmt.Errorf("--rule is required")
			}
			am, err := loadManifest(cmd)
			if err != nil {
				return err
			}

			params := map[string]any{}
			if model != "" {
				params["model"] = model
			}
			if column != "" {
				params["column"] = column
			}
			if relationship != "" {
				params["relationship"] = relationship
			}
			if metric != "" {
				params["metric"] = metric
			}

			results := getPlanner(cmd.Context()).Validate(am, rule, params)

			r := getRenderer(cmd.Context())
			if r.isJSON() {
				return r.JSON(results)
			}
			rows := make([]table.Row, len(results))
			for i, res := range results {
				rows[i] = table.Row{res.Name, statusStyle(r, res.Status), res.Message}
			}
			r.Table(table.Row{"Rule", "Status", "Message"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&rule, "rule", "", "rule ID to run")
	cmd.Flags().StringVar(&model, "model", "", "model name (column_is_valid, model_exists)")
	cmd.Flags().StringVar(&column, "column", "", "column name (column_is_valid)")
	cmd.Flags().StringVar(&relationship, "relationship", "", "relationship name (relationship_is_valid)")
	cmd.Flags().StringVar(&metric, "metric", "", "metric name (metric_is_valid)")

	cmd.AddCommand(newValidateRulesCommand())
	return cmd
}

// newValidateRulesCommand lists the built-in rule registry, the way the
// teacher's `rules` command lists its lint registry.
func newValidateRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List built-in validation rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules := validate.DefaultRegistry.List()

			r := getRenderer(cmd.Context())
			if r.isJSON() {
				type ruleInfo struct {
					ID          string   `json:"id"`
					Name        string   `json:"name"`
					Group       string   `json:"group"`
					Description string   `json:"description"`
					Params      []string `json:"params"`
				}
				out := make([]ruleInfo, len(rules))
				for i, rl := range rules {
					out[i] = ruleInfo{ID: rl.ID(), Name: rl.Name(), Group: rl.Group(), Description: rl.Description(), Params: rl.ParamKeys()}
				}
				return r.JSON(out)
			}

			rows := make([]table.Row, len(rules))
			for i, rl := range rules {
				rows[i] = table.Row{rl.ID(), rl.Group(), rl.Description()}
			}
			r.Table(table.Row{"ID", "Group", "Description"}, rows)
			return nil
		},
	}
}

func statusStyle(r *renderer, status validate.Status) string {
	switch status {
	case validate.StatusPass:
		return r.style.success.Render(string(status))
	case validate.StatusFail, validate.StatusError:
		return r.style.errorS.Render(string(status))
	default:
		return string(status)
	}
}
