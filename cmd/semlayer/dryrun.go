package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newDryRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dry-run <sql>",
		Short: "Show a statement's output column shape without producing SQL",
		Long: `dry-run type-checks sql against the manifest and reports the name and,
where derivable, declared type of each column its SELECT list would
produce.`,
		Example: `  semlayer dry-run --manifest m.json "SELECT * FROM Customer"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			am, err := loadManifest(cmd)
			if err != nil {
				return err
			}

			cols, err := getPlanner(cmd.Context()).DryRun(cmd.Context(), am, args[0], sessionFromFlags(cmd))
			if err != nil {
				return fmt.Errorf("dry-run: %w", err)
			}

			r := getRenderer(cmd.Context())
			if r.isJSON() {
				return r.JSON(cols)
			}
			rows := make([]table.Row, len(cols))
			for i, c := range cols {
				typ := c.Type
				if typ == "" {
					typ = r.style.muted.Render("unknown")
				}
				rows[i] = table.Row{c.Name, typ}
			}
			r.Table(table.Row{"Column", "Type"}, rows)
			return nil
		},
	}
	return cmd
}
