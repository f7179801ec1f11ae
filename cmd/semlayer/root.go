// Package main is the semlayer CLI: plan/dry-run/dry-plan/validate/lineage
// commands over pkg/planner, plus a repl for iterating against one loaded
// manifest. Structured the way the teacher's internal/cli/root.go wires
// cobra - a PersistentPreRunE that loads configuration once and stashes it,
// the planner, and a renderer on the command context for subcommands to
// pull out by typed key - but collapsed into a single binary package since
// nothing else in this module needs to import the CLI layer.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semlayer/internal/appconfig"
	"github.com/leapstack-labs/semlayer/pkg/planner"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var cfgFile string

type configKey struct{}
type plannerKey struct{}
type rendererKey struct{}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "semlayer",
		Short: "semlayer - semantic SQL planner",
		Long: `semlayer rewrites SQL written against a logical manifest of models,
metrics and relationships into executable SQL for a physical warehouse.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := appconfig.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			p, err := planner.New(planner.Config{
				ManifestCacheSize: cfg.ManifestCacheSize,
				IndexCacheSize:    cfg.IndexCacheSize,
			})
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, plannerKey{}, p)
			ctx = context.WithValue(ctx, rendererKey{}, newRenderer(cmd.OutOrStdout(), cfg.OutputFormat))
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if used := appconfig.ConfigFileUsed(); used != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", used)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./semlayer.yaml)")
	root.PersistentFlags().String("manifest", "", "path to the manifest JSON document")
	root.PersistentFlags().String("dialect", "", "target dialect (duckdb|postgres)")
	root.PersistentFlags().String("catalog", "", "default catalog for unqualified names")
	root.PersistentFlags().String("schema", "", "default schema for unqualified names")
	root.PersistentFlags().Bool("no-dynamic-fields", false, "disable dynamic-field resolution")
	root.PersistentFlags().StringP("output", "o", "", "output format (auto|text|json)")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	_ = root.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"duckdb", "postgres"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newVersionCommand())
	root.AddCommand(newPlanCommand())
	root.AddCommand(newDryRunCommand())
	root.AddCommand(newDryPlanCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newLineageCommand())
	root.AddCommand(newReplCommand())
	root.AddCommand(newCompletionCommand())

	return root
}

func execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func getConfig(ctx context.Context) *appconfig.Config {
	if c, ok := ctx.Value(configKey{}).(*appconfig.Config); ok {
		return c
	}
	return &appconfig.Config{Dialect: appconfig.DefaultDialect, OutputFormat: appconfig.DefaultOutput}
}

func getPlanner(ctx context.Context) *planner.Planner {
	if p, ok := ctx.Value(plannerKey{}).(*planner.Planner); ok {
		return p
	}
	p, _ := planner.New(planner.Config{})
	return p
}

func getRenderer(ctx context.Context) *renderer {
	if r, ok := ctx.Value(rendererKey{}).(*renderer); ok {
		return r
	}
	return newRenderer(os.Stdout, "")
}

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion scripts",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "semlayer v%s (%s, %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
