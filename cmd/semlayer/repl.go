package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semlayer/internal/manifest"
)

func newReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively plan statements against one loaded manifest",
		Long: `repl loads the manifest once and evaluates SQL statements (terminated by
;) against it via plan, printing the rewritten SQL for each. Dot-commands
show help or exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			am, err := loadManifest(cmd)
			if err != nil {
				return err
			}
			return runRepl(cmd, am)
		},
	}
}

func runRepl(cmd *cobra.Command, am *manifest.AnalyzedManifest) error {
	historyFile := filepath.Join(os.TempDir(), "semlayer_repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "semlayer> ",
		HistoryFile:     historyFile,
		AutoComplete:    replCompleter(am),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "semlayer plan REPL. Type .help for commands, .quit to exit.")

	sess := sessionFromFlags(cmd)
	dialect, err := dialectFromFlags(cmd)
	if err != nil {
		return err
	}
	p := getPlanner(cmd.Context())

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt("semlayer> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if line == ".quit" || line == ".exit" {
				return nil
			}
			if line == ".help" {
				printReplHelp(cmd.OutOrStdout())
				continue
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "unknown command: %s (type .help)\n", line)
			continue
		}

		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt("     ...> ")
			continue
		}
		rl.SetPrompt("semlayer> ")

		sql := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()

		out, err := p.Plan(cmd.Context(), am, sql, sess, dialect)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
}

func printReplHelp(w io.Writer) {
	fmt.Fprint(w, `
Commands:
  .help           Show this help message
  .quit / .exit   Exit the REPL

Statements must end with a semicolon (;) and are run through plan.
`)
}

// replCompleter offers manifest model/metric/cumulative-metric/view names
// for tab completion.
func replCompleter(am *manifest.AnalyzedManifest) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	m := am.Manifest()
	for _, model := range m.Models {
		items = append(items, readline.PcItem(model.Name))
	}
	for _, metric := range m.Metrics {
		items = append(items, readline.PcItem(metric.Name))
	}
	for _, cm := range m.CumulativeMetrics {
		items = append(items, readline.PcItem(cm.Name))
	}
	for _, view := range m.Views {
		items = append(items, readline.PcItem(view.Name))
	}
	items = append(items, readline.PcItem(".help"), readline.PcItem(".quit"), readline.PcItem(".exit"))
	return readline.NewPrefixCompleter(items...)
}
