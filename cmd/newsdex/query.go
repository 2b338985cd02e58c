package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newsdex/newsdex/internal/searcher/executor"
)

var queryCmd = &cobra.Command{
	Use:   "query [query]",
	Short: "Run a boolean query against the index",
	Long: `Evaluate a boolean query and list every matching document with the
positions that matched.

Supported syntax:
  storm coast          both words (AND)
  storm OR flood       either word
  storm AND NOT coast  exclusion
  "heavy rain"         exact phrase
  #3(storm coast)      words within 3 positions
  (a OR b) AND c       grouping`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, engine, err := openIndex(cmd)
	if err != nil {
		return err
	}
	res, err := executor.New(engine, cfg.Search).Search(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}
	if res.TotalHits == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Printf("Found %d documents:\n", res.TotalHits)
	for _, m := range res.Matches {
		if len(m.Positions) == 0 {
			cmd.Printf("  %s\n", m.DocID)
			continue
		}
		positions := make([]string, len(m.Positions))
		for i, p := range m.Positions {
			positions[i] = strconv.Itoa(p)
		}
		cmd.Printf("  %s  [%s]\n", m.DocID, strings.Join(positions, " "))
	}
	return nil
}
