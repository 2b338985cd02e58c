package main

import (
	"github.com/spf13/cobra"

	"github.com/newsdex/newsdex/internal/searcher/executor"
)

var rankLimit int

var rankCmd = &cobra.Command{
	Use:   "rank [query]",
	Short: "Rank documents for a free-text query",
	Long:  `Score every document containing a query word by tf-idf and print the best ones.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRank,
}

func init() {
	rankCmd.Flags().IntVarP(&rankLimit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, engine, err := openIndex(cmd)
	if err != nil {
		return err
	}
	res, err := executor.New(engine, cfg.Search).Rank(cmd.Context(), args[0], rankLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}
	if len(res.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, doc := range res.Results {
		cmd.Printf("%2d. %-8s %.4f\n", i+1, doc.DocID, doc.Score)
	}
	return nil
}
