package main

import "github.com/spf13/cobra"

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, engine, err := openIndex(cmd)
		if err != nil {
			return err
		}
		stats := engine.Stats()
		if jsonOutput {
			return printJSON(cmd, stats)
		}
		cmd.Printf("Index:     %s\n", cfg.Indexer.IndexPath)
		cmd.Printf("Documents: %d\n", stats.Documents)
		cmd.Printf("Terms:     %d\n", stats.Terms)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
