package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsdex/newsdex/internal/indexer"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Crawl every article and rebuild the index file",
	Long: `Crawl all configured roots, build a fresh index from every article and
write it to the configured index path. Fingerprints are recorded in the
configured store so later crawls only report changes.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, closeStore, err := indexer.Open(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := engine.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	stats := engine.Stats()
	if jsonOutput {
		return printJSON(cmd, stats)
	}
	cmd.Printf("Indexed %d documents, %d terms into %s\n", stats.Documents, stats.Terms, cfg.Indexer.IndexPath)
	return nil
}
