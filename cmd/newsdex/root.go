package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsdex/newsdex/internal/indexer"
	"github.com/newsdex/newsdex/pkg/config"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
	"github.com/newsdex/newsdex/pkg/logger"
)

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "newsdex",
	Short: "Operate a newsdex news index",
	Long: `newsdex builds and queries the positional news index shared by the
indexer and search services.

Every command reads the same YAML config as the services, so the index
file, crawler roots and fingerprint store line up with a running deployment.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/development.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// loadConfig reads the config and sends log output to the command's stderr
// so stdout only carries results.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// openIndex loads the saved index read-only.
func openIndex(cmd *cobra.Command) (*config.Config, *indexer.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	engine, _, err := indexer.Open(cmd.Context(), cfg, false)
	if err != nil {
		return nil, nil, err
	}
	if err := engine.Load(); err != nil {
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			return nil, nil, fmt.Errorf("%w: run 'newsdex build' first", err)
		}
		return nil, nil, err
	}
	return cfg, engine, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	cmd.Println(string(out))
	return nil
}
