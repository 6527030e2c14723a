package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/pipeline"
	"github.com/sells-group/market-intel/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "market-intel",
	Short: "Competitor and keyword market intelligence pipeline",
	Long:  "Discovers and classifies competitors for a target business, gates the set through human curation, then mines a scored keyword universe with winnability, beachhead, and market-size analysis.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens and migrates the configured store.
func initStore(cmd *cobra.Command) (store.Store, error) {
	ctx := cmd.Context()
	st, err := pipeline.OpenStore(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
