package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2pgrouting-go/internal/loader"
	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
)

var createIndexes bool

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load graph Parquet files into PostgreSQL",
	Long: `Bulk load ways.parquet and nodes.parquet (written by extract) into
PostgreSQL/PostGIS.

This stage:
  1. COPYs rows into unlogged staging tables
  2. Swaps r_ways and r_nodes in atomically from staging
  3. Optionally creates spatial indexes`,
	Run: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().BoolVar(&createIndexes, "create-indexes", true, "Create spatial indexes after loading")
	loadCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per COPY batch")
}

func runLoad(cmd *cobra.Command, args []string) {
	log := logger.Get()
	log.Info("Starting PostgreSQL load",
		zap.String("input_dir", cfg.OutputDir),
		zap.String("database", cfg.DBName),
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("user", cfg.DBUser),
		zap.String("schema", cfg.DBSchema),
	)

	start := time.Now()

	stats, err := loader.Run(context.Background(), cfg, createIndexes)
	if err != nil {
		exitWithError("load failed", err)
	}

	elapsed := time.Since(start)
	log.Info("Load complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int64("edges", stats.EdgesLoaded),
		zap.Int64("nodes", stats.NodesLoaded),
		zap.Float64("throughput_rows_s", float64(stats.EdgesLoaded+stats.NodesLoaded)/elapsed.Seconds()),
	)
}
