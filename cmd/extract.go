package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
	"github.com/wegman-software/osm2pgrouting-go/internal/parquet"
)

var extractCmd = &cobra.Command{
	Use:   "extract <input.osm.pbf>",
	Short: "Build the routing graph and write it to Parquet files",
	Long: `Run the two-pass graph build and write the result to Parquet files
instead of PostgreSQL:

  - ways.parquet  (id, id_osm, type, source, target, endpoints, name, length, geom)
  - nodes.parquet (id, lon, lat, geom)

The files can be loaded into PostgreSQL later with the load command, or
consumed directly by analytical tooling.`,
	Args: cobra.ExactArgs(1),
	Run:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&styleFile, "style", "S", "", "YAML tag classification table (default: built-in highway table)")
	extractCmd.Flags().StringVar(&nodeCacheMode, "node-cache", cfg.NodeCache, "Node cache backing: mem or disk")
	extractCmd.Flags().StringVar(&nodeCacheFile, "node-cache-file", cfg.NodeCacheFile, "Backing file for the disk node cache")
	extractCmd.Flags().Float64Var(&maxMeters, "max-meters", 0, "Split edges longer than this many meters (0 = disabled)")
	extractCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")
}

func runExtract(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	cfg.StyleFile = styleFile
	cfg.NodeCache = nodeCacheMode
	cfg.NodeCacheFile = nodeCacheFile
	cfg.MaxMeters = maxMeters
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		exitWithError("failed to create output directory", err)
	}

	log.Info("Starting graph extraction",
		zap.String("input", cfg.InputFile),
		zap.String("output", cfg.OutputDir),
		zap.Int("workers", cfg.Workers),
	)

	start := time.Now()

	writer, err := parquet.NewGraphWriter(
		filepath.Join(cfg.OutputDir, parquet.WaysFile),
		filepath.Join(cfg.OutputDir, parquet.NodesFile),
		cfg.BatchSize,
	)
	if err != nil {
		exitWithError("failed to create parquet writer", err)
	}

	stats, err := buildGraph(context.Background(), writer)
	if err != nil {
		writer.Close()
		exitWithError("extraction failed", err)
	}
	if err := writer.Close(); err != nil {
		exitWithError("failed to finalize parquet files", err)
	}

	elapsed := time.Since(start)
	log.Info("Extraction complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int64("edges", stats.Edges.Load()),
		zap.Int64("vertices", stats.Vertices.Load()),
		zap.Int64("synthetic_nodes", stats.SyntheticNodes.Load()),
	)
}
