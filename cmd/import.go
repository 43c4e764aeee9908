package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2pgrouting-go/internal/classify"
	"github.com/wegman-software/osm2pgrouting-go/internal/graph"
	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
	"github.com/wegman-software/osm2pgrouting-go/internal/metrics"
	"github.com/wegman-software/osm2pgrouting-go/internal/nodecache"
	"github.com/wegman-software/osm2pgrouting-go/internal/pgstore"
	"github.com/wegman-software/osm2pgrouting-go/internal/stream"
)

var (
	styleFile     string
	nodeCacheMode string
	nodeCacheFile string
	maxMeters     float64
)

var importCmd = &cobra.Command{
	Use:   "import <input.osm.pbf>",
	Short: "Build the routing graph and load it into PostgreSQL",
	Long: `Run the complete graph build pipeline against PostgreSQL/PostGIS:

  1. Pass 1: Stream ways, classify roads, index node usage and endpoints
  2. Pass 2: Stream nodes and ways again, resolve coordinates, split ways
     into edges at junctions, and COPY edges/vertices into staging tables

The final r_ways and r_nodes tables are swapped in atomically, so an
interrupted run never leaves a half-built graph behind.`,
	Args: cobra.ExactArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&styleFile, "style", "S", "", "YAML tag classification table (default: built-in highway table)")
	importCmd.Flags().StringVar(&nodeCacheMode, "node-cache", cfg.NodeCache, "Node cache backing: mem or disk")
	importCmd.Flags().StringVar(&nodeCacheFile, "node-cache-file", cfg.NodeCacheFile, "Backing file for the disk node cache")
	importCmd.Flags().Float64Var(&maxMeters, "max-meters", 0, "Split edges longer than this many meters (0 = disabled)")
	importCmd.Flags().BoolVar(&createIndexes, "create-indexes", true, "Create spatial indexes after loading")
	importCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per COPY batch")
}

func runImport(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	cfg.StyleFile = styleFile
	cfg.NodeCache = nodeCacheMode
	cfg.NodeCacheFile = nodeCacheFile
	cfg.MaxMeters = maxMeters
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	log.Info("Starting osm2pgrouting-go import",
		zap.String("input", cfg.InputFile),
		zap.String("output", fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)),
		zap.String("node_cache", cfg.NodeCache),
		zap.Float64("max_meters", cfg.MaxMeters),
		zap.Int("workers", cfg.Workers),
	)

	start := time.Now()
	ctx := context.Background()

	store, err := pgstore.NewStore(ctx, cfg)
	if err != nil {
		exitWithError("failed to connect to database", err)
	}
	defer store.Close()

	stats, err := buildGraph(ctx, store)
	if err != nil {
		exitWithError("import failed", err)
	}

	if err := store.Finish(ctx, createIndexes); err != nil {
		exitWithError("failed to finalize tables", err)
	}

	elapsed := time.Since(start)
	log.Info("Import complete",
		zap.Duration("total_time", elapsed.Round(time.Second)),
		zap.Int64("ways_kept", stats.WaysKept.Load()),
		zap.Int64("ways_dropped", stats.WaysDropped.Load()),
		zap.Int64("edges", stats.Edges.Load()),
		zap.Int64("vertices", stats.Vertices.Load()),
		zap.Int64("synthetic_nodes", stats.SyntheticNodes.Load()),
		zap.Int64("edges_written", store.EdgesWritten.Load()),
		zap.Int64("nodes_written", store.NodesWritten.Load()),
		zap.Float64("throughput_edges_s", float64(stats.Edges.Load())/elapsed.Seconds()),
	)
}

// buildGraph wires the classifier, node cache and two-pass builder, and
// drives them against the configured PBF input. Shared by import and
// extract, which differ only in the emitter.
func buildGraph(ctx context.Context, emit graph.Emitter) (*graph.Stats, error) {
	log := logger.Get()

	table := classify.DefaultTable()
	if cfg.StyleFile != "" {
		var err error
		table, err = classify.LoadTable(cfg.StyleFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load style file: %w", err)
		}
		log.Info("Loaded tag classification table", zap.String("style", cfg.StyleFile))
	}

	cache, err := nodecache.New(cfg.NodeCache, cfg.NodeCacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create node cache: %w", err)
	}
	defer cache.Close()

	// Start background metrics collection
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	go metrics.NewCollector(cfg.MetricsInterval, log).Start(metricsCtx)

	// Relations never contribute to the graph; both passes need ways,
	// pass 2 additionally reads nodes.
	open := stream.PBFOpener(cfg.InputFile, stream.Options{
		SkipRelations: true,
		Workers:       cfg.Workers,
	})

	builder := graph.NewBuilder(classify.New(table), cache, emit, cfg.MaxMeters)
	return builder.Run(ctx, open)
}
