package cmd

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2pgrouting-go/internal/addresses"
	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
	"github.com/wegman-software/osm2pgrouting-go/internal/stream"
)

var addressesOutput string

var addressesCmd = &cobra.Command{
	Use:   "addresses <input.osm.pbf>",
	Short: "Extract house addresses to CSV",
	Long: `Extract addressed entities (addr:housenumber) from a PBF file into a
CSV suitable for geocoding alongside the routing graph.

Node addresses carry their own position; addressed buildings (ways) are
located through their first node, resolved in a second pass.`,
	Args: cobra.ExactArgs(1),
	Run:  runAddresses,
}

func init() {
	rootCmd.AddCommand(addressesCmd)

	addressesCmd.Flags().StringVar(&addressesOutput, "output", "addresses.csv", "Output CSV file")
}

func runAddresses(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	log.Info("Starting address extraction",
		zap.String("input", cfg.InputFile),
		zap.String("output", addressesOutput),
	)

	start := time.Now()

	// Both passes iterate the same source; ways are scanned first, then
	// nodes, so neither kind can be skipped at the decoder.
	open := stream.PBFOpener(cfg.InputFile, stream.Options{
		SkipRelations: true,
		Workers:       cfg.Workers,
	})

	addrs, stats, err := addresses.NewExtractor().Run(context.Background(), open)
	if err != nil {
		exitWithError("address extraction failed", err)
	}

	f, err := os.Create(addressesOutput)
	if err != nil {
		exitWithError("failed to create output file", err)
	}
	if err := addresses.WriteCSV(f, addrs); err != nil {
		f.Close()
		exitWithError("failed to write addresses", err)
	}
	if err := f.Close(); err != nil {
		exitWithError("failed to close output file", err)
	}

	elapsed := time.Since(start)
	log.Info("Addresses written",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int64("node_addresses", stats.NodeAddresses),
		zap.Int64("way_addresses", stats.WayAddresses),
		zap.Int64("unresolved", stats.Unresolved),
		zap.Int("total", len(addrs)),
	)
}
