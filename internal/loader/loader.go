// Package loader bulk loads previously extracted graph Parquet files into
// PostgreSQL, reusing the pgstore staging and swap machinery.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2pgrouting-go/internal/config"
	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
	"github.com/wegman-software/osm2pgrouting-go/internal/parquet"
	"github.com/wegman-software/osm2pgrouting-go/internal/pgstore"
)

// Stats holds loader statistics
type Stats struct {
	EdgesLoaded int64
	NodesLoaded int64
}

// Run loads ways.parquet and nodes.parquet from cfg.OutputDir into the
// graph tables.
func Run(ctx context.Context, cfg *config.Config, createIndexes bool) (*Stats, error) {
	log := logger.Get()

	waysPath := filepath.Join(cfg.OutputDir, parquet.WaysFile)
	nodesPath := filepath.Join(cfg.OutputDir, parquet.NodesFile)
	for _, p := range []string{waysPath, nodesPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("missing graph file %s: %w", p, err)
		}
	}

	store, err := pgstore.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	log.Info("Loading ways", zap.String("file", waysPath))
	if err := streamParquet(ctx, waysPath, store.WriteEdgeRow, readEdgeRow); err != nil {
		return nil, fmt.Errorf("failed to load ways: %w", err)
	}
	log.Info("Loading nodes", zap.String("file", nodesPath))
	if err := streamParquet(ctx, nodesPath, store.WriteNodeRow, readNodeRow); err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}

	if err := store.Finish(ctx, createIndexes); err != nil {
		return nil, err
	}

	return &Stats{
		EdgesLoaded: store.EdgesWritten.Load(),
		NodesLoaded: store.NodesWritten.Load(),
	}, nil
}

type rowReader func(rec arrow.Record, i int) []interface{}

// streamParquet pushes every record batch row into write.
func streamParquet(ctx context.Context, path string, write func([]interface{}) error, read rowReader) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 65536}, nil)
	if err != nil {
		return fmt.Errorf("failed to create arrow reader: %w", err)
	}

	rr, err := arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create record reader: %w", err)
	}
	defer rr.Release()

	for rr.Next() {
		rec := rr.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			if err := write(read(rec, i)); err != nil {
				return err
			}
		}
	}
	return rr.Err()
}

func readEdgeRow(rec arrow.Record, i int) []interface{} {
	var name interface{}
	nameCol := rec.Column(9).(*array.String)
	if !nameCol.IsNull(i) {
		name = nameCol.Value(i)
	}
	return []interface{}{
		rec.Column(0).(*array.Int64).Value(i),
		rec.Column(1).(*array.Int64).Value(i),
		rec.Column(2).(*array.Int32).Value(i),
		rec.Column(3).(*array.Int64).Value(i),
		rec.Column(4).(*array.Int64).Value(i),
		rec.Column(5).(*array.Float64).Value(i),
		rec.Column(6).(*array.Float64).Value(i),
		rec.Column(7).(*array.Float64).Value(i),
		rec.Column(8).(*array.Float64).Value(i),
		name,
		rec.Column(10).(*array.Float64).Value(i),
		// Copied: the record's buffers are recycled once the reader advances
		append([]byte(nil), rec.Column(11).(*array.Binary).Value(i)...),
	}
}

func readNodeRow(rec arrow.Record, i int) []interface{} {
	return []interface{}{
		rec.Column(0).(*array.Int64).Value(i),
		rec.Column(1).(*array.Float64).Value(i),
		rec.Column(2).(*array.Float64).Value(i),
		append([]byte(nil), rec.Column(3).(*array.Binary).Value(i)...),
	}
}
