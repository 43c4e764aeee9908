// Package parquet writes the routing graph to Parquet files, as an
// intermediate format decoupling the graph build from the database load.
// Geometries are stored as EWKB.
package parquet

import (
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osm2pgrouting-go/internal/graph"
	"github.com/wegman-software/osm2pgrouting-go/internal/wkb"
)

// File names produced by extract and consumed by load.
const (
	WaysFile  = "ways.parquet"
	NodesFile = "nodes.parquet"
)

func waysSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "id_osm", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "type", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "source", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "target", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "lon1", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "lat1", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "lon2", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "lat2", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "length", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "geom", Type: arrow.BinaryTypes.Binary, Nullable: false},
	}, nil)
}

func nodesSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "lon", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "lat", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "geom", Type: arrow.BinaryTypes.Binary, Nullable: false},
	}, nil)
}

// tableWriter batches records into a zstd Parquet file.
type tableWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
}

func newTableWriter(path string, schema *arrow.Schema, batchSize int) (*tableWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &tableWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

func (w *tableWriter) maybeFlush() error {
	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *tableWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

func (w *tableWriter) close() error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return err
	}
	return w.file.Close()
}

// GraphWriter emits edges and vertices into two Parquet files.
type GraphWriter struct {
	ways  *tableWriter
	nodes *tableWriter
	enc   *wkb.Encoder
}

// NewGraphWriter creates writers under dir.
func NewGraphWriter(waysPath, nodesPath string, batchSize int) (*GraphWriter, error) {
	ways, err := newTableWriter(waysPath, waysSchema(), batchSize)
	if err != nil {
		return nil, err
	}
	nodes, err := newTableWriter(nodesPath, nodesSchema(), batchSize)
	if err != nil {
		ways.close()
		return nil, err
	}
	return &GraphWriter{ways: ways, nodes: nodes, enc: wkb.NewEncoder(1024)}, nil
}

// WriteEdge appends one edge record.
func (w *GraphWriter) WriteEdge(e graph.Edge) error {
	b := w.ways.builder
	first, last := e.Geometry[0], e.Geometry[len(e.Geometry)-1]

	b.Field(0).(*array.Int64Builder).Append(e.ID)
	b.Field(1).(*array.Int64Builder).Append(e.OSMID)
	b.Field(2).(*array.Int32Builder).Append(int32(e.Type))
	b.Field(3).(*array.Int64Builder).Append(e.Source)
	b.Field(4).(*array.Int64Builder).Append(e.Target)
	b.Field(5).(*array.Float64Builder).Append(first[0])
	b.Field(6).(*array.Float64Builder).Append(first[1])
	b.Field(7).(*array.Float64Builder).Append(last[0])
	b.Field(8).(*array.Float64Builder).Append(last[1])
	if e.Name != "" {
		b.Field(9).(*array.StringBuilder).Append(e.Name)
	} else {
		b.Field(9).(*array.StringBuilder).AppendNull()
	}
	b.Field(10).(*array.Float64Builder).Append(e.Length)
	b.Field(11).(*array.BinaryBuilder).Append(w.enc.EncodeLineString(e.Geometry))

	return w.ways.maybeFlush()
}

// WriteVertex appends one node record.
func (w *GraphWriter) WriteVertex(v graph.Vertex) error {
	b := w.nodes.builder

	b.Field(0).(*array.Int64Builder).Append(v.ID)
	b.Field(1).(*array.Float64Builder).Append(v.Lon)
	b.Field(2).(*array.Float64Builder).Append(v.Lat)
	b.Field(3).(*array.BinaryBuilder).Append(w.enc.EncodePoint(v.Lon, v.Lat))

	return w.nodes.maybeFlush()
}

// Close flushes and closes both files.
func (w *GraphWriter) Close() error {
	if err := w.ways.close(); err != nil {
		w.nodes.close()
		return err
	}
	return w.nodes.close()
}
