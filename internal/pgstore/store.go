// Package pgstore persists the routing graph into PostgreSQL/PostGIS.
//
// Records stream through channel-fed COPY into UNLOGGED staging tables
// while the graph is still being built; finalization then rebuilds the
// public r_ways / r_nodes tables from the staging data inside a single
// transaction, so readers only ever observe a complete graph.
package pgstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2pgrouting-go/internal/config"
	"github.com/wegman-software/osm2pgrouting-go/internal/graph"
	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
	"github.com/wegman-software/osm2pgrouting-go/internal/wkb"
)

const (
	waysTable  = "r_ways"
	nodesTable = "r_nodes"
)

var edgeColumns = []string{
	"id", "id_osm", "type", "source", "target",
	"lon1", "lat1", "lon2", "lat2", "name", "length", "geom",
}

var nodeColumns = []string{"id", "lon", "lat", "geom"}

// Store is the PostgreSQL graph emitter.
type Store struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	enc  *wkb.Encoder

	edgeRows chan []interface{}
	nodeRows chan []interface{}
	g        *errgroup.Group
	gctx     context.Context

	EdgesWritten atomic.Int64
	NodesWritten atomic.Int64
}

// NewStore connects to PostgreSQL, prepares staging tables and starts the
// COPY consumers. The caller must call Finish (or Close on failure).
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Workers)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	s := &Store{
		cfg:      cfg,
		pool:     pool,
		enc:      wkb.NewEncoder(1024),
		edgeRows: make(chan []interface{}, cfg.BatchSize),
		nodeRows: make(chan []interface{}, cfg.BatchSize),
	}

	if err := s.prepare(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.g, s.gctx = errgroup.WithContext(ctx)
	s.g.Go(func() error {
		return s.copyRows(s.gctx, s.stagingName(waysTable), edgeColumns, s.edgeRows)
	})
	s.g.Go(func() error {
		return s.copyRows(s.gctx, s.stagingName(nodesTable), nodeColumns, s.nodeRows)
	})

	return s, nil
}

func (s *Store) stagingName(table string) string {
	return table + "_load"
}

func (s *Store) qualified(table string) string {
	return fmt.Sprintf("%s.%s", s.cfg.DBSchema, table)
}

func (s *Store) prepare(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if s.cfg.DBSchema != "public" {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", s.cfg.DBSchema)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	// Staging tables hold geometry as raw EWKB for fast COPY
	ddl := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", s.qualified(s.stagingName(waysTable))),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", s.qualified(s.stagingName(nodesTable))),
		fmt.Sprintf(`
			CREATE UNLOGGED TABLE %s (
				id bigint,
				id_osm bigint,
				type integer,
				source bigint,
				target bigint,
				lon1 double precision,
				lat1 double precision,
				lon2 double precision,
				lat2 double precision,
				name text,
				length double precision,
				geom bytea
			)`, s.qualified(s.stagingName(waysTable))),
		fmt.Sprintf(`
			CREATE UNLOGGED TABLE %s (
				id bigint,
				lon double precision,
				lat double precision,
				geom bytea
			)`, s.qualified(s.stagingName(nodesTable))),
	}
	for _, sql := range ddl {
		if _, err := s.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to prepare staging tables: %w", err)
		}
	}
	return nil
}

// WriteEdge queues one edge for COPY. Single-threaded caller.
func (s *Store) WriteEdge(e graph.Edge) error {
	geom := append([]byte(nil), s.enc.EncodeLineString(e.Geometry)...)

	var name interface{}
	if e.Name != "" {
		name = e.Name
	}
	first, last := e.Geometry[0], e.Geometry[len(e.Geometry)-1]

	return s.WriteEdgeRow([]interface{}{
		e.ID, e.OSMID, e.Type, e.Source, e.Target,
		first[0], first[1], last[0], last[1],
		name, e.Length, geom,
	})
}

// WriteEdgeRow queues a pre-built staging row in edge column order. Used
// by the Parquet loader, which already has encoded geometries.
func (s *Store) WriteEdgeRow(row []interface{}) error {
	select {
	case s.edgeRows <- row:
		s.EdgesWritten.Add(1)
		return nil
	case <-s.gctx.Done():
		return s.g.Wait()
	}
}

// WriteVertex queues one node for COPY. Single-threaded caller.
func (s *Store) WriteVertex(v graph.Vertex) error {
	geom := append([]byte(nil), s.enc.EncodePoint(v.Lon, v.Lat)...)

	return s.WriteNodeRow([]interface{}{v.ID, v.Lon, v.Lat, geom})
}

// WriteNodeRow queues a pre-built staging row in node column order.
func (s *Store) WriteNodeRow(row []interface{}) error {
	select {
	case s.nodeRows <- row:
		s.NodesWritten.Add(1)
		return nil
	case <-s.gctx.Done():
		return s.g.Wait()
	}
}

func (s *Store) copyRows(ctx context.Context, table string, columns []string, rows <-chan []interface{}) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Conn().CopyFrom(
		ctx,
		pgx.Identifier{s.cfg.DBSchema, table},
		columns,
		&rowSource{rows: rows},
	)
	if err != nil {
		return fmt.Errorf("COPY to %s failed: %w", table, err)
	}
	return nil
}

// Finish drains the COPY streams and swaps the staged graph into the
// final tables in one transaction.
func (s *Store) Finish(ctx context.Context, createIndexes bool) error {
	log := logger.Get()

	close(s.edgeRows)
	close(s.nodeRows)
	if err := s.g.Wait(); err != nil {
		return err
	}
	log.Info("Staging COPY complete",
		zap.Int64("edges", s.EdgesWritten.Load()),
		zap.Int64("nodes", s.NodesWritten.Load()))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin swap transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	swap := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", s.qualified(waysTable)),
		fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", s.qualified(nodesTable)),
		fmt.Sprintf(`
			CREATE TABLE %s (
				id bigint PRIMARY KEY,
				lon double precision,
				lat double precision,
				geom geometry(Point, 4326)
			)`, s.qualified(nodesTable)),
		fmt.Sprintf(`
			CREATE TABLE %s (
				id bigint PRIMARY KEY,
				id_osm bigint,
				type integer,
				source bigint,
				target bigint,
				lon1 double precision,
				lat1 double precision,
				lon2 double precision,
				lat2 double precision,
				name text,
				length double precision,
				geom geometry(LineString, 4326)
			)`, s.qualified(waysTable)),
		fmt.Sprintf(`
			INSERT INTO %s (id, lon, lat, geom)
			SELECT id, lon, lat, ST_GeomFromEWKB(geom) FROM %s`,
			s.qualified(nodesTable), s.qualified(s.stagingName(nodesTable))),
		fmt.Sprintf(`
			INSERT INTO %s (id, id_osm, type, source, target, lon1, lat1, lon2, lat2, name, length, geom)
			SELECT id, id_osm, type, source, target, lon1, lat1, lon2, lat2, name, length, ST_GeomFromEWKB(geom)
			FROM %s`,
			s.qualified(waysTable), s.qualified(s.stagingName(waysTable))),
		fmt.Sprintf("DROP TABLE %s", s.qualified(s.stagingName(waysTable))),
		fmt.Sprintf("DROP TABLE %s", s.qualified(s.stagingName(nodesTable))),
	}
	for _, sql := range swap {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("graph swap failed: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit graph swap: %w", err)
	}
	log.Info("Graph tables swapped")

	if createIndexes {
		if err := s.CreateIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes builds spatial and lookup indexes plus the endpoint
// foreign keys, then refreshes planner statistics.
func (s *Store) CreateIndexes(ctx context.Context) error {
	log := logger.Get()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET maintenance_work_mem = '2GB'"); err != nil {
		log.Debug("Could not raise maintenance_work_mem", zap.Error(err))
	}

	ways := s.qualified(waysTable)
	nodes := s.qualified(nodesTable)
	stmts := []string{
		fmt.Sprintf("CREATE INDEX %s_geom_idx ON %s USING GIST (geom)", waysTable, ways),
		fmt.Sprintf("CREATE INDEX %s_geom_idx ON %s USING GIST (geom)", nodesTable, nodes),
		fmt.Sprintf("CREATE INDEX %s_id_osm_idx ON %s (id_osm)", waysTable, ways),
		fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (source) REFERENCES %s (id)", ways, nodes),
		fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (target) REFERENCES %s (id)", ways, nodes),
		fmt.Sprintf("ANALYZE %s", ways),
		fmt.Sprintf("ANALYZE %s", nodes),
	}
	for i, sql := range stmts {
		log.Info("Creating index", zap.Int("step", i+1), zap.Int("total", len(stmts)))
		if _, err := conn.Exec(ctx, sql); err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// rowSource implements pgx.CopyFromSource over a channel of rows.
type rowSource struct {
	rows    <-chan []interface{}
	current []interface{}
}

func (r *rowSource) Next() bool {
	row, ok := <-r.rows
	if !ok {
		return false
	}
	r.current = row
	return true
}

func (r *rowSource) Values() ([]interface{}, error) {
	return r.current, nil
}

func (r *rowSource) Err() error {
	return nil
}
