package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2pgrouting-go/internal/classify"
	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
	"github.com/wegman-software/osm2pgrouting-go/internal/nodecache"
	"github.com/wegman-software/osm2pgrouting-go/internal/stream"
)

// vertexRef is a way vertex with resolved coordinates.
type vertexRef struct {
	id int64
	pt orb.Point // lon, lat
}

// Builder runs the two-pass graph build.
//
// Pass 1 drains the way stream, classifies each way and records node usage
// for kept ways, so that junctions are known before any edge is finalized.
// Pass 2 re-reads the stream: node coordinates are cached first (nodes
// precede ways in PBF file order), then each kept way is re-walked and cut
// into edges at junctions. The classifier verdict from pass 1 is cached per
// way and reused verbatim, never recomputed, so both passes observe the
// identical way set.
type Builder struct {
	classifier *classify.Classifier
	cache      nodecache.Cache
	emit       Emitter

	seq      *Sequence
	splitter *lengthSplitter

	progressEvery time.Duration

	kept    map[osm.WayID]classify.Result
	emitted map[int64]struct{}
	stats   Stats
}

// NewBuilder creates a builder emitting to emit. maxMeters > 0 enables the
// length-capping refinement with synthetic split nodes.
func NewBuilder(classifier *classify.Classifier, cache nodecache.Cache, emit Emitter, maxMeters float64) *Builder {
	b := &Builder{
		classifier:    classifier,
		cache:         cache,
		emit:          emit,
		seq:           NewSequence(),
		kept:          make(map[osm.WayID]classify.Result),
		emitted:       make(map[int64]struct{}),
		progressEvery: 5 * time.Second,
	}
	if maxMeters > 0 {
		b.splitter = newLengthSplitter(maxMeters, NewMinter(cache.Contains))
	}
	return b
}

// Run executes both passes, opening a fresh source for each.
func (b *Builder) Run(ctx context.Context, open stream.Opener) (*Stats, error) {
	log := logger.Get()

	start := time.Now()
	log.Info("Pass 1: indexing node usage of kept ways")
	if err := b.runPass(ctx, open, 1, b.pass1Entity); err != nil {
		return nil, err
	}
	log.Info("Pass 1 complete",
		zap.Int64("ways_kept", b.stats.WaysKept.Load()),
		zap.Int64("ways_dropped", b.stats.WaysDropped.Load()),
		zap.Duration("duration", time.Since(start).Round(time.Second)))

	start = time.Now()
	log.Info("Pass 2: resolving coordinates and splitting ways")
	if err := b.runPass(ctx, open, 2, b.pass2Entity); err != nil {
		return nil, err
	}
	log.Info("Pass 2 complete",
		zap.Int64("edges", b.stats.Edges.Load()),
		zap.Int64("vertices", b.stats.Vertices.Load()),
		zap.Int64("synthetic_nodes", b.stats.SyntheticNodes.Load()),
		zap.Duration("duration", time.Since(start).Round(time.Second)))

	return &b.stats, nil
}

func (b *Builder) runPass(ctx context.Context, open stream.Opener, pass int, handle func(osm.Object) error) error {
	src, err := open(ctx)
	if err != nil {
		return fmt.Errorf("pass %d: %w", pass, err)
	}
	defer src.Close()

	log := logger.Get()
	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(b.progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				log.Debug("Pass progress",
					zap.Int("pass", pass),
					zap.Int64("ways_kept", b.stats.WaysKept.Load()),
					zap.Int64("nodes_resolved", b.stats.NodesResolved.Load()),
					zap.Int64("edges", b.stats.Edges.Load()))
			}
		}
	}()

	for {
		obj, ok := src.Next()
		if !ok {
			break
		}
		if err := handle(obj); err != nil {
			return fmt.Errorf("pass %d: %w", pass, err)
		}
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("pass %d: stream decode failed: %w", pass, err)
	}
	return nil
}

// pass1Entity registers node usage for kept ways. Dropped ways are
// filtered before touching the usage index: a road that never reaches the
// output must not promote shared nodes to junctions.
func (b *Builder) pass1Entity(obj osm.Object) error {
	way, ok := obj.(*osm.Way)
	if !ok {
		return nil
	}

	result, keep := b.classifier.Classify(way.Tags)
	if !keep {
		b.stats.WaysDropped.Add(1)
		return nil
	}
	if len(way.Nodes) < 2 {
		logger.Get().Warn("Skipping degenerate way", zap.Int64("way_id", int64(way.ID)), zap.Int("nodes", len(way.Nodes)))
		b.stats.WaysDegenerate.Add(1)
		return nil
	}

	b.stats.WaysKept.Add(1)
	b.kept[way.ID] = result

	for _, wn := range way.Nodes {
		b.cache.AddRef(int64(wn.ID))
	}
	// A way always begins and ends at a junction
	b.cache.MarkEndpoint(int64(way.Nodes[0].ID))
	b.cache.MarkEndpoint(int64(way.Nodes[len(way.Nodes)-1].ID))
	return nil
}

// pass2Entity caches coordinates of road nodes and splits kept ways.
func (b *Builder) pass2Entity(obj osm.Object) error {
	switch o := obj.(type) {
	case *osm.Node:
		if b.cache.Contains(int64(o.ID)) {
			b.cache.SetCoord(int64(o.ID), o.Lon, o.Lat)
			b.stats.NodesResolved.Add(1)
		}
	case *osm.Way:
		result, ok := b.kept[o.ID]
		if !ok {
			return nil
		}
		return b.splitWay(o, result)
	}
	return nil
}

// splitWay walks the way's node sequence, closing an edge every time a
// junction node is reached. Junctions become shared endpoints of
// consecutive edges.
func (b *Builder) splitWay(way *osm.Way, result classify.Result) error {
	verts := make([]vertexRef, 0, len(way.Nodes))
	for _, wn := range way.Nodes {
		id := int64(wn.ID)
		lon, lat, ok := b.cache.Coord(id)
		if !ok {
			return fmt.Errorf("way %d references node %d with no known position", way.ID, id)
		}
		verts = append(verts, vertexRef{id: id, pt: orb.Point{lon, lat}})
	}

	start := 0
	for i := 1; i < len(verts); i++ {
		if !b.cache.IsJunction(verts[i].id) {
			continue
		}
		if err := b.emitSegment(int64(way.ID), result, verts[start:i+1]); err != nil {
			return err
		}
		start = i
	}
	// Endpoints are always junctions, so the final node closed the last
	// accumulator; anything else means the passes diverged.
	if start != len(verts)-1 {
		return fmt.Errorf("way %d: final node %d was not indexed as a junction", way.ID, verts[len(verts)-1].id)
	}
	return nil
}

// emitSegment turns one junction-to-junction vertex chain into one or more
// edges, applying the optional length cap.
func (b *Builder) emitSegment(osmID int64, result classify.Result, verts []vertexRef) error {
	chunks := [][]vertexRef{verts}
	if b.splitter != nil {
		var minted []vertexRef
		var err error
		chunks, minted, err = b.splitter.split(verts, verts[0].id)
		if err != nil {
			return fmt.Errorf("way %d: %w", osmID, err)
		}
		b.stats.SyntheticNodes.Add(int64(len(minted)))
	}

	for _, chunk := range chunks {
		src, dst := chunk[0], chunk[len(chunk)-1]
		length := pathLength(chunk)

		// A way with adjacent duplicate nodes can yield a closure that
		// starts and ends on the same node without covering any ground;
		// drop it. Genuine self-loops have positive length and are kept.
		if length == 0 && src.id == dst.id {
			b.stats.ZeroLenSkipped.Add(1)
			continue
		}

		line := make(orb.LineString, len(chunk))
		for i, v := range chunk {
			line[i] = v.pt
		}

		edge := Edge{
			ID:       b.seq.Next(),
			OSMID:    osmID,
			Type:     result.Type,
			Source:   src.id,
			Target:   dst.id,
			Name:     result.Name,
			Length:   length,
			Geometry: line,
		}
		if err := b.writeVertex(src); err != nil {
			return err
		}
		if err := b.writeVertex(dst); err != nil {
			return err
		}
		if err := b.emit.WriteEdge(edge); err != nil {
			return fmt.Errorf("way %d: emit edge %d: %w", osmID, edge.ID, err)
		}
		b.stats.Edges.Add(1)
	}
	return nil
}

func (b *Builder) writeVertex(v vertexRef) error {
	if _, done := b.emitted[v.id]; done {
		return nil
	}
	b.emitted[v.id] = struct{}{}
	if err := b.emit.WriteVertex(Vertex{ID: v.id, Lon: v.pt[0], Lat: v.pt[1]}); err != nil {
		return fmt.Errorf("emit vertex %d: %w", v.id, err)
	}
	b.stats.Vertices.Add(1)
	return nil
}

// pathLength sums pairwise haversine distances along the chain, in meters.
func pathLength(verts []vertexRef) float64 {
	var total float64
	for i := 1; i < len(verts); i++ {
		total += geo.DistanceHaversine(verts[i-1].pt, verts[i].pt)
	}
	return total
}
