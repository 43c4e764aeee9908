package graph

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
)

// latForMeters returns the latitude offset covering the given distance
// when walking due north from the equator.
func latForMeters(m float64) float64 {
	origin := orb.Point{0, 0}
	perDegree := geo.DistanceHaversine(origin, orb.Point{0, 1})
	return m / perDegree
}

func TestLengthSplitLongSegment(t *testing.T) {
	// A single 1200 m segment with a 500 m cap: two artificial points
	// anchored at node 7, three chunks.
	verts := []vertexRef{
		{id: 7, pt: orb.Point{0, 0}},
		{id: 8, pt: orb.Point{0, latForMeters(1200)}},
	}

	s := newLengthSplitter(500, NewMinter(nil))
	chunks, minted, err := s.split(verts, 7)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(minted) != 2 {
		t.Fatalf("got %d synthetic nodes, want 2", len(minted))
	}
	if minted[0].id != 7*MintBase+1 || minted[1].id != 7*MintBase+2 {
		t.Errorf("synthetic IDs = %d, %d, want %d, %d",
			minted[0].id, minted[1].id, 7*MintBase+1, 7*MintBase+2)
	}

	// Chunks stay connected, keep the original endpoints and together
	// preserve the total length
	if chunks[0][0].id != 7 {
		t.Errorf("first chunk starts at %d, want 7", chunks[0][0].id)
	}
	last := chunks[len(chunks)-1]
	if last[len(last)-1].id != 8 {
		t.Errorf("last chunk ends at %d, want 8", last[len(last)-1].id)
	}

	var total float64
	for i, chunk := range chunks {
		if i > 0 {
			prev := chunks[i-1]
			if prev[len(prev)-1].id != chunk[0].id {
				t.Errorf("chunk %d does not continue from chunk %d", i, i-1)
			}
		}
		l := pathLength(chunk)
		if l > 500+1e-6 {
			t.Errorf("chunk %d length %f exceeds cap", i, l)
		}
		total += l
	}
	if math.Abs(total-1200) > 1 {
		t.Errorf("total length = %f, want ~1200", total)
	}
}

func TestLengthSplitPrefersExistingVertex(t *testing.T) {
	// 300 m + 300 m with a 500 m cap: the overflow is resolved by cutting
	// at the existing middle vertex, no synthetic nodes needed.
	verts := []vertexRef{
		{id: 1, pt: orb.Point{0, 0}},
		{id: 2, pt: orb.Point{0, latForMeters(300)}},
		{id: 3, pt: orb.Point{0, latForMeters(600)}},
	}

	s := newLengthSplitter(500, NewMinter(nil))
	chunks, minted, err := s.split(verts, 1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	if len(minted) != 0 {
		t.Fatalf("got %d synthetic nodes, want 0", len(minted))
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0][len(chunks[0])-1].id != 2 || chunks[1][0].id != 2 {
		t.Error("cut should land on existing vertex 2")
	}
}

func TestLengthSplitShortChainUntouched(t *testing.T) {
	verts := []vertexRef{
		{id: 1, pt: orb.Point{0, 0}},
		{id: 2, pt: orb.Point{0, latForMeters(100)}},
		{id: 3, pt: orb.Point{0, latForMeters(250)}},
	}

	s := newLengthSplitter(500, NewMinter(nil))
	chunks, minted, err := s.split(verts, 1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 || len(minted) != 0 {
		t.Fatalf("got %d chunks and %d synthetic nodes, want 1 and 0", len(chunks), len(minted))
	}
	if len(chunks[0]) != 3 {
		t.Errorf("chunk has %d vertices, want 3", len(chunks[0]))
	}
}

func TestLengthSplitExactMultipleHasNoDegenerateTail(t *testing.T) {
	// A segment a hair over two full chunks: the boundary rounding must be
	// absorbed, not minted into a near-zero-length tail chunk.
	verts := []vertexRef{
		{id: 7, pt: orb.Point{0, 0}},
		{id: 8, pt: orb.Point{0, latForMeters(1000 + 5e-7)}},
	}

	s := newLengthSplitter(500, NewMinter(nil))
	chunks, minted, err := s.split(verts, 7)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	if len(minted) != 1 {
		t.Fatalf("got %d synthetic nodes, want 1", len(minted))
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, chunk := range chunks {
		if l := pathLength(chunk); l < 1 {
			t.Errorf("chunk %d has degenerate length %g", i, l)
		}
	}
	last := chunks[1]
	if last[len(last)-1].id != 8 {
		t.Errorf("last chunk ends at %d, want 8", last[len(last)-1].id)
	}
}

func TestBuilderWithLengthCap(t *testing.T) {
	// End to end: a lone 1200 m way gets three edges and two synthetic
	// vertices when capped at 500 m.
	emit, stats := runBuild(t, 500, []osm.Object{
		node(7, 0, 0),
		node(8, 0, latForMeters(1200)),
		way(10, 7, 8),
	})

	if len(emit.edges) != 3 {
		t.Fatalf("got %d edges, want 3", len(emit.edges))
	}
	if stats.SyntheticNodes.Load() != 2 {
		t.Errorf("SyntheticNodes = %d, want 2", stats.SyntheticNodes.Load())
	}

	ids := emit.vertexIDs()
	for _, want := range []int64{7, 8, 7*MintBase + 1, 7*MintBase + 2} {
		if !ids[want] {
			t.Errorf("vertex %d missing", want)
		}
	}

	// Edge chain: 7 -> 70001 -> 70002 -> 8
	if emit.edges[0].Source != 7 || emit.edges[0].Target != 7*MintBase+1 {
		t.Errorf("edge 0 = %d->%d", emit.edges[0].Source, emit.edges[0].Target)
	}
	if emit.edges[2].Source != 7*MintBase+2 || emit.edges[2].Target != 8 {
		t.Errorf("edge 2 = %d->%d", emit.edges[2].Source, emit.edges[2].Target)
	}
}
