// Package graph builds a road-routing graph from an OSM way stream. Each
// kept way is cut into edges at junction nodes so that every edge runs
// between two true topological vertices, carrying its classification,
// length and full line geometry.
package graph

import (
	"sync/atomic"

	"github.com/paulmach/orb"
)

// Edge is one routable arc between two junction nodes. Several edges may
// share the same originating OSM way ID.
type Edge struct {
	ID     int64
	OSMID  int64
	Type   int
	Source int64
	Target int64
	Name   string
	// Length in meters along the geometry
	Length float64
	// Geometry runs from source to target, including interior non-junction
	// vertices, in lon/lat order
	Geometry orb.LineString
}

// Vertex is a persisted graph node: a junction or a synthetic split point.
type Vertex struct {
	ID  int64
	Lon float64
	Lat float64
}

// Emitter receives finished records. Implementations may buffer and flush
// asynchronously; edge IDs are assigned before emission so ordering across
// batches does not matter.
type Emitter interface {
	WriteEdge(Edge) error
	WriteVertex(Vertex) error
}

// Stats aggregates counters across both passes. Counters are atomic: the
// progress ticker reads them while the pass loop is still writing.
type Stats struct {
	WaysKept       atomic.Int64
	WaysDropped    atomic.Int64
	WaysDegenerate atomic.Int64
	NodesResolved  atomic.Int64
	Edges          atomic.Int64
	Vertices       atomic.Int64
	SyntheticNodes atomic.Int64
	ZeroLenSkipped atomic.Int64
}
