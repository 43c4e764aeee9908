// Package nodecache tracks, for every node referenced by a kept way, how
// often it is referenced and whether it terminates a way, plus its
// coordinates once they are known. A node is a junction when it is
// referenced at least twice or is any way's first or last node.
//
// The cache is write-only during pass 1 (references and endpoint flags),
// gains coordinates early in pass 2, and is read-only for junction queries
// for the rest of the run. Two backings exist: an in-memory map and a
// sparse memory-mapped file for inputs whose node set exceeds RAM.
package nodecache

import "fmt"

// Coordinates are stored fixed-point with 7 decimal places, matching the
// PBF encoding's native precision.
const coordScale = 1e7

const (
	flagHasCoord = 1 << 0
	flagEndpoint = 1 << 1
)

// Cache is the node usage index and coordinate store.
type Cache interface {
	// AddRef records one (way, node) reference. Called during pass 1 only,
	// once per occurrence, for kept ways only.
	AddRef(id int64)
	// MarkEndpoint flags a way's first or last node. Endpoints are always
	// junctions.
	MarkEndpoint(id int64)
	// IsJunction reports whether the node is a graph vertex. Stable once
	// pass 1 has completed.
	IsJunction(id int64) bool
	// Contains reports whether any kept way references the node.
	Contains(id int64) bool
	// SetCoord stores the node's position. Ignored for nodes no kept way
	// references, so the cache only ever holds road nodes.
	SetCoord(id int64, lon, lat float64)
	// Coord returns the node's position, ok=false when unknown.
	Coord(id int64) (lon, lat float64, ok bool)
	Close() error
}

// New creates a cache with the requested backing: "mem" or "disk".
func New(mode, path string) (Cache, error) {
	switch mode {
	case "mem":
		return NewMemCache(), nil
	case "disk":
		return NewMmapCache(path)
	default:
		return nil, fmt.Errorf("unknown node cache mode %q", mode)
	}
}
