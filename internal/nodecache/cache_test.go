package nodecache

import (
	"math"
	"path/filepath"
	"testing"
)

func runCacheTests(t *testing.T, c Cache) {
	t.Helper()

	// Node 1: referenced by two ways mid-way
	c.AddRef(1)
	c.AddRef(1)
	// Node 2: referenced once as an endpoint
	c.AddRef(2)
	c.MarkEndpoint(2)
	// Node 3: referenced once, interior
	c.AddRef(3)

	if !c.IsJunction(1) {
		t.Error("node referenced twice should be a junction")
	}
	if !c.IsJunction(2) {
		t.Error("endpoint node should be a junction")
	}
	if c.IsJunction(3) {
		t.Error("interior node referenced once should not be a junction")
	}
	if c.IsJunction(99) {
		t.Error("unknown node should not be a junction")
	}

	if !c.Contains(3) || c.Contains(99) {
		t.Error("Contains should reflect referenced nodes only")
	}

	// Coordinates only stick to referenced nodes
	c.SetCoord(1, 19.4866, 52.0393)
	c.SetCoord(99, 1, 1)

	lon, lat, ok := c.Coord(1)
	if !ok {
		t.Fatal("coordinates for node 1 should be set")
	}
	if math.Abs(lon-19.4866) > 1e-6 || math.Abs(lat-52.0393) > 1e-6 {
		t.Errorf("Coord(1) = (%f, %f), want (19.4866, 52.0393)", lon, lat)
	}
	if _, _, ok := c.Coord(99); ok {
		t.Error("coordinates for unreferenced node should not be stored")
	}
	if _, _, ok := c.Coord(3); ok {
		t.Error("coordinates not yet set should report ok=false")
	}

	// Negative coordinates survive the fixed-point roundtrip
	c.SetCoord(2, -0.1278, -51.5074)
	lon, lat, ok = c.Coord(2)
	if !ok || math.Abs(lon+0.1278) > 1e-6 || math.Abs(lat+51.5074) > 1e-6 {
		t.Errorf("Coord(2) = (%f, %f, %v), want (-0.1278, -51.5074, true)", lon, lat, ok)
	}
}

func TestMemCache(t *testing.T) {
	c := NewMemCache()
	defer c.Close()
	runCacheTests(t, c)
}

func TestMmapCache(t *testing.T) {
	c, err := NewMmapCache(filepath.Join(t.TempDir(), "node-cache.bin"))
	if err != nil {
		t.Fatalf("NewMmapCache: %v", err)
	}
	defer c.Close()
	runCacheTests(t, c)
}

func TestMmapCacheOutOfRange(t *testing.T) {
	c, err := NewMmapCache(filepath.Join(t.TempDir(), "node-cache.bin"))
	if err != nil {
		t.Fatalf("NewMmapCache: %v", err)
	}
	defer c.Close()

	// Out-of-range IDs are ignored rather than crashing the run
	c.AddRef(-5)
	c.AddRef(maxNodeID + 1)
	if c.IsJunction(-5) || c.IsJunction(maxNodeID+1) {
		t.Error("out of range IDs should never be junctions")
	}
}

func TestMmapCacheHoldsCurrentPlanetIDs(t *testing.T) {
	c, err := NewMmapCache(filepath.Join(t.TempDir(), "node-cache.bin"))
	if err != nil {
		t.Fatalf("NewMmapCache: %v", err)
	}
	defer c.Close()

	// Node IDs on fresh extracts are already past 1e10
	const id = 12_345_678_901
	c.AddRef(id)
	c.MarkEndpoint(id)
	if !c.IsJunction(id) || !c.Contains(id) {
		t.Fatal("node above 1e10 should be indexed")
	}

	c.SetCoord(id, 19.4866, 52.0393)
	lon, lat, ok := c.Coord(id)
	if !ok || math.Abs(lon-19.4866) > 1e-6 || math.Abs(lat-52.0393) > 1e-6 {
		t.Errorf("Coord(%d) = (%f, %f, %v), want (19.4866, 52.0393, true)", int64(id), lon, lat, ok)
	}
}

func TestNewSelectsBacking(t *testing.T) {
	c, err := New("mem", "")
	if err != nil {
		t.Fatalf("New(mem): %v", err)
	}
	if _, ok := c.(*MemCache); !ok {
		t.Errorf("New(mem) = %T, want *MemCache", c)
	}
	c.Close()

	c, err = New("disk", filepath.Join(t.TempDir(), "cache.bin"))
	if err != nil {
		t.Fatalf("New(disk): %v", err)
	}
	if _, ok := c.(*MmapCache); !ok {
		t.Errorf("New(disk) = %T, want *MmapCache", c)
	}
	c.Close()

	if _, err := New("bogus", ""); err == nil {
		t.Error("expected error for unknown mode")
	}
}
