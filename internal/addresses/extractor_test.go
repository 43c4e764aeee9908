package addresses

import (
	"context"
	"strings"
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm2pgrouting-go/internal/stream"
)

func addressedNode(id int64, lon, lat float64, street, number string) *osm.Node {
	return &osm.Node{
		ID: osm.NodeID(id), Lon: lon, Lat: lat,
		Tags: osm.Tags{
			{Key: "addr:city", Value: "Warszawa"},
			{Key: "addr:street", Value: street},
			{Key: "addr:housenumber", Value: number},
		},
	}
}

func TestExtractNodeAndWayAddresses(t *testing.T) {
	building := &osm.Way{
		ID: osm.WayID(100),
		Tags: osm.Tags{
			{Key: "building", Value: "yes"},
			{Key: "addr:street", Value: "Polna"},
			{Key: "addr:housenumber", Value: "7"},
		},
		Nodes: osm.WayNodes{
			{ID: osm.NodeID(10)}, {ID: osm.NodeID(11)}, {ID: osm.NodeID(10)},
		},
	}
	objects := []osm.Object{
		&osm.Node{ID: 10, Lon: 21.0, Lat: 52.2},
		&osm.Node{ID: 11, Lon: 21.001, Lat: 52.2},
		addressedNode(20, 21.01, 52.21, "Marszałkowska", "12A"),
		building,
	}

	addrs, stats, err := NewExtractor().Run(context.Background(), stream.SliceOpener(objects))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(addrs) != 2 {
		t.Fatalf("got %d addresses, want 2", len(addrs))
	}
	if stats.NodeAddresses != 1 || stats.WayAddresses != 1 || stats.Unresolved != 0 {
		t.Errorf("stats = %+v", stats)
	}

	byType := map[string]Address{}
	for _, a := range addrs {
		byType[a.OSMType] = a
	}

	n := byType["N"]
	if n.OSMID != 20 || n.Housenumber != "12A" || n.Lon != 21.01 {
		t.Errorf("node address = %+v", n)
	}

	w := byType["W"]
	if w.OSMID != 100 || w.Street != "Polna" {
		t.Errorf("way address = %+v", w)
	}
	// Way located through its first node
	if w.Lon != 21.0 || w.Lat != 52.2 {
		t.Errorf("way address at (%f, %f), want first node position", w.Lon, w.Lat)
	}
}

func TestUnresolvedBuildingIsDropped(t *testing.T) {
	building := &osm.Way{
		ID:    osm.WayID(100),
		Tags:  osm.Tags{{Key: "addr:housenumber", Value: "1"}},
		Nodes: osm.WayNodes{{ID: osm.NodeID(999)}},
	}

	addrs, stats, err := NewExtractor().Run(context.Background(),
		stream.SliceOpener([]osm.Object{building}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(addrs) != 0 || stats.Unresolved != 1 {
		t.Errorf("got %d addresses, stats %+v", len(addrs), stats)
	}
}

func TestNodesWithoutHousenumberIgnored(t *testing.T) {
	objects := []osm.Object{
		&osm.Node{ID: 1, Tags: osm.Tags{{Key: "addr:street", Value: "Polna"}}},
		&osm.Node{ID: 2, Tags: osm.Tags{{Key: "amenity", Value: "cafe"}}},
	}

	addrs, _, err := NewExtractor().Run(context.Background(), stream.SliceOpener(objects))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(addrs) != 0 {
		t.Errorf("got %d addresses, want 0", len(addrs))
	}
}

func TestWriteCSV(t *testing.T) {
	addrs := []Address{
		{OSMType: "N", OSMID: 20, Lon: 21.01, Lat: 52.21, City: "Warszawa",
			Street: "Marszałkowska", Housenumber: "12A"},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, addrs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "osm_type,osm_id,lon,lat") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "Marszałkowska") || !strings.Contains(lines[1], "12A") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}
