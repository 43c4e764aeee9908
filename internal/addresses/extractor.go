// Package addresses extracts address points from an OSM extract: nodes
// carrying addr:* tags plus buildings mapped as ways, which are located
// through their first node. This is a plain filter-and-dump report, not
// part of the routing graph.
package addresses

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2pgrouting-go/internal/logger"
	"github.com/wegman-software/osm2pgrouting-go/internal/stream"
)

// Address is one geolocated address point.
type Address struct {
	OSMType     string // "N" or "W"
	OSMID       int64
	Lon         float64
	Lat         float64
	City        string
	Postcode    string
	Street      string
	Housenumber string
	Name        string
}

type pendingWay struct {
	id        int64
	firstNode int64
	addr      Address
}

// Stats aggregates extraction counters.
type Stats struct {
	NodeAddresses int64
	WayAddresses  int64
	Unresolved    int64
}

// Extractor collects addresses over two passes: ways first, to learn
// which node positions are required, then nodes.
type Extractor struct {
	pending  []pendingWay
	needed   map[int64]struct{}
	resolved map[int64][2]float64
	stats    Stats
}

// NewExtractor creates an empty extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		needed:   make(map[int64]struct{}),
		resolved: make(map[int64][2]float64),
	}
}

func addressFromTags(tags osm.Tags) (Address, bool) {
	housenumber := tags.Find("addr:housenumber")
	if housenumber == "" {
		return Address{}, false
	}
	return Address{
		City:        tags.Find("addr:city"),
		Postcode:    tags.Find("addr:postcode"),
		Street:      tags.Find("addr:street"),
		Housenumber: housenumber,
		Name:        tags.Find("name"),
	}, true
}

// Run performs both passes and returns the collected addresses.
func (e *Extractor) Run(ctx context.Context, open stream.Opener) ([]Address, *Stats, error) {
	if err := e.collectWays(ctx, open); err != nil {
		return nil, nil, err
	}

	addrs, err := e.collectNodes(ctx, open)
	if err != nil {
		return nil, nil, err
	}

	// Resolve building ways through their first node. A building whose
	// first node never appeared is dropped; one corner is accurate enough
	// for geocoding, so no full geometry is kept.
	for _, p := range e.pending {
		pt, ok := e.resolved[p.firstNode]
		if !ok {
			e.stats.Unresolved++
			continue
		}
		addr := p.addr
		addr.Lon, addr.Lat = pt[0], pt[1]
		addrs = append(addrs, addr)
		e.stats.WayAddresses++
	}

	logger.Get().Info("Address extraction complete",
		zap.Int64("node_addresses", e.stats.NodeAddresses),
		zap.Int64("way_addresses", e.stats.WayAddresses),
		zap.Int64("unresolved", e.stats.Unresolved))

	return addrs, &e.stats, nil
}

func (e *Extractor) collectWays(ctx context.Context, open stream.Opener) error {
	src, err := open(ctx)
	if err != nil {
		return fmt.Errorf("address way pass: %w", err)
	}
	defer src.Close()

	for {
		obj, ok := src.Next()
		if !ok {
			break
		}
		way, ok := obj.(*osm.Way)
		if !ok || len(way.Nodes) == 0 {
			continue
		}
		addr, ok := addressFromTags(way.Tags)
		if !ok {
			continue
		}
		addr.OSMType = "W"
		addr.OSMID = int64(way.ID)

		firstNode := int64(way.Nodes[0].ID)
		e.needed[firstNode] = struct{}{}
		e.pending = append(e.pending, pendingWay{
			id:        int64(way.ID),
			firstNode: firstNode,
			addr:      addr,
		})
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("address way pass: stream decode failed: %w", err)
	}
	return nil
}

func (e *Extractor) collectNodes(ctx context.Context, open stream.Opener) ([]Address, error) {
	src, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("address node pass: %w", err)
	}
	defer src.Close()

	var addrs []Address
	for {
		obj, ok := src.Next()
		if !ok {
			break
		}
		node, ok := obj.(*osm.Node)
		if !ok {
			continue
		}
		id := int64(node.ID)
		if _, ok := e.needed[id]; ok {
			e.resolved[id] = [2]float64{node.Lon, node.Lat}
		}
		addr, ok := addressFromTags(node.Tags)
		if !ok {
			continue
		}
		addr.OSMType = "N"
		addr.OSMID = id
		addr.Lon, addr.Lat = node.Lon, node.Lat
		addrs = append(addrs, addr)
		e.stats.NodeAddresses++
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("address node pass: stream decode failed: %w", err)
	}
	return addrs, nil
}

// WriteCSV dumps addresses with a header row.
func WriteCSV(w io.Writer, addrs []Address) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"osm_type", "osm_id", "lon", "lat",
		"city", "postcode", "street", "housenumber", "name",
	}); err != nil {
		return err
	}
	for _, a := range addrs {
		record := []string{
			a.OSMType,
			strconv.FormatInt(a.OSMID, 10),
			strconv.FormatFloat(a.Lon, 'f', 7, 64),
			strconv.FormatFloat(a.Lat, 'f', 7, 64),
			a.City, a.Postcode, a.Street, a.Housenumber, a.Name,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
