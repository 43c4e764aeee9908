package wkb

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestEncodePoint(t *testing.T) {
	e := NewEncoder(64)
	b := e.EncodePoint(19.4866, 52.0393)

	if len(b) != 25 {
		t.Fatalf("point EWKB is %d bytes, want 25", len(b))
	}
	if b[0] != 0x01 {
		t.Error("expected little-endian byte order marker")
	}
	typ := binary.LittleEndian.Uint32(b[1:5])
	if typ != wkbPoint|wkbSRIDFlag {
		t.Errorf("type field = %#x, want point with SRID flag", typ)
	}
	if srid := binary.LittleEndian.Uint32(b[5:9]); srid != SRID4326 {
		t.Errorf("srid = %d, want 4326", srid)
	}
	lon := math.Float64frombits(binary.LittleEndian.Uint64(b[9:17]))
	lat := math.Float64frombits(binary.LittleEndian.Uint64(b[17:25]))
	if lon != 19.4866 || lat != 52.0393 {
		t.Errorf("coords = (%f, %f)", lon, lat)
	}
}

func TestEncodeLineString(t *testing.T) {
	e := NewEncoder(64)
	line := orb.LineString{{0, 0}, {0.001, 0}, {0.002, 0.001}}
	b := e.EncodeLineString(line)

	wantLen := 13 + len(line)*16
	if len(b) != wantLen {
		t.Fatalf("linestring EWKB is %d bytes, want %d", len(b), wantLen)
	}
	typ := binary.LittleEndian.Uint32(b[1:5])
	if typ != wkbLineString|wkbSRIDFlag {
		t.Errorf("type field = %#x, want linestring with SRID flag", typ)
	}
	if n := binary.LittleEndian.Uint32(b[9:13]); n != 3 {
		t.Errorf("point count = %d, want 3", n)
	}
	// Third point
	lon := math.Float64frombits(binary.LittleEndian.Uint64(b[13+32 : 21+32]))
	lat := math.Float64frombits(binary.LittleEndian.Uint64(b[21+32 : 29+32]))
	if lon != 0.002 || lat != 0.001 {
		t.Errorf("third point = (%f, %f), want (0.002, 0.001)", lon, lat)
	}
}

func TestEncoderReencode(t *testing.T) {
	// Repeated encodes reuse the buffer; each result is self-consistent
	e := NewEncoder(16)
	e.EncodePoint(1, 2)
	b := e.EncodePoint(3, 4)

	lon := math.Float64frombits(binary.LittleEndian.Uint64(b[9:17]))
	lat := math.Float64frombits(binary.LittleEndian.Uint64(b[17:25]))
	if lon != 3 || lat != 4 {
		t.Errorf("coords = (%f, %f), want (3, 4)", lon, lat)
	}
}
