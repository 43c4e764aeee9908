// Package wkb encodes Point and LineString geometries as EWKB (PostGIS
// extended WKB: little-endian, SRID embedded), the format ST_GeomFromEWKB
// consumes.
package wkb

import (
	"encoding/binary"
	"math"

	"github.com/paulmach/orb"
)

const (
	wkbPoint      = 1
	wkbLineString = 2

	// SRID flag for EWKB
	wkbSRIDFlag = 0x20000000
)

// SRID4326 is WGS84, the only reference system the graph uses.
const SRID4326 = 4326

// Encoder encodes geometries into a reused buffer. Not safe for concurrent
// use; callers must copy Bytes() before the next Encode call.
type Encoder struct {
	buf  []byte
	srid uint32
}

// NewEncoder creates an encoder with a pre-allocated buffer and SRID 4326.
func NewEncoder(initialSize int) *Encoder {
	return &Encoder{
		buf:  make([]byte, 0, initialSize),
		srid: SRID4326,
	}
}

// EncodePoint encodes a point, lon/lat order.
func (e *Encoder) EncodePoint(lon, lat float64) []byte {
	// 1 (byte order) + 4 (type|srid flag) + 4 (srid) + 16 (2 doubles)
	e.reset(25)

	e.buf = append(e.buf, 0x01) // little-endian
	e.appendUint32(wkbPoint | wkbSRIDFlag)
	e.appendUint32(e.srid)
	e.appendFloat64(lon)
	e.appendFloat64(lat)

	return e.buf
}

// EncodeLineString encodes a line, points in lon/lat order.
func (e *Encoder) EncodeLineString(line orb.LineString) []byte {
	// 1 + 4 + 4 + 4 (point count) + 16 per point
	e.reset(13 + len(line)*16)

	e.buf = append(e.buf, 0x01)
	e.appendUint32(wkbLineString | wkbSRIDFlag)
	e.appendUint32(e.srid)
	e.appendUint32(uint32(len(line)))
	for _, pt := range line {
		e.appendFloat64(pt[0])
		e.appendFloat64(pt[1])
	}

	return e.buf
}

func (e *Encoder) reset(n int) {
	if cap(e.buf) < n {
		e.buf = make([]byte, 0, n)
	}
	e.buf = e.buf[:0]
}

func (e *Encoder) appendUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) appendFloat64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}
