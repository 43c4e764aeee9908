package graph

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// lengthSplitter subdivides an edge's vertex chain until no chunk exceeds
// maxMeters. Long ways without intersections hurt algorithms that walk the
// graph node by node; capping edge length bounds that error.
//
// Splits reuse an existing interior vertex when one lies close enough,
// otherwise artificial points are interpolated along the segment and given
// synthetic IDs anchored at the chain's source junction.
// splitEpsilon absorbs haversine rounding when a segment ends within a
// hair of a chunk boundary. Without it the final artificial point can land
// essentially on top of the segment's end node, leaving a near-zero-length
// chunk with distinct endpoint IDs.
const splitEpsilon = 1e-6 // meters

type lengthSplitter struct {
	maxMeters float64
	minter    *Minter
}

func newLengthSplitter(maxMeters float64, minter *Minter) *lengthSplitter {
	return &lengthSplitter{maxMeters: maxMeters, minter: minter}
}

// minted is the set of vertexRefs created by the last split call.
func (s *lengthSplitter) split(verts []vertexRef, anchor int64) (chunks [][]vertexRef, minted []vertexRef, err error) {
	cur := []vertexRef{verts[0]}
	length := 0.0

	for i := 1; i < len(verts); i++ {
		prev := cur[len(cur)-1]
		node := verts[i]
		dist := geo.DistanceHaversine(prev.pt, node.pt)

		if length+dist <= s.maxMeters {
			cur = append(cur, node)
			length += dist
			continue
		}

		// Chunk length overflow. Prefer cutting at the previous real vertex
		// when the remaining segment fits on its own:
		//
		//     l1        l2
		// P1 ---- P2 ---------- P3   with l1+l2 > max but l2 <= max
		// becomes P1----P2 and P2----------P3.
		if len(cur) >= 2 && dist <= s.maxMeters {
			chunks = append(chunks, cur)
			cur = []vertexRef{cur[len(cur)-1], node}
			length = dist
			continue
		}

		// The segment itself is too long: insert artificial points.
		//
		//     l1                    l2
		// P1 ---- P2 -------------------------------- P3
		// becomes P1----P2----Art1 and Art1----…----P3, possibly with
		// several Art points when a single segment spans multiple chunks.
		times := int((length + dist) / s.maxMeters)
		from := prev.pt
		for j := 0; j < times; j++ {
			toGo := s.maxMeters - length
			remaining := geo.DistanceHaversine(from, node.pt)
			if remaining <= toGo+splitEpsilon {
				break
			}
			pt := interpolate(from, node.pt, toGo/remaining)

			id, err := s.minter.Mint(anchor)
			if err != nil {
				return nil, nil, err
			}
			art := vertexRef{id: id, pt: pt}
			minted = append(minted, art)

			cur = append(cur, art)
			chunks = append(chunks, cur)
			cur = []vertexRef{art}

			from = pt
			length = 0
		}

		cur = append(cur, node)
		length = geo.DistanceHaversine(from, node.pt)
	}

	if len(cur) > 1 {
		chunks = append(chunks, cur)
	}
	return chunks, minted, nil
}

// interpolate returns the point at the given fraction between a and b.
// Linear in lon/lat, which is accurate enough at sub-chunk scale.
func interpolate(a, b orb.Point, frac float64) orb.Point {
	return orb.Point{
		a[0] + (b[0]-a[0])*frac,
		a[1] + (b[1]-a[1])*frac,
	}
}
