package graph

import "fmt"

// Sequence hands out edge IDs. A single sequence owns the whole run, so
// edges split from different ways can never collide.
type Sequence struct {
	next int64
}

// NewSequence creates a sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

// Next returns the next ID.
func (s *Sequence) Next() int64 {
	id := s.next
	s.next++
	return id
}

// MintBase is the fixed base of the synthetic node ID scheme:
// synthetic = anchor*MintBase + counter, counter in [1, MintBase). Real OSM
// node IDs are nowhere near anchor*MintBase for real anchors, so the scheme
// is collision-free for real-world inputs; collisions are still checked and
// treated as fatal.
const MintBase = 10000

// Minter creates synthetic node IDs for split points that do not
// correspond to any real OSM node. Counters are per anchor and live for
// one run.
type Minter struct {
	counters map[int64]int64
	// taken reports whether an ID already belongs to a real node
	taken func(int64) bool
}

// NewMinter creates a minter. taken may be nil to skip collision checks.
func NewMinter(taken func(int64) bool) *Minter {
	return &Minter{
		counters: make(map[int64]int64),
		taken:    taken,
	}
}

// Mint returns a new synthetic ID derived from the anchor node.
func (m *Minter) Mint(anchor int64) (int64, error) {
	c := m.counters[anchor] + 1
	if c >= MintBase {
		return 0, fmt.Errorf("synthetic counter for node %d exhausted base %d", anchor, MintBase)
	}
	m.counters[anchor] = c

	id := anchor*MintBase + c
	if m.taken != nil && m.taken(id) {
		return 0, fmt.Errorf("synthetic node ID %d (anchor %d) collides with a real node", id, anchor)
	}
	return id, nil
}
