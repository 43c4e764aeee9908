package nodecache

type memEntry struct {
	lonE7 int32
	latE7 int32
	refs  uint8 // saturating at 2, larger counts are irrelevant
	flags uint8
}

// MemCache keeps the node index in a plain map. Suitable for city or
// country extracts; planet-scale inputs should use the disk backing.
type MemCache struct {
	entries map[int64]memEntry
}

// NewMemCache creates an empty in-memory node cache.
func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[int64]memEntry)}
}

func (c *MemCache) AddRef(id int64) {
	e := c.entries[id]
	if e.refs < 2 {
		e.refs++
	}
	c.entries[id] = e
}

func (c *MemCache) MarkEndpoint(id int64) {
	e := c.entries[id]
	e.flags |= flagEndpoint
	c.entries[id] = e
}

func (c *MemCache) IsJunction(id int64) bool {
	e, ok := c.entries[id]
	return ok && (e.refs >= 2 || e.flags&flagEndpoint != 0)
}

func (c *MemCache) Contains(id int64) bool {
	_, ok := c.entries[id]
	return ok
}

func (c *MemCache) SetCoord(id int64, lon, lat float64) {
	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.lonE7 = int32(lon * coordScale)
	e.latE7 = int32(lat * coordScale)
	e.flags |= flagHasCoord
	c.entries[id] = e
}

func (c *MemCache) Coord(id int64) (lon, lat float64, ok bool) {
	e, found := c.entries[id]
	if !found || e.flags&flagHasCoord == 0 {
		return 0, 0, false
	}
	return float64(e.lonE7) / coordScale, float64(e.latE7) / coordScale, true
}

// Len returns the number of indexed nodes.
func (c *MemCache) Len() int {
	return len(c.entries)
}

func (c *MemCache) Close() error {
	c.entries = nil
	return nil
}
