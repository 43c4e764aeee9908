package nodecache

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

const (
	// Each node entry: lon (int32) + lat (int32) + flags + saturating refs
	entrySize = 10
	// Maximum node ID we support. Current OSM node IDs are past 1.2e10 and
	// grow by roughly 1e9 per year; the backing file is sparse so only
	// slots that were actually written consume disk, and the headroom
	// costs nothing but address space.
	maxNodeID = 100_000_000_000
)

// MmapCache is a memory-mapped node cache. Entries live at
// offset = nodeID * entrySize, giving O(1) access to any node ID without
// holding the index in RAM.
type MmapCache struct {
	file *os.File
	data mmap.MMap
	path string
}

// NewMmapCache creates a node cache backed by a sparse file at path.
// The file is an artifact of a single run and is removed on Close.
func NewMmapCache(path string) (*MmapCache, error) {
	size := int64(maxNodeID) * entrySize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create node cache file: %w", err)
	}

	// Truncate to full size, creating a sparse file
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate node cache file: %w", err)
	}

	data, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap node cache: %w", err)
	}

	return &MmapCache{file: f, data: data, path: path}, nil
}

func (c *MmapCache) slot(id int64) []byte {
	return c.data[id*entrySize : id*entrySize+entrySize]
}

func (c *MmapCache) inRange(id int64) bool {
	return id >= 0 && id < maxNodeID
}

func (c *MmapCache) AddRef(id int64) {
	if !c.inRange(id) {
		return
	}
	s := c.slot(id)
	if s[9] < 2 {
		s[9]++
	}
}

func (c *MmapCache) MarkEndpoint(id int64) {
	if !c.inRange(id) {
		return
	}
	c.slot(id)[8] |= flagEndpoint
}

func (c *MmapCache) IsJunction(id int64) bool {
	if !c.inRange(id) {
		return false
	}
	s := c.slot(id)
	return s[9] >= 2 || s[8]&flagEndpoint != 0
}

func (c *MmapCache) Contains(id int64) bool {
	if !c.inRange(id) {
		return false
	}
	s := c.slot(id)
	return s[9] > 0 || s[8] != 0
}

func (c *MmapCache) SetCoord(id int64, lon, lat float64) {
	if !c.inRange(id) || !c.Contains(id) {
		return
	}
	s := c.slot(id)
	binary.LittleEndian.PutUint32(s[0:], uint32(int32(lon*coordScale)))
	binary.LittleEndian.PutUint32(s[4:], uint32(int32(lat*coordScale)))
	s[8] |= flagHasCoord
}

func (c *MmapCache) Coord(id int64) (lon, lat float64, ok bool) {
	if !c.inRange(id) {
		return 0, 0, false
	}
	s := c.slot(id)
	if s[8]&flagHasCoord == 0 {
		return 0, 0, false
	}
	lon = float64(int32(binary.LittleEndian.Uint32(s[0:]))) / coordScale
	lat = float64(int32(binary.LittleEndian.Uint32(s[4:]))) / coordScale
	return lon, lat, true
}

// Close unmaps and removes the backing file.
func (c *MmapCache) Close() error {
	if err := c.data.Unmap(); err != nil {
		c.file.Close()
		return err
	}
	if err := c.file.Close(); err != nil {
		return err
	}
	return os.Remove(c.path)
}
