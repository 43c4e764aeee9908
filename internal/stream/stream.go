// Package stream provides a pull-based source of OSM entities over a PBF
// file. The graph builder drains a fresh source once per pass, so the
// underlying file is opened (and decoded) again for every pass instead of
// buffering entities in memory.
package stream

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// Source yields OSM entities in file order, one forward pass.
type Source interface {
	// Next returns the next entity, or false when the stream is exhausted.
	Next() (osm.Object, bool)
	// Err returns the first decode error encountered, if any.
	Err() error
	Close() error
}

// Opener creates a fresh Source positioned at the start of the input.
// It is invoked once per pass.
type Opener func(ctx context.Context) (Source, error)

// Options controls which entity kinds a PBF source decodes. Skipping
// unneeded kinds avoids decoding whole primitive blocks.
type Options struct {
	SkipNodes     bool
	SkipWays      bool
	SkipRelations bool
	Workers       int
}

// PBFOpener returns an Opener reading the given PBF file.
func PBFOpener(path string, opts Options) Opener {
	return func(ctx context.Context) (Source, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open pbf file: %w", err)
		}
		scanner := osmpbf.New(ctx, f, opts.Workers)
		scanner.SkipNodes = opts.SkipNodes
		scanner.SkipWays = opts.SkipWays
		scanner.SkipRelations = opts.SkipRelations
		return &pbfSource{f: f, scanner: scanner}, nil
	}
}

type pbfSource struct {
	f       *os.File
	scanner *osmpbf.Scanner
}

func (s *pbfSource) Next() (osm.Object, bool) {
	if !s.scanner.Scan() {
		return nil, false
	}
	return s.scanner.Object(), true
}

func (s *pbfSource) Err() error {
	return s.scanner.Err()
}

func (s *pbfSource) Close() error {
	err := s.scanner.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// SliceSource serves a fixed entity sequence, mainly for tests.
type SliceSource struct {
	Objects []osm.Object
	pos     int
}

func (s *SliceSource) Next() (osm.Object, bool) {
	if s.pos >= len(s.Objects) {
		return nil, false
	}
	o := s.Objects[s.pos]
	s.pos++
	return o, true
}

func (s *SliceSource) Err() error   { return nil }
func (s *SliceSource) Close() error { return nil }

// SliceOpener returns an Opener serving the given entities on every pass.
func SliceOpener(objects []osm.Object) Opener {
	return func(ctx context.Context) (Source, error) {
		return &SliceSource{Objects: objects}, nil
	}
}
