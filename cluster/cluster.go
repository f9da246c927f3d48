// Package cluster implements the three interchangeable spatio-temporal
// clustering algorithms: grid/union-find, a DBSCAN variant, and an
// age-based streaming (ABS) clusterer. All three consume a tpx3.HitBatch
// and write cluster_id in place.
package cluster

import (
	"errors"
	"math"
)

// Sentinel errors surfaced by the clustering algorithms.
var (
	ErrNotTOFSorted       = errors.New("cluster: input batch is not tof-sorted")
	ErrEmptyInput         = errors.New("cluster: input batch is empty")
	ErrInvalidConfig      = errors.New("cluster: invalid configuration")
	ErrBucketPoolExhausted = errors.New("cluster: abs bucket pool exhausted")
	ErrClusterIDOverflow  = errors.New("cluster: cluster id overflow")
)

// Algorithm names one of the three interchangeable clusterers.
type Algorithm int

const (
	AlgorithmGrid Algorithm = iota
	AlgorithmDBSCAN
	AlgorithmABS
)

// Config holds the parameters shared by every clustering algorithm: the
// spatio-temporal link predicate and post-hoc size filters. The
// algorithm-specific tunables (grid cell size, dbscan min_points, abs scan
// interval) are fields of this same struct, so all three algorithms share
// one copy of radius/window/min/max.
type Config struct {
	Radius          float64
	WindowNS        float64
	MinClusterSize  int
	MaxClusterSize  int // 0 means unbounded
	GridCellSize    int
	DBSCANMinPoints int
	ABSScanInterval int
}

// DefaultConfig returns sane defaults: 3px radius, 1us window, singleton
// clusters allowed, 32px broad-phase cells.
func DefaultConfig() Config {
	return Config{
		Radius:          3.0,
		WindowNS:        1000.0,
		MinClusterSize:  1,
		MaxClusterSize:  0,
		GridCellSize:    32,
		DBSCANMinPoints: 2,
		ABSScanInterval: 256,
	}
}

// WindowTicks is ceil(window_ns / 25).
func (c Config) WindowTicks() uint32 {
	return uint32(math.Ceil(c.WindowNS / 25.0))
}

// CellSize returns the configured broad-phase grid cell size. Callers must
// validate the config first: Validate rejects a GridCellSize smaller than
// ceil(Radius) rather than having this method silently round it up.
func (c Config) CellSize() int {
	return c.GridCellSize
}

// Validate reports ErrInvalidConfig when the configuration cannot be used.
func (c Config) Validate() error {
	if c.Radius <= 0 {
		return ErrInvalidConfig
	}
	if c.WindowNS <= 0 {
		return ErrInvalidConfig
	}
	if c.MinClusterSize < 1 {
		return ErrInvalidConfig
	}
	if c.MaxClusterSize != 0 && c.MaxClusterSize < c.MinClusterSize {
		return ErrInvalidConfig
	}
	if c.GridCellSize < int(math.Ceil(c.Radius)) {
		return ErrInvalidConfig
	}
	return nil
}

// radiusSquared is the squared link radius used by the spatial half of
// the spatio-temporal predicate, (dx^2 + dy^2) <= radius^2.
func (c Config) radiusSquared() float64 {
	return c.Radius * c.Radius
}

// linked reports whether two hits satisfy the spatio-temporal predicate:
// (dx^2 + dy^2) <= radius^2 and |tof_i - tof_j| <= window_ticks.
func linked(x1, y1 uint16, tof1 uint32, x2, y2 uint16, tof2 uint32, radiusSq float64, windowTicks uint32) bool {
	dx := float64(int(x1) - int(x2))
	dy := float64(int(y1) - int(y2))
	if dx*dx+dy*dy > radiusSq {
		return false
	}
	var dt uint32
	if tof1 > tof2 {
		dt = tof1 - tof2
	} else {
		dt = tof2 - tof1
	}
	return dt <= windowTicks
}
