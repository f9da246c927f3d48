package tpx3

import "errors"

// Sentinel errors surfaced across the decode/merge/out-of-core stages.
// Clustering and extraction errors live in their own packages
// (cluster.ErrBucketPoolExhausted, etc.) since they are raised far from
// here and gain nothing from living in the root package.
var ErrTruncatedPacket = errors.New("tpx3: trailing bytes do not form a complete packet")
var ErrMissingTDC = errors.New("tpx3: hit observed before any TDC reference for its chip")
var ErrInvalidConfig = errors.New("tpx3: invalid configuration")
var ErrCancelled = errors.New("tpx3: operation cancelled")
var ErrMemoryBudget = errors.New("tpx3: unable to resolve memory budget")
var ErrUnknownChip = errors.New("tpx3: chip id out of range")
