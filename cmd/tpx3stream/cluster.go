package main

import (
	"runtime"

	"github.com/alitto/pond"

	"github.com/ornlneutronimaging/tpx3stream/cluster"
)

// clusteringConfig returns the shared clustering parameters used by the CLI
// regardless of which algorithm is selected: 3px radius, 1us window,
// singleton clusters allowed.
func clusteringConfig() cluster.Config {
	return cluster.DefaultConfig()
}

// clusterPool sizes a small worker pool for the label-reset/remap passes
// grid and dbscan can optionally parallelize.
func clusterPool() *pond.WorkerPool {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return pond.New(n, 0, pond.MinWorkers(n))
}

func newGrid(cfg cluster.Config) (*cluster.GridClusterer, error) {
	return cluster.NewGridClusterer(cfg, clusterPool())
}

func newDBSCAN(cfg cluster.Config) (*cluster.DBSCANClusterer, error) {
	return cluster.NewDBSCANClusterer(cfg, clusterPool())
}

func newABS(cfg cluster.Config) (*cluster.ABSClusterer, error) {
	return cluster.NewABSClusterer(cfg)
}
