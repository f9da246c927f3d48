package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	tpx3 "github.com/ornlneutronimaging/tpx3stream"
	"github.com/ornlneutronimaging/tpx3stream/internal/engine"
	"github.com/ornlneutronimaging/tpx3stream/neutron"
	"github.com/ornlneutronimaging/tpx3stream/search"
)

// stream processes a single TPX3 file and prints a neutron summary.
func stream(path string, memoryFraction float64, algorithm string) error {
	log.Println("Processing TPX3:", path)

	data, err := tpx3.OpenFile(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	det := tpx3.VenusDefaults()
	opts := engine.Options{
		Detector: det,
		OutOfCore: tpx3.OutOfCoreConfig{
			MemoryFraction: memoryFraction,
			WindowTicks:    40, // ~1us window in 25ns ticks
		},
	}

	groups, g, err := engine.Run(ctx, data, opts)
	if err != nil {
		return err
	}

	var all []neutron.Neutron
	extractCfg := neutron.DefaultExtractionConfig()

	for group := range groups {
		for _, slice := range group.Slices {
			numClusters, err := clusterSlice(slice.Hits, algorithm)
			if err != nil {
				return err
			}
			batch, err := neutron.Extract(slice.Hits, numClusters, extractCfg)
			if err != nil {
				return err
			}
			for _, n := range batch.Neutrons {
				if slice.HasCutoff && n.TOF > slice.EmitCutoffTOF {
					continue
				}
				all = append(all, n)
			}
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats := neutron.StatisticsFromNeutrons(all)
	fmt.Printf("Finished %s: %d neutrons, mean tof=%.1f+/-%.1f ticks, mean tot=%.1f, mean hits/cluster=%.2f, single-hit fraction=%.4f\n",
		path, stats.Count, stats.MeanTOF, stats.StdTOF, stats.MeanTOT, stats.MeanNHits, stats.SingleHitFraction)
	fmt.Printf("  x range=[%.1f, %.1f], y range=[%.1f, %.1f], tof range=[%d, %d]\n",
		stats.XRange.Min, stats.XRange.Max, stats.YRange.Min, stats.YRange.Max, stats.TOFRange.Min, stats.TOFRange.Max)
	for chip, count := range stats.CountByChip {
		fmt.Printf("  chip %d: %d neutrons\n", chip, count)
	}

	log.Println("Finished TPX3:", path)
	return nil
}

// clusterSlice dispatches to the configured clustering algorithm using
// shared default clustering parameters.
func clusterSlice(batch *tpx3.HitBatch, algorithm string) (int, error) {
	cfg := clusteringConfig()
	switch algorithm {
	case "dbscan":
		c, err := newDBSCAN(cfg)
		if err != nil {
			return 0, err
		}
		return c.Cluster(batch)
	case "abs":
		c, err := newABS(cfg)
		if err != nil {
			return 0, err
		}
		return c.Cluster(batch)
	default:
		batch.SortByTOF()
		c, err := newGrid(cfg)
		if err != nil {
			return 0, err
		}
		return c.Cluster(batch)
	}
}

// streamTrawl walks a directory for .tpx3 files and processes each with a
// fixed worker pool, the same bulk-conversion shape as the single-file
// stream command but fanned out across a directory tree.
func streamTrawl(uri string, memoryFraction float64, algorithm string) error {
	log.Println("Searching uri:", uri)
	items, err := search.FindTPX3(uri)
	if err != nil {
		return err
	}
	log.Println("Number of TPX3 files to process:", len(items))

	n := runtime.NumCPU()
	pool := pond.New(n, 0, pond.MinWorkers(n))
	defer pool.StopAndWait()

	for _, name := range items {
		path := name
		pool.Submit(func() {
			if err := stream(path, memoryFraction, algorithm); err != nil {
				log.Println("error processing", path, ":", err)
			}
		})
	}

	return nil
}

func main() {
	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:  "stream",
				Usage: "Process a single TPX3 file into clustered neutron events.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "tpx3-uri",
						Usage: "Path to a TPX3 file.",
					},
					&cli.Float64Flag{
						Name:  "memory-fraction",
						Usage: "Fraction of estimated available memory to budget per out-of-core batch.",
						Value: 0.25,
					},
					&cli.StringFlag{
						Name:  "algorithm",
						Usage: "Clustering algorithm: grid, dbscan, or abs.",
						Value: "grid",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return stream(cCtx.String("tpx3-uri"), cCtx.Float64("memory-fraction"), cCtx.String("algorithm"))
				},
			},
			{
				Name:  "stream-trawl",
				Usage: "Process every TPX3 file found under a directory.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "uri",
						Usage: "Path to a directory containing TPX3 files.",
					},
					&cli.Float64Flag{
						Name:  "memory-fraction",
						Usage: "Fraction of estimated available memory to budget per out-of-core batch.",
						Value: 0.25,
					},
					&cli.StringFlag{
						Name:  "algorithm",
						Usage: "Clustering algorithm: grid, dbscan, or abs.",
						Value: "grid",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return streamTrawl(cCtx.String("uri"), cCtx.Float64("memory-fraction"), cCtx.String("algorithm"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
