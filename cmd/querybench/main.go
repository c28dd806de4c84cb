// Command querybench measures set operations and query evaluation over
// sets held in a KeyValueCache, for both string and roaring bitmap sets.
//
//	querybench -set_size 1000 -query "(A - B) | (C & D)" -range_min 0 -range_max 65536
package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
)

type config struct {
	setSize  int
	query    string
	rangeMin uint
	rangeMax uint
	seed     int64
	zipf     float64
	filter   string
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config

	fs := flag.NewFlagSet("querybench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.setSize, "set_size", 1000, "Number of elements in a set.")
	fs.StringVar(&cfg.query, "query", "(A - B) | (C & D)", "Query to evaluate")
	fs.UintVar(&cfg.rangeMin, "range_min", 0, "Minimum element in a set")
	fs.UintVar(&cfg.rangeMax, "range_max", 65536, "Maximum element in a set")
	fs.Int64Var(&cfg.seed, "seed", 42, "Random seed for set contents")
	fs.Float64Var(&cfg.zipf, "zipf", 0, "Zipf skew (> 1) for set contents; 0 draws uniformly")
	fs.StringVar(&cfg.filter, "bench", "", "Only run benchmarks whose name contains this string")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	if err := run(cfg, os.Stdout); err != nil {
		logger.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}
