package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/hupe1980/kvquery"
	"github.com/hupe1980/kvquery/cache"
	"github.com/hupe1980/kvquery/query"
	"github.com/hupe1980/kvquery/testutil"
)

var setNames = []string{"A", "B", "C", "D"}

// fixture holds the sets under benchmark, looked up once from the cache.
type fixture struct {
	strings *cache.SetResult
	bits    *cache.SetResult
	root    query.Node
}

func newFixture(cfg config) (*fixture, error) {
	if cfg.setSize <= 0 {
		return nil, fmt.Errorf("%w: set_size must be positive, got %d", kvquery.ErrInvalidConfiguration, cfg.setSize)
	}
	if cfg.rangeMin > math.MaxUint32 || cfg.rangeMax > math.MaxUint32 {
		return nil, fmt.Errorf("%w: range exceeds uint32", kvquery.ErrInvalidConfiguration)
	}
	if err := testutil.ValidateRange(uint32(cfg.rangeMin), uint32(cfg.rangeMax)); err != nil {
		return nil, fmt.Errorf("%w: %w", kvquery.ErrInvalidConfiguration, err)
	}

	root, err := query.Parse(cfg.query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kvquery.ErrInvalidQuery, err)
	}
	for _, name := range query.Identifiers(root) {
		if !slices.Contains(setNames, name) {
			return nil, fmt.Errorf("%w: query references set %q, available sets are %s",
				kvquery.ErrNotFound, name, strings.Join(setNames, ", "))
		}
	}

	rng := testutil.NewRNG(cfg.seed)

	var sets testutil.SetFixture
	if cfg.zipf != 0 {
		sets, err = rng.ZipfSets(setNames, cfg.setSize, uint32(cfg.rangeMin), uint32(cfg.rangeMax), cfg.zipf)
	} else {
		sets, err = rng.RandomSets(setNames, cfg.setSize, uint32(cfg.rangeMin), uint32(cfg.rangeMax))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kvquery.ErrInvalidConfiguration, err)
	}

	c := cache.New()
	for name, vals := range sets {
		c.UpdateUInt32ValueSet(name, vals, 1)
		c.UpdateKeyValueSet(name, testutil.Strings(vals), 1)
	}

	return &fixture{
		strings: c.GetKeyValueSet(setNames...),
		bits:    c.GetUInt32ValueSet(setNames...),
		root:    root,
	}, nil
}

type benchmark struct {
	name string
	fn   func(b *testing.B)
}

func benchmarkOp[S query.Set[S]](resolve query.Resolver[S], op query.Op) func(b *testing.B) {
	return func(b *testing.B) {
		e := query.NewEvaluator[S]()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			left, err := resolve("A")
			if err != nil {
				b.Fatal(err)
			}
			right, err := resolve("B")
			if err != nil {
				b.Fatal(err)
			}
			if _, err := e.Apply(op, left, right); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func benchmarkEval[S query.Set[S]](root query.Node, resolve query.Resolver[S]) func(b *testing.B) {
	return func(b *testing.B) {
		e := query.NewEvaluator[S]()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := e.Eval(root, resolve); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func (f *fixture) benchmarks() []benchmark {
	var (
		bits query.Resolver[query.BitSet]    = f.bits.UInt32ValueSet
		strs query.Resolver[query.StringSet] = f.strings.ValueSet
	)

	return []benchmark{
		{"SetUnion/Roaring", benchmarkOp(bits, query.Union)},
		{"SetUnion/String", benchmarkOp(strs, query.Union)},
		{"SetDifference/Roaring", benchmarkOp(bits, query.Difference)},
		{"SetDifference/String", benchmarkOp(strs, query.Difference)},
		{"SetIntersection/Roaring", benchmarkOp(bits, query.Intersection)},
		{"SetIntersection/String", benchmarkOp(strs, query.Intersection)},
		{"AstTreeEvaluation/Roaring", benchmarkEval(f.root, bits)},
		{"AstTreeEvaluation/String", benchmarkEval(f.root, strs)},
	}
}

func run(cfg config, out io.Writer) error {
	f, err := newFixture(cfg)
	if err != nil {
		return err
	}

	dist := "uniform"
	if cfg.zipf != 0 {
		dist = fmt.Sprintf("zipf(%g)", cfg.zipf)
	}
	fmt.Fprintf(out, "query: %s\nset_size: %d range: [%d, %d) dist: %s seed: %d\n\n",
		query.Format(f.root), cfg.setSize, cfg.rangeMin, cfg.rangeMax, dist, cfg.seed)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "benchmark\titerations\tns/op\tallocs/op\tops/s\t")

	for _, bm := range f.benchmarks() {
		if cfg.filter != "" && !strings.Contains(bm.name, cfg.filter) {
			continue
		}

		r := testing.Benchmark(bm.fn)
		if r.N == 0 {
			return fmt.Errorf("benchmark %s failed", bm.name)
		}

		opsPerSec := float64(r.N) / r.T.Seconds()
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.0f\t\n", bm.name, r.N, r.NsPerOp(), r.AllocsPerOp(), opsPerSec)
	}

	return tw.Flush()
}
