package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/kvquery/blobstore"
	"github.com/hupe1980/kvquery/cache"
	"github.com/hupe1980/kvquery/delta"
	"github.com/hupe1980/kvquery/internal/resource"
)

// FileResult describes one delta file load.
type FileResult struct {
	Name     string
	Records  int
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Observer is notified after every delta file is applied or fails.
type Observer func(FileResult)

// Result summarizes a LoadAll pass.
type Result struct {
	Files    int
	Records  int
	Bytes    int64
	LastFile string
}

type options struct {
	logger        *slog.Logger
	controller    *resource.Controller
	concurrency   int
	startAfter    string
	removeDeleted bool
	observer      Observer
}

// Option configures a Loader.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithController limits decoder concurrency, buffered memory and read
// throughput.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.controller = rc }
}

// WithConcurrency sets how many files are decoded in parallel.
// Default: GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithStartAfter skips delta files up to and including name.
func WithStartAfter(name string) Option {
	return func(o *options) { o.startAfter = name }
}

// WithRemoveDeletedKeys controls whether tombstones up to the last loaded
// file's commit time are dropped after each pass. Default: true.
func WithRemoveDeletedKeys(enabled bool) Option {
	return func(o *options) { o.removeDeleted = enabled }
}

// WithObserver registers a per-file callback.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// Loader applies delta files from a blob store to a cache.
type Loader struct {
	store blobstore.BlobStore
	cache *cache.KeyValueCache
	opts  options

	// mu serializes LoadAll passes.
	mu   sync.Mutex
	last string
}

// New creates a Loader.
func New(store blobstore.BlobStore, c *cache.KeyValueCache, optFns ...Option) *Loader {
	opts := options{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency:   runtime.GOMAXPROCS(0),
		removeDeleted: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Loader{
		store: store,
		cache: c,
		opts:  opts,
		last:  opts.startAfter,
	}
}

// LastFile returns the name of the newest applied delta file.
func (l *Loader) LastFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.last
}

// pending lists the delta files newer than the last applied one and not
// newer than CURRENT, if the store has a CURRENT blob.
func (l *Loader) pending(ctx context.Context) ([]string, error) {
	var upTo string

	current, err := blobstore.Get(ctx, l.store, blobstore.CurrentName)
	switch {
	case err == nil:
		upTo = strings.TrimSpace(string(current))
		if !delta.IsFileName(upTo) {
			return nil, fmt.Errorf("%s names %q: %w", blobstore.CurrentName, upTo, delta.ErrInvalidFileName)
		}
	case errors.Is(err, blobstore.ErrNotFound):
	default:
		return nil, fmt.Errorf("read %s: %w", blobstore.CurrentName, err)
	}

	names, err := l.store.List(ctx, delta.FilePrefix)
	if err != nil {
		return nil, fmt.Errorf("list delta files: %w", err)
	}

	var out []string
	for _, name := range names {
		if !delta.IsFileName(name) || name <= l.last {
			continue
		}
		if upTo != "" && name > upTo {
			break
		}
		out = append(out, name)
	}
	return out, nil
}

type decoded struct {
	name     string
	records  []delta.Record
	size     int64
	reserved int64
	started  time.Time
	err      error
}

// LoadAll applies every pending delta file in name order. Files are decoded
// concurrently and applied one at a time. On error the files before the
// failing one stay applied and the next pass resumes after them.
func (l *Loader) LoadAll(ctx context.Context) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res Result

	names, err := l.pending(ctx)
	if err != nil {
		return res, err
	}
	if len(names) == 0 {
		return res, nil
	}

	l.opts.logger.Debug("loading delta files", "count", len(names), "after", l.last)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rc := l.opts.controller

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.concurrency)

	// queue carries one result channel per launched file, in name order.
	queue := make(chan chan decoded, l.opts.concurrency)

	go func() {
		defer close(queue)
		for _, name := range names {
			ch := make(chan decoded, 1)
			started := time.Now()

			blob, err := l.store.Open(gctx, name)
			if err != nil {
				ch <- decoded{name: name, started: started, err: err}
				queue <- ch
				return
			}

			// Reserve before launching so earlier files never wait on
			// memory held by later ones.
			size := blob.Size()
			if err := rc.AcquireMemory(gctx, size); err != nil {
				_ = blob.Close()
				ch <- decoded{name: name, started: started, err: err}
				queue <- ch
				return
			}

			queue <- ch
			g.Go(func() error {
				d := l.decode(gctx, name, blob, size, started)
				ch <- d
				return d.err
			})
		}
	}()

	var firstErr error
	for ch := range queue {
		d := <-ch
		rc.ReleaseMemory(d.reserved)

		if firstErr != nil {
			continue
		}

		if d.err == nil {
			_, d.err = delta.ApplyAll(l.cache, d.records)
		}

		fr := FileResult{
			Name:     d.name,
			Records:  len(d.records),
			Bytes:    d.size,
			Duration: time.Since(d.started),
			Err:      d.err,
		}
		if l.opts.observer != nil {
			l.opts.observer(fr)
		}

		if d.err != nil {
			firstErr = fmt.Errorf("load %s: %w", d.name, d.err)
			cancel()
			continue
		}

		l.last = d.name
		res.Files++
		res.Records += len(d.records)
		res.Bytes += d.size
		res.LastFile = d.name

		l.opts.logger.Debug("applied delta file", "file", d.name, "records", len(d.records), "bytes", d.size, "duration", fr.Duration)
	}

	// Worker errors are already reported through their channels.
	_ = g.Wait()

	if res.Files > 0 && l.opts.removeDeleted {
		if t, err := delta.ParseFileName(res.LastFile); err == nil {
			l.cache.RemoveDeletedKeys(t)
		}
	}

	if firstErr != nil {
		l.opts.logger.Error("delta load failed", "error", firstErr, "applied", res.Files)
		return res, firstErr
	}
	return res, nil
}

// decode reads and parses one file. started is when the launcher began
// working on it, so Duration covers time spent waiting for memory.
func (l *Loader) decode(ctx context.Context, name string, blob blobstore.Blob, size int64, started time.Time) decoded {
	d := decoded{name: name, size: size, reserved: size, started: started}
	defer func() { _ = blob.Close() }()

	rc := l.opts.controller
	if err := rc.AcquireBackground(ctx); err != nil {
		d.err = err
		return d
	}
	defer rc.ReleaseBackground()

	r := resource.NewRateLimitedReader(ctx, blobstore.NewReader(ctx, blob), rc)
	d.records, d.err = delta.ReadAll(r)
	return d
}

// Run loads pending files every interval until ctx is done. Errors are
// logged and retried on the next tick.
func (l *Loader) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := l.LoadAll(ctx); err != nil && ctx.Err() == nil {
			l.opts.logger.Warn("delta poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
