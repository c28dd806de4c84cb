package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// ErrOverloaded is returned by TryAcquireQuery when all query slots are busy.
var ErrOverloaded = errors.New("too many concurrent queries")

// Config holds resource limits. Zero values mean unlimited unless noted.
type Config struct {
	// MaxConcurrentQueries bounds queries and lookups evaluated at once.
	MaxConcurrentQueries int64

	// MemoryLimitBytes bounds the decoded delta data held by the loader
	// before it is applied to the cache.
	MemoryLimitBytes int64

	// MaxBackgroundWorkers bounds concurrent delta file decoders.
	// If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec bounds blob store reads by the loader.
	IOLimitBytesPerSec int64
}

// Controller enforces the limits of a Config.
type Controller struct {
	cfg Config

	querySem    *semaphore.Weighted // nil if unlimited
	queryActive atomic.Int64

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	bgSem *semaphore.Weighted

	ioLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the effective limits.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireQuery waits for a query slot.
func (c *Controller) AcquireQuery(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.queryActive.Add(1)
	return nil
}

// TryAcquireQuery takes a query slot without blocking.
func (c *Controller) TryAcquireQuery() error {
	if c == nil {
		return nil
	}
	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		return ErrOverloaded
	}
	c.queryActive.Add(1)
	return nil
}

// ReleaseQuery frees a query slot.
func (c *Controller) ReleaseQuery() {
	if c == nil {
		return
	}
	c.queryActive.Add(-1)
	if c.querySem != nil {
		c.querySem.Release(1)
	}
}

// ActiveQueries returns the number of held query slots.
func (c *Controller) ActiveQueries() int64 {
	if c == nil {
		return 0
	}
	return c.queryActive.Load()
}

// AcquireMemory reserves bytes, blocking until they are available or ctx
// is done. A single reservation larger than the limit fails immediately.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return ErrMemoryLimitExceeded
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns reserved bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireBackground waits for a background worker slot.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseBackground frees a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// AcquireIO waits until the IO limit admits bytes. Requests larger than the
// bucket are admitted in burst-sized chunks.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
