// Package resource enforces process-wide limits.
//
// A Controller governs four resources:
//
//   - Query slots: concurrent queries and lookups (blocking or fail-fast)
//   - Memory: decoded delta data waiting to be applied by the loader
//   - Background workers: concurrent delta file decoders
//   - IO: a token bucket on blob store reads, so loading does not starve
//     query traffic
//
// # Usage
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentQueries: 64,
//	    IOLimitBytesPerSec:   100 << 20,
//	})
//
//	if err := rc.AcquireQuery(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseQuery()
//
// # Nil Safety
//
// All methods accept a nil *Controller and then impose no limits.
package resource
