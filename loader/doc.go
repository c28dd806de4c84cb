// Package loader keeps a cache in sync with delta files in a blob store.
//
// Delta files are named DELTA_<commit time> and applied in name order. If
// the store holds a CURRENT blob naming a delta file, nothing newer than
// that file is read, so a publisher can upload files first and expose them
// atomically by rewriting CURRENT.
//
//	l := loader.New(store, c, loader.WithLogger(logger))
//	if _, err := l.LoadAll(ctx); err != nil {
//	    return err
//	}
//	go l.Run(ctx, 10*time.Second)
package loader
