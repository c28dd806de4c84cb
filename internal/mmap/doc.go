// Package mmap provides read-only memory-mapped file access.
//
// The local blob store opens delta files through this package so the
// decoder reads straight from the page cache:
//
//	m, err := mmap.Open("DELTA_0000000000000001")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix platforms use mmap(2) and madvise(2) via golang.org/x/sys/unix.
// Elsewhere the file is read into memory and Advise is a no-op.
//
// Close is idempotent. Callers must not touch the slice returned by Bytes
// after Close returns.
package mmap
