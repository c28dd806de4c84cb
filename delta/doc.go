// Package delta encodes and decodes delta files, the on-disk form of cache
// mutations.
//
// A delta file starts with an 8 byte header (magic "KVQD", format version,
// compression) followed by a stream of blocks. Each block is optionally LZ4
// or ZSTD compressed and carries a CRC32C of its uncompressed bytes. Records
// are varint encoded and may span block boundaries; uint32 sets are stored as
// serialized roaring bitmaps.
//
// Files are named FileName(commitTime) so a lexical listing is also commit
// time order.
//
//	w := delta.NewWriter(f, delta.WithCompression(delta.CompressionZSTD))
//	_ = w.Write(delta.Record{Type: delta.UpdateUInt32ValueSet, Key: "A", CommitTime: 1, UInt32Values: []uint32{1, 2}})
//	_ = w.Close()
package delta
