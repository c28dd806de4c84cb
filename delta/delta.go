package delta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrCorrupt is returned when a delta file cannot be decoded.
	ErrCorrupt = errors.New("delta: corrupt file")
	// ErrUnsupportedVersion is returned for files written by a newer format.
	ErrUnsupportedVersion = errors.New("delta: unsupported version")
	// ErrInvalidRecord is returned when writing a malformed record.
	ErrInvalidRecord = errors.New("delta: invalid record")
	// ErrInvalidFileName is returned by ParseFileName.
	ErrInvalidFileName = errors.New("delta: invalid file name")
	// ErrClosed is returned when writing to a closed Writer.
	ErrClosed = errors.New("delta: writer closed")
)

// File header: [Magic 4][Version uint8][Compression uint8][Reserved 2]
const (
	magic      = "KVQD"
	version    = 1
	headerSize = 8
)

// FilePrefix starts every delta file name.
const FilePrefix = "DELTA_"

const fileTimeDigits = 16

// FileName returns the name of the delta file for commitTime. Names sort
// lexically in commit time order.
func FileName(commitTime int64) string {
	return fmt.Sprintf("%s%0*d", FilePrefix, fileTimeDigits, commitTime)
}

// ParseFileName extracts the commit time from a delta file name.
func ParseFileName(name string) (int64, error) {
	digits, ok := strings.CutPrefix(name, FilePrefix)
	if !ok || len(digits) != fileTimeDigits {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
		}
	}

	t, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return t, nil
}

// IsFileName reports whether name is a delta file name.
func IsFileName(name string) bool {
	_, err := ParseFileName(name)
	return err == nil
}

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	compression Compression
	blockSize   int
}

// WithCompression selects the block compression. The default is LZ4.
func WithCompression(c Compression) WriterOption {
	return func(o *writerOptions) {
		o.compression = c
	}
}

// WithBlockSize sets the uncompressed block size in bytes.
func WithBlockSize(n int) WriterOption {
	return func(o *writerOptions) {
		if n > 0 && n <= maxBlockSize {
			o.blockSize = n
		}
	}
}

// Writer encodes records into a delta file.
type Writer struct {
	bw      *blockWriter
	scratch []byte
	header  bool
	closed  bool
	count   int
	maxTime int64
}

// NewWriter creates a Writer that emits to w. Close must be called to flush
// the final block; it does not close w.
func NewWriter(w io.Writer, optFns ...WriterOption) *Writer {
	o := writerOptions{
		compression: CompressionLZ4,
		blockSize:   defaultBlockSize,
	}
	for _, fn := range optFns {
		fn(&o)
	}

	return &Writer{
		bw: &blockWriter{
			w:           w,
			compression: o.compression,
			blockSize:   o.blockSize,
			buf:         make([]byte, 0, o.blockSize),
		},
	}
}

func (w *Writer) writeHeader() error {
	if w.header {
		return nil
	}

	var hdr [headerSize]byte
	copy(hdr[:], magic)
	hdr[4] = version
	hdr[5] = byte(w.bw.compression)

	n, err := w.bw.w.Write(hdr[:])
	w.bw.written += int64(n)
	if err != nil {
		return err
	}

	w.header = true
	return nil
}

// Write appends r.
func (w *Writer) Write(r Record) error {
	if w.closed {
		return ErrClosed
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if err := w.writeHeader(); err != nil {
		return err
	}

	var err error
	if w.scratch, err = appendRecord(w.scratch[:0], &r); err != nil {
		return err
	}
	if _, err := w.bw.Write(w.scratch); err != nil {
		return err
	}

	w.count++
	w.maxTime = max(w.maxTime, r.CommitTime)
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

// MaxCommitTime returns the largest commit time written.
func (w *Writer) MaxCommitTime() int64 { return w.maxTime }

// BytesWritten returns the encoded size so far.
func (w *Writer) BytesWritten() int64 { return w.bw.written }

// Close flushes buffered records. An empty file still carries a header.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.bw.flush()
}

// Reader decodes records from a delta file.
type Reader struct {
	br          *bufio.Reader
	compression Compression
}

// NewReader reads and validates the file header from r.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorrupt, err)
	}

	if string(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, hdr[:4])
	}
	if hdr[4] != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr[4])
	}

	c := Compression(hdr[5])
	if c > CompressionZSTD {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, hdr[5])
	}

	return &Reader{
		br:          bufio.NewReader(&blockReader{r: r, compression: c}),
		compression: c,
	}, nil
}

// Compression returns the block compression of the file.
func (r *Reader) Compression() Compression { return r.compression }

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	return readRecord(r.br)
}

// ReadAll decodes every record of a delta file.
func ReadAll(r io.Reader) ([]Record, error) {
	dr, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		rec, err := dr.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
