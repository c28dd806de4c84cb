package delta

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// RecordType identifies the cache mutation a record carries.
type RecordType uint8

const (
	// UpdateKeyValue sets Key to Value.
	UpdateKeyValue RecordType = iota + 1
	// DeleteKey removes Key.
	DeleteKey
	// UpdateValueSet adds Values to the string set under Key.
	UpdateValueSet
	// DeleteValuesInSet removes Values from the string set under Key.
	DeleteValuesInSet
	// UpdateUInt32ValueSet adds UInt32Values to the uint32 set under Key.
	UpdateUInt32ValueSet
	// DeleteUInt32ValuesInSet removes UInt32Values from the uint32 set under Key.
	DeleteUInt32ValuesInSet
)

func (t RecordType) String() string {
	switch t {
	case UpdateKeyValue:
		return "UPDATE_KEY_VALUE"
	case DeleteKey:
		return "DELETE_KEY"
	case UpdateValueSet:
		return "UPDATE_VALUE_SET"
	case DeleteValuesInSet:
		return "DELETE_VALUES_IN_SET"
	case UpdateUInt32ValueSet:
		return "UPDATE_UINT32_VALUE_SET"
	case DeleteUInt32ValuesInSet:
		return "DELETE_UINT32_VALUES_IN_SET"
	default:
		return fmt.Sprintf("RecordType(%d)", uint8(t))
	}
}

// Record is a single cache mutation.
type Record struct {
	Type       RecordType
	Key        string
	CommitTime int64

	// Value is set for UpdateKeyValue.
	Value string
	// Values is set for the string set types.
	Values []string
	// UInt32Values is set for the uint32 set types.
	UInt32Values []uint32
}

// Validate checks that r is well formed.
func (r *Record) Validate() error {
	if r.Type < UpdateKeyValue || r.Type > DeleteUInt32ValuesInSet {
		return fmt.Errorf("%w: unknown record type %d", ErrInvalidRecord, r.Type)
	}
	if r.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	return nil
}

// Record payload layout, after the type byte:
//
//	key        uvarint length + bytes
//	commitTime varint
//	value      uvarint length + bytes          (UpdateKeyValue)
//	values     uvarint count + length-prefixed (string sets)
//	bitmap     uvarint length + roaring bytes  (uint32 sets)
func appendRecord(buf []byte, r *Record) ([]byte, error) {
	buf = append(buf, byte(r.Type))
	buf = appendString(buf, r.Key)
	buf = binary.AppendVarint(buf, r.CommitTime)

	switch r.Type {
	case UpdateKeyValue:
		buf = appendString(buf, r.Value)

	case DeleteKey:

	case UpdateValueSet, DeleteValuesInSet:
		buf = binary.AppendUvarint(buf, uint64(len(r.Values)))
		for _, v := range r.Values {
			buf = appendString(buf, v)
		}

	case UpdateUInt32ValueSet, DeleteUInt32ValuesInSet:
		rb := roaring.BitmapOf(r.UInt32Values...)
		rb.RunOptimize()

		data, err := rb.ToBytes()
		if err != nil {
			return nil, err
		}

		buf = binary.AppendUvarint(buf, uint64(len(data)))
		buf = append(buf, data...)
	}

	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// maxFieldSize bounds length prefixes so corrupt input cannot force huge
// allocations.
const maxFieldSize = 1 << 30

func readRecord(br *bufio.Reader) (Record, error) {
	var r Record

	t, err := br.ReadByte()
	if err != nil {
		return r, err // io.EOF at a record boundary ends the stream
	}
	r.Type = RecordType(t)

	if r.Key, err = readString(br); err != nil {
		return r, corrupt(err)
	}
	if r.CommitTime, err = binary.ReadVarint(br); err != nil {
		return r, corrupt(err)
	}

	switch r.Type {
	case UpdateKeyValue:
		if r.Value, err = readString(br); err != nil {
			return r, corrupt(err)
		}

	case DeleteKey:

	case UpdateValueSet, DeleteValuesInSet:
		n, err := readLength(br)
		if err != nil {
			return r, corrupt(err)
		}
		r.Values = make([]string, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			v, err := readString(br)
			if err != nil {
				return r, corrupt(err)
			}
			r.Values = append(r.Values, v)
		}

	case UpdateUInt32ValueSet, DeleteUInt32ValuesInSet:
		data, err := readBytes(br)
		if err != nil {
			return r, corrupt(err)
		}
		rb := roaring.New()
		if err := rb.UnmarshalBinary(data); err != nil {
			return r, corrupt(err)
		}
		r.UInt32Values = rb.ToArray()

	default:
		return r, fmt.Errorf("%w: unknown record type %d", ErrCorrupt, t)
	}

	return r, nil
}

func corrupt(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if errors.Is(err, ErrCorrupt) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

func readLength(br *bufio.Reader) (int, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, err
	}
	if n > maxFieldSize || n > math.MaxInt {
		return 0, fmt.Errorf("%w: length %d exceeds limit", ErrCorrupt, n)
	}
	return int(n), nil
}

func readBytes(br *bufio.Reader) ([]byte, error) {
	n, err := readLength(br)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(br *bufio.Reader) (string, error) {
	b, err := readBytes(br)
	return string(b), err
}
