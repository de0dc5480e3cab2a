package wire

import (
	"encoding/binary"
	"fmt"
)

// ErrShortBody is returned when a field read runs past the end of the body.
var ErrShortBody = fmt.Errorf("wire: short body")

// ErrFieldTooLarge is returned when a length-prefixed field declares a
// length larger than the remaining body, which can only happen for a
// malformed or hostile frame.
var ErrFieldTooLarge = fmt.Errorf("wire: field length exceeds remaining body")

// Reader consumes a message body previously produced by Writer. Every
// message type implements Decode(*Reader) mirroring its Encode order; a
// decode error on malformed input is always reported as ProtocolViolation
// by the caller (internal/protocol).
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps a decoded frame body for field-by-field reading.
func NewReader(body []byte) *Reader {
	return &Reader{buf: body}
}

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, ErrShortBody
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// GetUint8 reads a single byte.
func (r *Reader) GetUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// GetBool reads a boolean byte; any non-zero value decodes to true.
func (r *Reader) GetBool() (bool, error) {
	v, err := r.GetUint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// GetUint32 reads a little-endian 32-bit unsigned integer.
func (r *Reader) GetUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// GetInt32 reads a little-endian 32-bit signed integer.
func (r *Reader) GetInt32() (int32, error) {
	v, err := r.GetUint32()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// GetUint64 reads a little-endian 64-bit unsigned integer.
func (r *Reader) GetUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// GetBytes reads a length-prefixed byte slice. The returned slice aliases
// the underlying body; callers that retain it beyond the decode call
// should copy it.
func (r *Reader) GetBytes() ([]byte, error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.Remaining() {
		return nil, ErrFieldTooLarge
	}
	return r.take(int(n))
}

// GetFixed reads exactly n raw bytes with no length prefix.
func (r *Reader) GetFixed(n int) ([]byte, error) {
	return r.take(n)
}

// GetString reads a length-prefixed UTF-8 string.
func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetOptional reads the presence flag and, if set, calls read.
func (r *Reader) GetOptional(read func(r *Reader) error) (bool, error) {
	present, err := r.GetBool()
	if err != nil {
		return false, err
	}
	if !present {
		return false, nil
	}
	return true, read(r)
}

// GetList reads a count prefix and calls each(i) for i in [0, n). The
// count is not pre-validated against Remaining() since element size
// varies; individual element reads still bound-check via take().
func (r *Reader) GetList(each func(r *Reader, i int) error) (int, error) {
	n, err := r.GetUint32()
	if err != nil {
		return 0, err
	}
	for i := 0; i < int(n); i++ {
		if err := each(r, i); err != nil {
			return i, err
		}
	}
	return int(n), nil
}
