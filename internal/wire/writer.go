package wire

import (
	"bytes"
	"encoding/binary"
)

// Writer builds a message body as a sequence of untagged values.
// Every message type implements Encode(*Writer) to append its fields in a
// fixed order; the wire format carries no field names, only values.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer ready to accept field writes.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated body. The Writer remains usable afterward.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// PutUint8 appends a single byte.
func (w *Writer) PutUint8(v uint8) {
	w.buf.WriteByte(v)
}

// PutBool appends a boolean as a single byte (0 or 1).
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// PutUint32 appends a 32-bit unsigned integer, little-endian.
func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// PutInt32 appends a 32-bit signed integer, little-endian two's complement.
func (w *Writer) PutInt32(v int32) {
	w.PutUint32(uint32(v))
}

// PutUint64 appends a 64-bit unsigned integer, little-endian.
func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// PutBytes appends a length-prefixed byte slice. There is no alignment
// padding: the next field begins immediately after the data.
func (w *Writer) PutBytes(v []byte) {
	w.PutUint32(uint32(len(v)))
	w.buf.Write(v)
}

// PutFixed appends raw bytes with no length prefix, for fields whose size
// is fixed by the schema (e.g. a 32-byte public key or identity id).
func (w *Writer) PutFixed(v []byte) {
	w.buf.Write(v)
}

// PutString appends a length-prefixed UTF-8 string.
func (w *Writer) PutString(v string) {
	w.PutBytes([]byte(v))
}

// PutOptional writes the presence flag, then calls write if present.
func (w *Writer) PutOptional(present bool, write func(w *Writer)) {
	w.PutBool(present)
	if present {
		write(w)
	}
}

// PutList writes a count prefix followed by n elements, each produced by
// calling each(i) for i in [0, n).
func (w *Writer) PutList(n int, each func(w *Writer, i int)) {
	w.PutUint32(uint32(n))
	for i := 0; i < n; i++ {
		each(w, i)
	}
}
