// Package wire implements the node's length-prefixed binary framing and
// the tagged structural encoding used for every request and response body.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameHeaderSize is the fixed size of a frame header: one tag byte
// followed by a little-endian uint32 body length.
const FrameHeaderSize = 5

// MaxBodySize is the largest body a frame may carry. A header declaring a
// longer body is a fatal framing error.
const MaxBodySize = 1 << 20 // 1,048,576 bytes

// TagMessage is the only frame tag currently defined: the body is a
// top-level Request/Response union.
const TagMessage byte = 1

// ErrBodyTooLarge is returned when a frame header declares a body larger
// than MaxBodySize.
var ErrBodyTooLarge = fmt.Errorf("wire: body length exceeds maximum of %d bytes", MaxBodySize)

// ErrUnknownTag is returned when a frame header carries a tag this node
// does not recognize.
var ErrUnknownTag = errors.New("wire: unknown frame tag")

// ReadFrame reads one frame from r and returns its tag and body. It
// blocks until a full header and body have been read, or returns an error
// on a short read, an oversized body, or an unknown tag.
func ReadFrame(r io.Reader) (tag byte, body []byte, err error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	tag = header[0]
	if tag != TagMessage {
		return 0, nil, ErrUnknownTag
	}

	bodyLen := binary.LittleEndian.Uint32(header[1:5])
	if bodyLen > MaxBodySize {
		return 0, nil, ErrBodyTooLarge
	}

	body = make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	return tag, body, nil
}

// WriteFrame writes one frame with the given tag and body to w.
func WriteFrame(w io.Writer, tag byte, body []byte) error {
	if len(body) > MaxBodySize {
		return ErrBodyTooLarge
	}

	var header [FrameHeaderSize]byte
	header[0] = tag
	binary.LittleEndian.PutUint32(header[1:5], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
