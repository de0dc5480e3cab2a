package wire

// Encodable is implemented by every request, response, and nested message
// type so it can serialize itself onto a Writer.
type Encodable interface {
	Encode(w *Writer)
}

// Decodable is implemented by every request, response, and nested message
// type so it can populate itself from a Reader. A non-nil error always
// means the input was malformed; internal/protocol maps this to a
// ProtocolViolation response.
type Decodable interface {
	Decode(r *Reader) error
}

// Marshal encodes v and returns the unframed message body; WriteFrame adds
// the frame header.
func Marshal(v Encodable) []byte {
	w := NewWriter()
	v.Encode(w)
	return w.Bytes()
}

// Unmarshal decodes body into v.
func Unmarshal(body []byte, v Decodable) error {
	return v.Decode(NewReader(body))
}
