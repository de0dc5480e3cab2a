package protocol

import (
	"fmt"
	"io"

	"github.com/marmos91/idhost/internal/wire"
)

// Direction is the leading byte of every frame body, distinguishing a
// Request from a Response the way an RPC message's msg_type
// discriminates CALL from REPLY. It is needed because a connection is
// bidirectional: a peer's frame may be a reply to a node-initiated
// notification (IncomingCallNotification, AppServiceReceiveMessageNotification)
// rather than a request this node must dispatch.
type Direction uint8

const (
	DirRequest Direction = iota
	DirResponse
)

// WriteRequest frames and writes req to w.
func WriteRequest(w io.Writer, req *Request) error {
	wr := wire.NewWriter()
	wr.PutUint8(uint8(DirRequest))
	req.Encode(wr)
	return wire.WriteFrame(w, wire.TagMessage, wr.Bytes())
}

// WriteResponse frames and writes resp to w.
func WriteResponse(w io.Writer, resp *Response) error {
	wr := wire.NewWriter()
	wr.PutUint8(uint8(DirResponse))
	resp.Encode(wr)
	return wire.WriteFrame(w, wire.TagMessage, wr.Bytes())
}

// ReadMessage reads one frame from r and decodes it as either a Request
// or a Response, returning whichever is present and a nil other.
func ReadMessage(r io.Reader) (*Request, *Response, error) {
	_, body, err := wire.ReadFrame(r)
	if err != nil {
		return nil, nil, err
	}

	rd := wire.NewReader(body)
	dir, err := rd.GetUint8()
	if err != nil {
		return nil, nil, err
	}

	switch Direction(dir) {
	case DirRequest:
		req := &Request{}
		if err := req.Decode(rd); err != nil {
			return nil, nil, err
		}
		return req, nil, nil
	case DirResponse:
		resp := &Response{}
		if err := resp.Decode(rd); err != nil {
			return nil, nil, err
		}
		return nil, resp, nil
	default:
		return nil, nil, fmt.Errorf("protocol: unknown frame direction %d", dir)
	}
}
