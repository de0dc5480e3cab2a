package protocol

import (
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/wire"
)

// Request is the top-level envelope for every request a peer sends.
// Body carries the wire-encoded inner message (see messages.go),
// opaque at this layer so the envelope can be decoded before the
// specific message type's shape is known.
type Request struct {
	MessageID uint32
	Type      MessageType
	Kind      Kind

	// Version is meaningful only for Kind == KindSingle; only
	// SingleRequests carry a protocol version.
	Version model.Version

	// Signature is meaningful only for Kind == KindConversation and may
	// be absent (nil) for requests the state machine does not require a
	// signature for.
	Signature []byte

	Body []byte
}

func (req *Request) Encode(w *wire.Writer) {
	w.PutUint32(req.MessageID)
	w.PutUint8(uint8(req.Type))
	w.PutUint8(uint8(req.Kind))
	if req.Kind == KindSingle {
		w.PutUint8(req.Version.Major)
		w.PutUint8(req.Version.Minor)
		w.PutUint8(req.Version.Patch)
	} else {
		w.PutOptional(len(req.Signature) > 0, func(w *wire.Writer) {
			w.PutBytes(req.Signature)
		})
	}
	w.PutBytes(req.Body)
}

func (req *Request) Decode(r *wire.Reader) error {
	var err error
	if req.MessageID, err = r.GetUint32(); err != nil {
		return err
	}
	t, err := r.GetUint8()
	if err != nil {
		return err
	}
	req.Type = MessageType(t)

	k, err := r.GetUint8()
	if err != nil {
		return err
	}
	req.Kind = Kind(k)

	if req.Kind == KindSingle {
		major, err := r.GetUint8()
		if err != nil {
			return err
		}
		minor, err := r.GetUint8()
		if err != nil {
			return err
		}
		patch, err := r.GetUint8()
		if err != nil {
			return err
		}
		req.Version = model.Version{Major: major, Minor: minor, Patch: patch}
	} else {
		if _, err := r.GetOptional(func(r *wire.Reader) error {
			sig, err := r.GetBytes()
			if err != nil {
				return err
			}
			req.Signature = sig
			return nil
		}); err != nil {
			return err
		}
	}

	body, err := r.GetBytes()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

// Response is the top-level envelope for every reply this node sends,
// whether answering a peer's request or relaying the peer's answer to a
// request this node originated.
type Response struct {
	MessageID uint32
	Status    model.StatusCode

	// Details carries the offending field name for InvalidValue, or is
	// empty for every other status.
	Details string

	Body []byte
}

func (resp *Response) Encode(w *wire.Writer) {
	w.PutUint32(resp.MessageID)
	w.PutUint8(uint8(resp.Status))
	w.PutString(resp.Details)
	w.PutBytes(resp.Body)
}

func (resp *Response) Decode(r *wire.Reader) error {
	var err error
	if resp.MessageID, err = r.GetUint32(); err != nil {
		return err
	}
	status, err := r.GetUint8()
	if err != nil {
		return err
	}
	resp.Status = model.StatusCode(status)

	if resp.Details, err = r.GetString(); err != nil {
		return err
	}
	if resp.Body, err = r.GetBytes(); err != nil {
		return err
	}
	return nil
}

// protocolViolation builds the reserved-message-id response sent when a
// frame cannot be attributed to any request.
func protocolViolation() *Response {
	return &Response{
		MessageID: model.ProtocolViolationMessageID,
		Status:    model.StatusProtocolViolation,
	}
}
