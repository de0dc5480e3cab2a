package directory

import (
	"math"

	"github.com/marmos91/idhost/internal/wire"
)

// messageType tags the small, fixed request/response/notification schema
// this node's directory channel speaks, distinct from internal/protocol's
// peer-facing message catalog since the directory is a different party
// entirely.
type messageType uint8

const (
	msgRegisterService messageType = iota + 1
	msgDeregisterService
	msgGetNeighborNodesByDistance
	msgNeighborhoodChanged
)

func floatBits(f float64) uint64  { return math.Float64bits(f) }
func bitsFloat(b uint64) float64 { return math.Float64frombits(b) }

// NodeInfo describes one neighbor node as reported by the directory.
type NodeInfo struct {
	NodeID      string
	Address     string
	Port        uint32
	DistanceKM  float64
	HomeNodeIDs []string
}

func (n *NodeInfo) Encode(w *wire.Writer) {
	w.PutString(n.NodeID)
	w.PutString(n.Address)
	w.PutUint32(n.Port)
	w.PutUint64(floatBits(n.DistanceKM))
	w.PutList(len(n.HomeNodeIDs), func(w *wire.Writer, i int) {
		w.PutString(n.HomeNodeIDs[i])
	})
}

func (n *NodeInfo) Decode(r *wire.Reader) error {
	var err error
	if n.NodeID, err = r.GetString(); err != nil {
		return err
	}
	if n.Address, err = r.GetString(); err != nil {
		return err
	}
	if n.Port, err = r.GetUint32(); err != nil {
		return err
	}
	bits, err := r.GetUint64()
	if err != nil {
		return err
	}
	n.DistanceKM = bitsFloat(bits)
	_, err = r.GetList(func(r *wire.Reader, i int) error {
		v, err := r.GetString()
		if err != nil {
			return err
		}
		n.HomeNodeIDs = append(n.HomeNodeIDs, v)
		return nil
	})
	return err
}

// ---- RegisterService ------------------------------------------------------

type registerServiceRequest struct {
	ServerID string
	Port     uint32
}

func (m *registerServiceRequest) Encode(w *wire.Writer) {
	w.PutString(m.ServerID)
	w.PutUint32(m.Port)
}

func (m *registerServiceRequest) Decode(r *wire.Reader) error {
	var err error
	if m.ServerID, err = r.GetString(); err != nil {
		return err
	}
	m.Port, err = r.GetUint32()
	return err
}

type registerServiceResponse struct {
	Accepted bool
}

func (m *registerServiceResponse) Encode(w *wire.Writer) { w.PutBool(m.Accepted) }
func (m *registerServiceResponse) Decode(r *wire.Reader) error {
	v, err := r.GetBool()
	m.Accepted = v
	return err
}

// ---- DeregisterService -----------------------------------------------------

type deregisterServiceRequest struct {
	ServerID string
}

func (m *deregisterServiceRequest) Encode(w *wire.Writer) { w.PutString(m.ServerID) }
func (m *deregisterServiceRequest) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.ServerID = v
	return err
}

type deregisterServiceResponse struct{}

func (m *deregisterServiceResponse) Encode(w *wire.Writer)       {}
func (m *deregisterServiceResponse) Decode(r *wire.Reader) error { return nil }

// ---- GetNeighborNodesByDistance --------------------------------------------

type getNeighborNodesByDistanceRequest struct {
	KeepAlive bool
}

func (m *getNeighborNodesByDistanceRequest) Encode(w *wire.Writer) { w.PutBool(m.KeepAlive) }
func (m *getNeighborNodesByDistanceRequest) Decode(r *wire.Reader) error {
	v, err := r.GetBool()
	m.KeepAlive = v
	return err
}

type getNeighborNodesByDistanceResponse struct {
	Nodes []NodeInfo
}

func (m *getNeighborNodesByDistanceResponse) Encode(w *wire.Writer) {
	w.PutList(len(m.Nodes), func(w *wire.Writer, i int) {
		m.Nodes[i].Encode(w)
	})
}

func (m *getNeighborNodesByDistanceResponse) Decode(r *wire.Reader) error {
	_, err := r.GetList(func(r *wire.Reader, i int) error {
		var n NodeInfo
		if err := n.Decode(r); err != nil {
			return err
		}
		m.Nodes = append(m.Nodes, n)
		return nil
	})
	return err
}

// ---- NeighborhoodChangedNotification ----------------------------------------

// neighborhoodChangedNotification is unsolicited: the directory pushes it
// whenever keepAlive was requested and the neighborhood membership
// shifts.
type neighborhoodChangedNotification struct {
	Added   []NodeInfo
	Removed []string // node ids
}

func (m *neighborhoodChangedNotification) Encode(w *wire.Writer) {
	w.PutList(len(m.Added), func(w *wire.Writer, i int) {
		m.Added[i].Encode(w)
	})
	w.PutList(len(m.Removed), func(w *wire.Writer, i int) {
		w.PutString(m.Removed[i])
	})
}

func (m *neighborhoodChangedNotification) Decode(r *wire.Reader) error {
	if _, err := r.GetList(func(r *wire.Reader, i int) error {
		var n NodeInfo
		if err := n.Decode(r); err != nil {
			return err
		}
		m.Added = append(m.Added, n)
		return nil
	}); err != nil {
		return err
	}
	_, err := r.GetList(func(r *wire.Reader, i int) error {
		v, err := r.GetString()
		if err != nil {
			return err
		}
		m.Removed = append(m.Removed, v)
		return nil
	})
	return err
}

// encodeMessage frames typ and body as a single wire.TagMessage frame: one
// type byte followed by the body's own encoding, mirroring
// internal/protocol/frame.go's direction-tagging approach at a coarser
// grain (the directory channel has no separate request/response envelope,
// just a type-tagged body).
func encodeMessage(typ messageType, body wire.Encodable) []byte {
	w := wire.NewWriter()
	w.PutUint8(uint8(typ))
	body.Encode(w)
	return w.Bytes()
}
