package directory

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/idhost/internal/logger"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/wire"
)

// Config configures the outbound connection to the colocated directory
// service. The directory is a trusted local collaborator,
// not a peer node, so the channel is plain TCP.
type Config struct {
	// Endpoint is the directory's "host:port" address.
	Endpoint string

	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration
}

// ApplyDefaults fills unset fields with conservative connection-setup
// defaults.
func (c *Config) ApplyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// pendingCall is how Client correlates a synchronous request with the
// response that eventually arrives on the single shared read loop,
// mirroring internal/server/connection.go's sendRequest/handleResponse
// pairing at a smaller scale (the directory channel carries no message
// ids, so only one call may be outstanding at a time).
type pendingCall struct {
	replyCh chan []byte
}

// Client speaks the directory's small request/response/notification
// protocol over a single long-lived net.Conn. Its read loop runs in
// client orientation: blocking
// frame-reads are dispatched either to a waiting call or, for unsolicited
// NeighborhoodChangedNotification pushes, straight into the store's
// neighbor-mirror section.
type Client struct {
	cfg   Config
	store *store.Store

	callMu sync.Mutex

	mu      sync.Mutex
	conn    net.Conn
	pending *pendingCall
	closed  bool

	wg sync.WaitGroup
}

// Dial opens the connection and starts the background read loop. st is
// the profile store whose neighbor-mirror section is updated by
// unsolicited pushes.
func Dial(ctx context.Context, cfg Config, st *store.Store) (*Client, error) {
	cfg.ApplyDefaults()

	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("directory: dial %s: %w", cfg.Endpoint, err)
	}

	c := &Client{cfg: cfg, store: st, conn: conn}
	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// Close shuts down the connection and stops the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	err := conn.Close()
	c.wg.Wait()
	return err
}

// call sends a framed request and blocks for the single corresponding
// reply. Only one call may be outstanding at a time; concurrent callers
// serialize behind callMu.
var errClientClosed = fmt.Errorf("directory: client closed")

func (c *Client) call(typ messageType, req wire.Encodable) ([]byte, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errClientClosed
	}
	replyCh := make(chan []byte, 1)
	c.pending = &pendingCall{replyCh: replyCh}
	conn := c.conn
	c.mu.Unlock()

	body := encodeMessage(typ, req)
	if err := wire.WriteFrame(conn, wire.TagMessage, body); err != nil {
		return nil, fmt.Errorf("directory: write request: %w", err)
	}

	reply, ok := <-replyCh
	if !ok {
		return nil, errClientClosed
	}
	return reply, nil
}

// RegisterService announces this node's hosting service to the
// directory.
func (c *Client) RegisterService(serverID string, port uint32) error {
	reply, err := c.call(msgRegisterService, &registerServiceRequest{ServerID: serverID, Port: port})
	if err != nil {
		return err
	}
	var resp registerServiceResponse
	if err := resp.Decode(wire.NewReader(reply)); err != nil {
		return fmt.Errorf("directory: decode registerService response: %w", err)
	}
	if !resp.Accepted {
		return fmt.Errorf("directory: registration rejected")
	}
	return nil
}

// DeregisterService withdraws this node from the directory, normally
// called during graceful shutdown.
func (c *Client) DeregisterService(serverID string) error {
	reply, err := c.call(msgDeregisterService, &deregisterServiceRequest{ServerID: serverID})
	if err != nil {
		return err
	}
	var resp deregisterServiceResponse
	return resp.Decode(wire.NewReader(reply))
}

// GetNeighborNodesByDistance requests the current neighborhood. When
// keepAlive is true, the directory keeps pushing
// NeighborhoodChangedNotification messages on this same connection as
// membership shifts; the read loop applies them to the store without
// further action from the caller.
func (c *Client) GetNeighborNodesByDistance(keepAlive bool) ([]NodeInfo, error) {
	reply, err := c.call(msgGetNeighborNodesByDistance, &getNeighborNodesByDistanceRequest{KeepAlive: keepAlive})
	if err != nil {
		return nil, err
	}
	var resp getNeighborNodesByDistanceResponse
	if err := resp.Decode(wire.NewReader(reply)); err != nil {
		return nil, fmt.Errorf("directory: decode getNeighborNodesByDistance response: %w", err)
	}
	return resp.Nodes, nil
}

// readLoop blocks reading frames until the connection closes, routing
// each one either to the outstanding call or, for an unsolicited
// notification, into the store.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.drainPending()

	for {
		_, body, err := wire.ReadFrame(c.conn)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				logger.Warn("directory connection read failed", "error", err)
			}
			return
		}

		r := wire.NewReader(body)
		typ, err := r.GetUint8()
		if err != nil {
			logger.Warn("directory: malformed message header", "error", err)
			continue
		}

		if messageType(typ) == msgNeighborhoodChanged {
			var n neighborhoodChangedNotification
			if err := n.Decode(r); err != nil {
				logger.Warn("directory: malformed neighborhood notification", "error", err)
				continue
			}
			c.applyNeighborhoodChange(&n)
			continue
		}

		rest, err := r.GetFixed(r.Remaining())
		if err != nil {
			logger.Warn("directory: failed to read reply body", "error", err)
			continue
		}
		c.deliverReply(rest)
	}
}

func (c *Client) deliverReply(body []byte) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending == nil {
		logger.Warn("directory: reply received with no outstanding call")
		return
	}
	pending.replyCh <- body
	close(pending.replyCh)
}

func (c *Client) drainPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	if pending != nil {
		close(pending.replyCh)
	}
}

// applyNeighborhoodChange mirrors an unsolicited push into the store:
// added nodes' home identities become (minimal) NeighborIdentity rows and
// removed node ids have their mirrored identities purged.
func (c *Client) applyNeighborhoodChange(n *neighborhoodChangedNotification) {
	ctx := context.Background()

	for _, node := range n.Added {
		for _, identityID := range node.HomeNodeIDs {
			row := &store.NeighborIdentity{
				IdentityID: identityID,
				HomeNodeID: node.NodeID,
				UpdatedAt:  time.Now(),
			}
			if err := c.store.UpsertNeighbor(ctx, row); err != nil {
				logger.Warn("directory: failed to mirror neighbor identity", "identity_id", identityID, "home_node_id", node.NodeID, "error", err)
			}
		}
	}

	for _, nodeID := range n.Removed {
		if _, err := c.store.PurgeNeighborsByHomeNode(ctx, nodeID); err != nil {
			logger.Warn("directory: failed to purge neighbors for removed node", "node_id", nodeID, "error", err)
		}
	}
}
