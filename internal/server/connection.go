package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/idhost/internal/logger"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/protocol"
	"github.com/marmos91/idhost/internal/session"
	"github.com/marmos91/idhost/internal/wire"
)

// Connection is one accepted TCP/TLS connection carrying a single
// conversation session for the lifetime of the socket.
type Connection struct {
	conn    net.Conn
	roles   protocol.RoleSet
	session *session.Session
	deps    *Deps

	writeMu sync.Mutex
	nextID  atomic.Uint32
}

func newConnection(conn net.Conn, roles protocol.RoleSet, deps *Deps) *Connection {
	return &Connection{
		conn:    conn,
		roles:   roles,
		session: session.New(conn.RemoteAddr()),
		deps:    deps,
	}
}

// Serve runs the connection's read loop until the peer disconnects, a
// read error occurs, ctx is cancelled, or the session's force-disconnect
// flag is set.
func (c *Connection) Serve(ctx context.Context) {
	c.deps.Registry.Add(c.conn, c.session)
	c.deps.Tracker.register(c.session, c)

	defer func() {
		c.deps.Tracker.unregister(c.session)
		c.deps.Registry.Remove(c.conn)
		c.deps.Relays.DestroyBySession(c.session)
		_ = c.conn.Close()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if c.session.ShouldDisconnect() {
			return
		}

		_ = c.conn.SetReadDeadline(deadlineFor(model.KeepAliveInterval * 2))

		req, resp, err := protocol.ReadMessage(c.conn)
		if err != nil {
			if !isExpectedCloseError(err) {
				logger.Debug("server: connection read error", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}
		c.session.Touch()

		switch {
		case req != nil:
			c.handleRequest(ctx, req)
		case resp != nil:
			c.handleResponse(ctx, resp)
		}
	}
}

func (c *Connection) handleRequest(ctx context.Context, req *protocol.Request) {
	hc := &protocol.HandlerContext{
		Ctx:      ctx,
		Session:  c.session,
		Roles:    c.roles,
		Registry: c.deps.Registry,
		Store:    c.deps.Store,
		Images:   c.deps.Images,
		Relays:   c.deps.Relays,
		Notifier: c.deps.Tracker,

		ServerPublicKey:  c.deps.ServerPublicKey,
		ServerPrivateKey: c.deps.ServerPrivateKey,

		MaxHostedIdentities:  c.deps.MaxHostedIdentities,
		MaxIdentityRelations: c.deps.MaxIdentityRelations,
		MaxFollowerServers:   c.deps.MaxFollowerServers,
	}

	resp := protocol.Dispatch(hc, req)
	if resp == nil {
		// Handler deferred its reply; a later
		// event answers this request instead of writing anything now.
		return
	}
	if err := c.writeResponse(resp); err != nil {
		logger.Debug("server: failed writing response", "remote", c.conn.RemoteAddr(), "error", err)
	}
}

// handleResponse correlates a peer's reply to a request this node
// originated (a notification sent via Tracker.Notify). A callee's reply to
// an IncomingCallNotification completes the deferred CallIdentityAppService
// handshake: Ok accepts the relay and answers
// the caller with its token, anything else destroys the relay and answers
// the caller with Rejected. An unmatched response is logged and dropped
// rather than treated as a protocol violation, since the pending-request
// table may have already evicted it.
func (c *Connection) handleResponse(ctx context.Context, resp *protocol.Response) {
	pending, ok := c.session.TakePending(resp.MessageID)
	if !ok {
		logger.Debug("server: response for unknown pending request", "remote", c.conn.RemoteAddr(), "message_id", resp.MessageID)
		return
	}

	if protocol.MessageType(pending.InnerType) != protocol.MsgIncomingCallNotification || pending.Token == "" {
		return
	}

	r, found := c.deps.Relays.Lookup(pending.Token)
	if !found {
		return
	}

	if resp.Status == model.StatusOk {
		if err := c.deps.Relays.Accept(r); err != nil {
			return
		}
		callerResp := &protocol.Response{
			MessageID: r.CallerMessageID,
			Status:    model.StatusOk,
			Body:      wire.Marshal(&protocol.CallIdentityAppServiceResponse{CallerToken: r.CallerToken}),
		}
		if err := c.deps.Tracker.Respond(ctx, r.Caller, callerResp); err != nil {
			logger.Debug("server: failed delivering deferred call response", "error", err)
		}
		return
	}

	c.deps.Relays.Destroy(r)
	callerResp := &protocol.Response{MessageID: r.CallerMessageID, Status: model.StatusRejected}
	if err := c.deps.Tracker.Respond(ctx, r.Caller, callerResp); err != nil {
		logger.Debug("server: failed delivering deferred call response", "error", err)
	}
}

func (c *Connection) writeResponse(resp *protocol.Response) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteResponse(c.conn, resp)
}

// sendRequest allocates a message id, records it as a pending
// node-originated request, and writes the Request frame.
func (c *Connection) sendRequest(msgType protocol.MessageType, token string, body []byte) error {
	id := c.nextID.Add(1)
	for id == model.ProtocolViolationMessageID || id == 0 {
		id = c.nextID.Add(1)
	}

	c.session.AddPending(session.PendingRequest{
		MessageID: id,
		InnerType: uint8(msgType),
		Token:     token,
		CreatedAt: time.Now(),
	})

	req := &protocol.Request{
		MessageID: id,
		Type:      msgType,
		Kind:      protocol.KindConversation,
		Body:      body,
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteRequest(c.conn, req)
}

func isExpectedCloseError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

func deadlineFor(d time.Duration) time.Time {
	return time.Now().Add(d)
}
