package server

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/idhost/internal/images"
	"github.com/marmos91/idhost/internal/logger"
	"github.com/marmos91/idhost/internal/metrics"
	"github.com/marmos91/idhost/internal/protocol"
	"github.com/marmos91/idhost/internal/registry"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/store"
)

// Deps bundles every shared dependency a RoleServer's connections need.
type Deps struct {
	Registry *registry.Registry
	Store    *store.Store
	Images   images.Store
	Relays   *relay.Manager
	Tracker  *Tracker

	ServerPublicKey  ed25519.PublicKey
	ServerPrivateKey ed25519.PrivateKey

	MaxHostedIdentities  int
	MaxIdentityRelations int
	MaxFollowerServers   int
}

// Config is one listening port's configuration: its bind address, the
// role set it serves, and whether it requires TLS. A port maps to one
// role server and encryption is uniform per port.
type Config struct {
	BindAddress string
	Port        int
	Roles       protocol.RoleSet
	TLSConfig   *tls.Config // nil means plaintext

	MaxConnections  int
	ShutdownTimeout time.Duration
}

// RoleServer is a TCP/TLS listener bound to Config.Roles, accepting
// connections and handing each to its own read loop: semaphore-limited
// accept loop, WaitGroup-tracked active connections, sync.Once
// shutdown, forced-close fallback on timeout.
type RoleServer struct {
	config Config
	deps   *Deps

	listener   net.Listener
	listenerMu sync.RWMutex

	activeConns    sync.WaitGroup
	connCount      atomic.Int32
	connSemaphore  chan struct{}
	activeConnSet  sync.Map // net.Conn -> struct{}
	shutdown       chan struct{}
	shutdownOnce   sync.Once
	listenerReady  chan struct{}
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// New returns a RoleServer ready to Serve.
func New(config Config, deps *Deps) *RoleServer {
	var sem chan struct{}
	if config.MaxConnections > 0 {
		sem = make(chan struct{}, config.MaxConnections)
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())

	return &RoleServer{
		config:         config,
		deps:           deps,
		connSemaphore:  sem,
		shutdown:       make(chan struct{}),
		listenerReady:  make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
	}
}

// Serve listens and accepts connections until ctx is cancelled or Stop
// is called, then runs graceful shutdown. It blocks until shutdown
// completes.
func (s *RoleServer) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)

	var listener net.Listener
	var err error
	if s.config.TLSConfig != nil {
		listener, err = tls.Listen("tcp", addr, s.config.TLSConfig)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("server: role listener started", "address", addr, "encrypted", s.config.TLSConfig != nil)

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("server: accept error", "error", err)
				continue
			}
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)
		s.activeConnSet.Store(conn, struct{}{})

		portLabel := fmt.Sprintf("%d", s.config.Port)
		metrics.RecordConnectionAccepted(portLabel)

		go func(c net.Conn) {
			defer func() {
				s.activeConnSet.Delete(c)
				s.activeConns.Done()
				s.connCount.Add(-1)
				metrics.RecordConnectionClosed(portLabel)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
			}()

			connection := newConnection(c, s.config.Roles, s.deps)
			connection.Serve(s.shutdownCtx)
		}(conn)
	}
}

func (s *RoleServer) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.listenerMu.Unlock()

		deadline := time.Now().Add(100 * time.Millisecond)
		s.activeConnSet.Range(func(key, _ any) bool {
			if conn, ok := key.(net.Conn); ok {
				_ = conn.SetReadDeadline(deadline)
			}
			return true
		})

		s.cancelRequests()
	})
}

func (s *RoleServer) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		s.activeConnSet.Range(func(key, _ any) bool {
			if conn, ok := key.(net.Conn); ok {
				_ = conn.Close()
			}
			return true
		})
		return fmt.Errorf("server: shutdown timeout, %d connections force-closed", remaining)
	}
}

// Stop initiates graceful shutdown and waits for it to complete or ctx
// to be cancelled.
func (s *RoleServer) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr blocks until the listener is bound and returns its address.
func (s *RoleServer) Addr() string {
	<-s.listenerReady
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveConnections returns the current connection count.
func (s *RoleServer) ActiveConnections() int32 {
	return s.connCount.Load()
}
