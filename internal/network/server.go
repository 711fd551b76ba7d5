// Package network binds the TCP listener commands arrive on: connection
// admission, the optional WebSocket upgrade handshake, and handing each
// connection's command stream to the SystemCoordinator.
package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/control-server/internal/config"
	"github.com/breeze-rmm/control-server/internal/coordinator"
	"github.com/breeze-rmm/control-server/internal/logging"
	"github.com/breeze-rmm/control-server/internal/workerpool"
)

var log = logging.L("network")

// Server is a TCP listener that admits connections up to cfg.MaxConnections,
// dispatching each one's command stream into a Coordinator.
type Server struct {
	cfg   *config.Config
	coord *coordinator.Coordinator

	listener net.Listener
	pool     *workerpool.Pool

	connMu      sync.RWMutex
	connections map[string]net.Addr

	running  atomic.Bool
	stopOnce sync.Once
}

// New returns a Server bound to cfg's address/port once Start is called.
func New(cfg *config.Config, coord *coordinator.Coordinator) *Server {
	return &Server{
		cfg:         cfg,
		coord:       coord,
		connections: make(map[string]net.Addr),
		pool:        workerpool.New(cfg.MaxConnections, cfg.MaxConnections),
	}
}

// Start binds the listening socket and spawns the accept loop in the
// background, returning once the socket is bound. Addr() reports the
// actual bound address, which matters when Port is 0.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind to %s: %w", addr, err)
	}
	s.listener = ln
	s.running.Store(true)

	log.Info("network listener started", "address", ln.Addr().String())
	go s.acceptLoop()
	return nil
}

// Addr returns the listener's bound address. Valid only after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ActiveConnections returns the current number of admitted connections.
func (s *Server) ActiveConnections() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

// Shutdown flips the running flag so the accept loop exits at its next
// iteration, clears the connection table, and drains in-flight connection
// handlers up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})

	s.connMu.Lock()
	s.connections = make(map[string]net.Addr)
	s.connMu.Unlock()

	s.pool.Shutdown(ctx)
	log.Info("network listener stopped")
}

func (s *Server) acceptLoop() {
	for {
		if !s.running.Load() {
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			log.Warn("accept failed", "error", err)
			continue
		}

		if s.ActiveConnections() >= s.cfg.MaxConnections {
			go rejectConnection(conn)
			continue
		}

		connID := conn.RemoteAddr().String()
		s.connMu.Lock()
		s.connections[connID] = conn.RemoteAddr()
		s.connMu.Unlock()

		submitted := s.pool.Submit(func() {
			defer s.removeConnection(connID)
			s.handleConnection(conn)
		})
		if !submitted {
			log.Warn("connection pool saturated, rejecting", "connId", connID)
			s.removeConnection(connID)
			go rejectConnection(conn)
		}
	}
}

func (s *Server) removeConnection(connID string) {
	s.connMu.Lock()
	delete(s.connections, connID)
	s.connMu.Unlock()
}

// connectionTimeout returns the configured idle read timeout, defaulting to
// 60s when unset so a misconfigured zero value doesn't disable it entirely.
func (s *Server) connectionTimeout() time.Duration {
	if s.cfg.ConnectionTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.cfg.ConnectionTimeoutSeconds) * time.Second
}
