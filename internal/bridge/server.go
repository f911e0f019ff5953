package bridge

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/codefionn/wsbridge/internal/config"
	"github.com/codefionn/wsbridge/internal/consts"
	"github.com/codefionn/wsbridge/internal/logger"
	"github.com/codefionn/wsbridge/internal/protocol"
)

// Server binds the candidate port list on the configured host and keeps
// every successful listener open concurrently. Each accepted connection
// becomes an independent Client session.
type Server struct {
	cfg         *config.Config
	handler     *Handler
	codec       *protocol.FrameCodec
	readTimeout time.Duration

	listeners []net.Listener

	// Connection tracking
	connMu   sync.RWMutex
	clients  map[string]*Client
	maxConns int

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	acceptWG sync.WaitGroup

	// Connection ID counter
	connIDCounter int
	connIDMu      sync.Mutex
}

// NewServer creates a bridge server. The handler carries the immutable
// identity and workspace filesystem shared by all sessions.
func NewServer(cfg *config.Config, handler *Handler) *Server {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = consts.DefaultMaxConnections
	}

	readTimeout := time.Duration(cfg.ReadTimeoutSeconds) * time.Second
	if readTimeout <= 0 {
		readTimeout = consts.ReadTimeout
	}

	return &Server{
		cfg:         cfg,
		handler:     handler,
		codec:       protocol.NewFrameCodec(cfg.MaxFrameBytes),
		readTimeout: readTimeout,
		clients:     make(map[string]*Client),
		maxConns:    maxConns,
		stopChan:    make(chan struct{}),
	}
}

// Start binds the candidate ports in order and launches an accept loop
// per successful bind. Individual bind failures are logged and skipped;
// the start fails only when every candidate port is unavailable.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	for _, port := range s.cfg.Ports {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Warn("failed to bind %s, skipping: %v", addr, err)
			continue
		}
		s.listeners = append(s.listeners, listener)
		logger.Info("listening on %s", listener.Addr())
	}

	if len(s.listeners) == 0 {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to bind any candidate port %v on %s", s.cfg.Ports, s.cfg.Host)
	}

	for _, listener := range s.listeners {
		s.acceptWG.Add(1)
		go s.acceptLoop(ctx, listener)
	}

	logger.Info("bridge server started on %d port(s) (workspace: %s, max connections: %d)",
		len(s.listeners), s.handler.fs.Root().Path(), s.maxConns)
	return nil
}

// Stop closes every listener, waits for the accept loops, and shuts
// down the remaining sessions.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		logger.Info("stopping bridge server...")

		close(s.stopChan)

		for _, listener := range s.listeners {
			if err := listener.Close(); err != nil {
				logger.Error("error closing listener %s: %v", listener.Addr(), err)
			}
		}

		s.acceptWG.Wait()

		s.connMu.RLock()
		clients := make([]*Client, 0, len(s.clients))
		for _, client := range s.clients {
			clients = append(clients, client)
		}
		s.connMu.RUnlock()
		for _, client := range clients {
			client.Stop()
		}

		// Let in-flight disconnect handling settle.
		time.Sleep(consts.ShutdownGrace)

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		logger.Info("bridge server stopped")
	})

	return nil
}

// Addrs returns the bound listener addresses.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, listener := range s.listeners {
		addrs = append(addrs, listener.Addr())
	}
	return addrs
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ClientCount returns the number of active sessions.
func (s *Server) ClientCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.clients)
}

// acceptLoop accepts connections on one listener until shutdown
func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	defer s.acceptWG.Done()

	for {
		select {
		case <-ctx.Done():
			logger.Info("accept loop for %s stopped via context", listener.Addr())
			return
		case <-s.stopChan:
			return
		default:
		}

		// Bounded accept so shutdown is noticed promptly.
		if tcpListener, ok := listener.(*net.TCPListener); ok {
			tcpListener.SetDeadline(time.Now().Add(consts.AcceptPollInterval))
		}

		conn, err := listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.stopChan:
				return
			default:
			}
			logger.Error("error accepting connection on %s: %v", listener.Addr(), err)
			continue
		}

		if !s.checkConnectionLimit() {
			logger.Warn("connection limit reached (%d), rejecting %s", s.maxConns, conn.RemoteAddr())
			conn.Close()
			continue
		}

		clientID := s.generateConnectionID()
		client := NewClient(clientID, conn, s.handler, s.codec, s.readTimeout, s.untrackClient)
		s.trackClient(clientID, client)
		client.Start(ctx)
	}
}

// checkConnectionLimit reports whether another session may start
func (s *Server) checkConnectionLimit() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.clients) < s.maxConns
}

func (s *Server) trackClient(clientID string, client *Client) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.clients[clientID] = client
}

func (s *Server) untrackClient(clientID string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.clients, clientID)
}

// generateConnectionID generates a unique connection ID
func (s *Server) generateConnectionID() string {
	s.connIDMu.Lock()
	defer s.connIDMu.Unlock()
	s.connIDCounter++
	return fmt.Sprintf("conn_%d", s.connIDCounter)
}
