package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/auth"
	"github.com/mingodad/libnavajo/internal/discovery"
	"github.com/mingodad/libnavajo/internal/logging"
	"github.com/mingodad/libnavajo/internal/metrics"
	"github.com/mingodad/libnavajo/internal/netaddr"
	"github.com/mingodad/libnavajo/internal/pool"
	"github.com/mingodad/libnavajo/internal/session"
	"github.com/mingodad/libnavajo/internal/tlsconf"
	"github.com/mingodad/libnavajo/internal/version"
	"github.com/mingodad/libnavajo/internal/web"
	"github.com/mingodad/libnavajo/internal/websocket"
)

var (
	// ErrAlreadyStarted is returned by Start on a running server.
	ErrAlreadyStarted = errors.New("server: already started")
	// ErrServerClosed is returned by Start after Shutdown.
	ErrServerClosed = errors.New("server: closed")
)

// shutdownTimeout bounds Shutdown when ctx has no deadline.
const shutdownTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithMetrics records server activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSessionManager replaces the session table created from the config.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Server) { s.sessions = m }
}

// WithAuthOptions passes options to the authenticator, e.g. a PAM verifier.
func WithAuthOptions(opts ...auth.Option) Option {
	return func(s *Server) { s.authOpts = append(s.authOpts, opts...) }
}

type wsEndpoint struct {
	handler websocket.Handler
	opts    []websocket.Option
}

// Server accepts connections, hands them to a worker pool and serves
// requests from the registered providers and WebSocket endpoints.
type Server struct {
	cfg       Config
	allowed   netaddr.NetworkList
	certs     *tlsconf.Store
	tlsConfig *tls.Config
	authOpts  []auth.Option
	auth      *auth.Authenticator
	sessions  *session.Manager
	metrics   *metrics.Metrics
	writer    *web.Writer
	limiter   *RateLimiterRegistry
	peerIPs   *auth.History[netaddr.Address]
	peerDNs   *auth.History[string]

	mu          sync.Mutex
	providers   []web.Provider
	endpoints   map[string]wsEndpoint
	listeners   []net.Listener
	pool        *pool.Pool[*web.Conn]
	activeConns map[string]net.Conn
	activeWS    map[string]*websocket.Conn
	advertiser  *discovery.Advertiser
	running     bool
	closed      bool
	cancel      context.CancelFunc
	done        chan struct{}

	exiting atomic.Bool
	wg      sync.WaitGroup // acceptors and background tasks
	wsWG    sync.WaitGroup
}

// New creates a new Server instance. The TLS certificate is loaded here so
// a bad certificate fails before anything listens.
func New(config Config, opts ...Option) (*Server, error) {
	cfg, allowed, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		allowed:     allowed,
		peerIPs:     auth.NewHistory[netaddr.Address](),
		peerDNs:     auth.NewHistory[string](),
		endpoints:   make(map[string]wsEndpoint),
		activeConns: make(map[string]net.Conn),
		activeWS:    make(map[string]*websocket.Conn),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Client certificates are only requested and verified against a CA.
	if cfg.Auth.DN && cfg.TLS == nil {
		return nil, &ConfigError{Field: "auth.peer_dns", Reason: "certificate authentication needs TLS"}
	}
	if cfg.Auth.DN && cfg.TLS.CAFile == "" {
		return nil, &ConfigError{Field: "tls.ca_file", Reason: "required for certificate authentication"}
	}
	if cfg.TLS != nil {
		s.certs, err = tlsconf.New(*cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = s.certs.TLSConfig()
	}

	s.auth = auth.New(cfg.Auth, s.authOpts...)
	if s.sessions == nil {
		s.sessions = session.NewManager(
			session.WithTTL(cfg.SessionLifetime),
			session.WithHooks(s.metrics.SessionHooks()),
		)
	}
	s.writer = web.NewWriter(cfg.ServerName, cfg.Realm, cfg.WriteTimeout)
	if cfg.RatePerSecond > 0 {
		s.limiter = NewRateLimiterRegistry(cfg.RatePerSecond, cfg.RateBurst)
	}
	if s.metrics != nil && cfg.MetricsPath != "" {
		s.providers = append(s.providers, s.metrics.Provider(cfg.MetricsPath))
	}
	return s, nil
}

// AddRepository appends a provider. Providers are consulted in the order
// they were added.
func (s *Server) AddRepository(p web.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
}

// AddWebSocket serves the WebSocket handler at path. Non-upgrade requests
// for path fall through to the providers.
func (s *Server) AddWebSocket(path string, h websocket.Handler, opts ...websocket.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[normalizePath(path)] = wsEndpoint{handler: h, opts: opts}
}

// RemoveWebSocket unregisters the endpoint at path.
func (s *Server) RemoveWebSocket(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endpoints, normalizePath(path))
}

func normalizePath(p string) string {
	return "/" + strings.TrimLeft(p, "/")
}

// Sessions returns the session table.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Start binds the listeners and starts serving. Bind and certificate
// errors are returned; Start does not block.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	if s.closed {
		return ErrServerClosed
	}

	listeners, err := s.listen()
	if err != nil {
		return err
	}
	s.listeners = listeners

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.pool = pool.New(s.cfg.PoolSize, s.handleConnection, s.abandonConnection)
	s.metrics.TrackQueue(s.pool.Pending)
	s.metrics.TrackSessions(s.sessions)
	s.pool.Start()

	for _, ln := range listeners {
		s.wg.Add(1)
		go s.acceptConnections(ln)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sessions.Run(ctx, s.cfg.SweepInterval)
	}()
	if s.limiter != nil {
		s.wg.Add(1)
		go s.pruneLimiters(ctx)
	}
	if s.certs != nil && s.cfg.WatchCertificates {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.certs.Watch(ctx); err != nil {
				logging.Error("Certificate watcher stopped", zap.Error(err))
			}
		}()
	}
	if s.cfg.Discovery {
		s.advertise()
	}

	s.running = true
	for _, ln := range listeners {
		logging.Info("Server listening for connections",
			zap.String("addr", ln.Addr().String()),
			zap.Bool("tls", s.tlsConfig != nil),
			zap.Int("workers", s.pool.Size()),
		)
	}
	return nil
}

// advertise registers the server over mDNS. Failure only disables
// discovery.
func (s *Server) advertise() {
	instance := s.cfg.DiscoveryInstance
	if instance == "" {
		instance = s.cfg.ServerName
	}
	port := s.listeners[0].Addr().(*net.TCPAddr).Port
	adv, err := discovery.Advertise(instance, port, map[string]string{
		"version": version.Version,
		"tls":     strconv.FormatBool(s.tlsConfig != nil),
	})
	if err != nil {
		logging.Warn("mDNS advertisement disabled", zap.Error(err))
		return
	}
	s.advertiser = adv
}

func (s *Server) pruneLimiters(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Prune(); n > 0 {
				logging.Debug("Rate limiters pruned", zap.Int("count", n))
			}
		}
	}
}

// Run starts the server and serves until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping server...")
	case <-s.done:
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Wait blocks until Shutdown has completed.
func (s *Server) Wait() {
	<-s.done
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addrs returns the bound listener addresses.
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, ln := range s.listeners {
		addrs = append(addrs, ln.Addr())
	}
	return addrs
}

// acceptConnections accepts connections until the listener is closed.
func (s *Server) acceptConnections(ln net.Listener) {
	defer s.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		s.admit(web.NewConn(nc))
	}
}

// admit applies the network allow-list and the rate limit, then queues the
// connection for a worker.
func (s *Server) admit(conn *web.Conn) {
	peer := conn.Peer.String()

	if len(s.allowed) > 0 && !s.allowed.Contains(conn.Peer) {
		logging.Warn("Connection rejected: peer not in allowed networks",
			zap.String("conn_id", conn.ID),
			zap.String("remote_addr", peer),
		)
		s.metrics.Rejected(metrics.RejectNetwork)
		_ = conn.Release()
		return
	}
	if s.limiter != nil && !s.limiter.Allow(conn.Peer) {
		logging.Warn("Connection rejected: rate limit exceeded",
			zap.String("conn_id", conn.ID),
			zap.String("remote_addr", peer),
		)
		s.metrics.Rejected(metrics.RejectRateLimit)
		_ = conn.Release()
		return
	}

	s.peerIPs.Touch(conn.Peer)
	logging.LogConnection(conn.ID, peer, "connection_accepted")

	if err := s.pool.Submit(conn); err != nil {
		s.metrics.Rejected(metrics.RejectShutdown)
		_ = conn.Release()
		return
	}
	s.metrics.Accepted()
}

// abandonConnection closes a connection still queued at shutdown.
func (s *Server) abandonConnection(conn *web.Conn) {
	_ = conn.Release()
	logging.LogConnection(conn.ID, conn.Peer.String(), "connection_abandoned")
}

// Shutdown stops accepting, wakes idle keep-alive connections, asks
// WebSocket peers to close and waits for every worker. Queued connections
// are closed without being served.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	logging.Info("Shutting down server...")
	s.running = false
	s.closed = true
	s.exiting.Store(true)
	s.cancel()

	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	s.advertiser.Shutdown()

	now := time.Now()
	for _, conn := range s.activeConns {
		_ = conn.SetReadDeadline(now)
	}
	sockets := make([]*websocket.Conn, 0, len(s.activeWS))
	for _, ws := range s.activeWS {
		sockets = append(sockets, ws)
	}
	s.mu.Unlock()

	for _, ws := range sockets {
		logging.Info("Closing WebSocket connection", zap.String("conn_id", ws.ID()))
		_ = ws.Close()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	var shutdownErr error
	if err := s.pool.Stop(ctx); err != nil {
		shutdownErr = err
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.wsWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		s.mu.Lock()
		for _, ws := range s.activeWS {
			_ = ws.Request().Conn.Release()
		}
		for _, conn := range s.activeConns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		if shutdownErr == nil {
			shutdownErr = fmt.Errorf("shutdown: %w", ctx.Err())
		}
	}

	s.sessions.Close()
	close(s.done)
	logging.Sync()
	return shutdownErr
}

// PeerIPHistory returns when each peer address last connected.
func (s *Server) PeerIPHistory() map[netaddr.Address]time.Time { return s.peerIPs.Snapshot() }

// PeerDNHistory returns when each client certificate subject last connected.
func (s *Server) PeerDNHistory() map[string]time.Time { return s.peerDNs.Snapshot() }

// UserHistory returns when each user last authenticated.
func (s *Server) UserHistory() map[string]time.Time { return s.auth.UserHistory().Snapshot() }

// ActiveConnections returns the number of connections held by workers.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// ActiveWebSockets returns the number of open WebSocket connections.
func (s *Server) ActiveWebSockets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeWS)
}
