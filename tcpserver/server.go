// Package tcpserver implements the session-oriented server runtime: listener
// management, session lifecycle (admission, registration, idle sweep,
// snapshot, shutdown), the receive pipeline from socket bytes through the
// framer to the command dispatcher, and the batched send pipeline.
//
// Applications compose a server from a framing factory, a set of named
// commands, optional connection filters, and a SessionEvents implementation
// hooking the session lifecycle.
package tcpserver

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/tcpserve/command"
	"github.com/cyberinferno/tcpserve/framing"
	"github.com/cyberinferno/tcpserve/ipfilter"
	"github.com/cyberinferno/tcpserve/logger"
)

// LogFactory builds the logger a server uses, given the server name.
type LogFactory func(serverName string) logger.Logger

// SetupOptions carries the provider factories a server is composed from.
type SetupOptions struct {
	// LogFactory builds the server logger. Defaults to a no-op logger.
	LogFactory LogFactory

	// FramerFactory creates one framer per new session. Required.
	FramerFactory framing.Factory

	// ConnectionFilters run in order on every new connection before a
	// session is created; the first denial drops the connection.
	ConnectionFilters []ipfilter.ConnectionFilter

	// CommandLoaders supply the command set. Loaders implementing
	// command.UpdatingLoader may push changes at runtime.
	CommandLoaders []command.Loader

	// GlobalCommandFilters wrap every command, before per-command filters.
	GlobalCommandFilters []command.Filter

	// SessionEvents hooks the session lifecycle. Defaults to
	// DefaultSessionEvents.
	SessionEvents SessionEvents

	// WorkerPool tunes the process-wide callback pool. Applied once per
	// process by whichever server sets up first.
	WorkerPool WorkerPoolConfig

	// TextLineTerminator is appended by SendString on stream sessions.
	// Empty selects "\r\n"; datagram sessions never get a terminator.
	TextLineTerminator string
}

type listenerInfo struct {
	config   ListenerConfig
	listener net.Listener
	packet   net.PacketConn
}

// Server is one configured server core: it accepts connections, owns the
// session registry, runs the maintenance timers, and dispatches framed
// requests to commands.
//
// The event hook fields may be assigned between Setup and Start; they must
// not be changed while the server runs.
type Server struct {
	// OnStartup fires after the server started listening.
	OnStartup func(server *Server)

	// NewSessionConnected fires asynchronously for every registered session.
	NewSessionConnected func(session *AppSession)

	// SessionClosed fires asynchronously after a session left the registry.
	SessionClosed func(session *AppSession, reason CloseReason)

	// RequestHandler, when set, replaces command dispatch entirely: every
	// framed request is passed to it instead of the registry.
	RequestHandler func(session *AppSession, req *framing.Request) error

	// RawDataReceived, when set, sees every received chunk before framing;
	// returning false discards the bytes.
	RawDataReceived func(session *AppSession, data []byte) bool

	config            *Config
	log               logger.Logger
	framerFactory     framing.Factory
	connectionFilters []ipfilter.ConnectionFilter
	registry          *command.Registry
	sessionEvents     SessionEvents
	tlsConfig         *tls.Config
	lineTerminator    []byte

	sessions  cmap.ConcurrentMap[string, *AppSession]
	snapshot  atomic.Value // []*AppSession
	listeners []*listenerInfo

	initialized  atomic.Bool
	running      atomic.Bool
	startTime    time.Time
	totalHandled atomic.Uint64
	sweeping     atomic.Bool

	stopCh chan struct{}
	loopWG sync.WaitGroup

	stateMu       sync.Mutex
	lastCollected time.Time
	lastHandled   uint64
}

// NewServer creates an un-initialized server. Call Setup before Start.
//
// Returns:
//   - A new Server
func NewServer() *Server {
	s := &Server{
		sessions: cmap.New[*AppSession](),
		log:      logger.NewNopLogger(),
	}
	s.snapshot.Store([]*AppSession(nil))
	return s
}

// Setup validates the configuration and installs the provider factories.
// The steps run in a strict order and the first failure aborts setup,
// leaving the server un-initialized. Setup does not bind any socket.
//
// Parameters:
//   - cfg: The server configuration; normalized and validated in place
//   - opts: The provider factories to compose the server from
//
// Returns:
//   - An error describing the failed setup step, or nil
func (s *Server) Setup(cfg *Config, opts SetupOptions) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	s.config = cfg

	ConfigureWorkerPool(opts.WorkerPool)

	if opts.LogFactory != nil {
		s.log = opts.LogFactory(cfg.Name)
	}

	if opts.FramerFactory == nil {
		s.log.Error("setup failed: no framer factory", logger.Field{Key: "server", Value: cfg.Name})
		return fmt.Errorf("server %s: framer factory is required", cfg.Name)
	}
	s.framerFactory = opts.FramerFactory
	s.connectionFilters = opts.ConnectionFilters

	s.sessionEvents = opts.SessionEvents
	if s.sessionEvents == nil {
		s.sessionEvents = DefaultSessionEvents{}
	}

	s.lineTerminator = []byte(opts.TextLineTerminator)
	if opts.TextLineTerminator == "" {
		s.lineTerminator = []byte("\r\n")
	}

	tlsConfig, err := resolveTLSConfig(cfg)
	if err != nil {
		s.log.Error("setup failed: tls", logger.Field{Key: "server", Value: cfg.Name}, logger.Field{Key: "error", Value: err})
		return err
	}
	s.tlsConfig = tlsConfig

	registry := command.NewRegistry(opts.GlobalCommandFilters)
	commands, err := loadCommands(opts.CommandLoaders)
	if err != nil {
		s.log.Error("setup failed: commands", logger.Field{Key: "server", Value: cfg.Name}, logger.Field{Key: "error", Value: err})
		return err
	}
	if err := registry.Build(commands); err != nil {
		s.log.Error("setup failed: commands", logger.Field{Key: "server", Value: cfg.Name}, logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server %s: %w", cfg.Name, err)
	}
	for _, loader := range opts.CommandLoaders {
		if ul, ok := loader.(command.UpdatingLoader); ok {
			ul.OnUpdate(registry.Apply)
		}
	}
	s.registry = registry

	s.initialized.Store(true)
	return nil
}

func loadCommands(loaders []command.Loader) ([]command.Command, error) {
	var commands []command.Command
	for _, loader := range loaders {
		loaded, err := loader.Load()
		if err != nil {
			return nil, fmt.Errorf("command loader failed: %w", err)
		}

		for _, cmd := range loaded {
			if cmd == nil || cmd.Name() == "" {
				return nil, fmt.Errorf("command loader returned an unnamed command")
			}
			commands = append(commands, cmd)
		}
	}

	return commands, nil
}

// Name returns the configured server name.
func (s *Server) Name() string {
	if s.config == nil {
		return ""
	}

	return s.config.Name
}

// Config returns the server configuration. Treat as read-only.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() logger.Logger {
	return s.log
}

// Running reports whether the server is started.
func (s *Server) Running() bool {
	return s.running.Load()
}

// StartTime returns when the server was last started.
func (s *Server) StartTime() time.Time {
	return s.startTime
}

// TotalHandledRequests returns the number of dispatched requests since start.
func (s *Server) TotalHandledRequests() uint64 {
	return s.totalHandled.Load()
}

// Start binds all listeners and begins accepting connections, then fires
// OnStartup and starts the maintenance timers. It refuses to start twice or
// before a successful Setup. On any bind failure every listener opened so
// far is closed again and the server stays stopped.
//
// Returns:
//   - An error if the server cannot start
func (s *Server) Start() error {
	if !s.initialized.Load() {
		return ErrServerNotInitialized
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	s.stopCh = make(chan struct{})
	s.listeners = nil

	for _, lc := range s.config.EffectiveListeners() {
		info, err := s.bindListener(lc)
		if err != nil {
			s.log.Error("failed to bind listener",
				logger.Field{Key: "addr", Value: lc.Addr()},
				logger.Field{Key: "error", Value: err})
			s.closeListeners()
			s.running.Store(false)
			return fmt.Errorf("server %s: bind %s: %w", s.config.Name, lc.Addr(), err)
		}

		s.listeners = append(s.listeners, info)
	}

	s.startTime = time.Now()
	s.stateMu.Lock()
	s.lastCollected = s.startTime
	s.lastHandled = 0
	s.stateMu.Unlock()
	s.totalHandled.Store(0)

	for _, info := range s.listeners {
		if info.listener != nil {
			s.loopWG.Add(1)
			go s.acceptLoop(info)
		}
		if info.packet != nil {
			s.loopWG.Add(1)
			go s.datagramLoop(info)
		}
	}

	s.log.Info("server started", logger.Field{Key: "server", Value: s.config.Name})
	if s.OnStartup != nil {
		s.OnStartup(s)
	}

	if !s.config.DisableSessionSnapshot {
		s.loopWG.Add(1)
		go s.snapshotLoop()
	}
	if s.config.ClearIdleSession {
		s.loopWG.Add(1)
		go s.idleSweepLoop()
	}

	return nil
}

func (s *Server) bindListener(lc ListenerConfig) (*listenerInfo, error) {
	if s.config.Mode == ModeUDP {
		pc, err := net.ListenPacket("udp", lc.Addr())
		if err != nil {
			return nil, err
		}

		return &listenerInfo{config: lc, packet: pc}, nil
	}

	ln, err := net.Listen("tcp", lc.Addr())
	if err != nil {
		return nil, err
	}

	if lc.Secure() {
		cfg := s.tlsConfig.Clone()
		minVersion, err := tlsVersionFromName(lc.Security)
		if err != nil {
			_ = ln.Close()
			return nil, err
		}
		cfg.MinVersion = minVersion
		ln = tls.NewListener(ln, cfg)
	}

	return &listenerInfo{config: lc, listener: ln}, nil
}

func (s *Server) closeListeners() {
	for _, info := range s.listeners {
		if info.listener != nil {
			_ = info.listener.Close()
		}
		if info.packet != nil {
			_ = info.packet.Close()
		}
	}
}

// Stop stops accepting, closes every registered session in parallel with
// CloseReasonServerShutdown, waits for them, and stops the maintenance
// timers.
//
// Returns:
//   - ErrServerNotRunning when the server is not started
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}

	s.closeListeners()

	var g errgroup.Group
	for _, session := range s.liveSessions() {
		sess := session
		g.Go(func() error {
			sess.CloseWithReason(CloseReasonServerShutdown)
			return nil
		})
	}
	_ = g.Wait()

	close(s.stopCh)
	s.loopWG.Wait()

	s.log.Info("server stopped", logger.Field{Key: "server", Value: s.config.Name})
	return nil
}

func (s *Server) acceptLoop(info *listenerInfo) {
	defer s.loopWG.Done()

	for {
		conn, err := info.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.log.Error("accept error",
				logger.Field{Key: "addr", Value: info.config.Addr()},
				logger.Field{Key: "error", Value: err})
			continue
		}

		if !s.admitConnection(conn.RemoteAddr()) {
			_ = conn.Close()
			continue
		}

		s.registerConnection(conn, false)
	}
}

// admitConnection runs the connection filter chain and the max-connection
// cap. The first filter denial short-circuits.
func (s *Server) admitConnection(remoteAddr net.Addr) bool {
	for _, filter := range s.connectionFilters {
		if !filter.AllowConnect(remoteAddr) {
			if s.log.InfoEnabled() {
				s.log.Info("connection denied by filter",
					logger.Field{Key: "filter", Value: filter.Name()},
					logger.Field{Key: "remote", Value: remoteAddr.String()})
			}
			return false
		}
	}

	if s.sessions.Count() >= s.config.MaxConnectionNumber {
		if s.log.InfoEnabled() {
			s.log.Info("connection rejected: max connections reached",
				logger.Field{Key: "max", Value: s.config.MaxConnectionNumber},
				logger.Field{Key: "remote", Value: remoteAddr.String()})
		}
		return false
	}

	return true
}

// registerConnection builds the socket and app sessions for an admitted
// connection, registers the session under a fresh id, and starts its loops.
func (s *Server) registerConnection(conn net.Conn, datagram bool) *AppSession {
	socket := newSocketSession(s, conn, datagram)
	framer := s.framerFactory.CreateFramer(conn.RemoteAddr())
	session := newAppSession(s, socket, framer, uuid.NewString())

	if !s.sessions.SetIfAbsent(sessionKey(session.ID()), session) {
		s.log.Error("session id collision",
			logger.Field{Key: "session", Value: session.ID()})
		socket.Close(CloseReasonServerClosing)
		return nil
	}

	session.events.OnInit(session)
	session.events.OnSessionStarted(session)
	// Receive processing begins only after the started hook, so the first
	// request can never outrun OnSessionStarted. Sends enqueued by the hook
	// are picked up as soon as the pump runs.
	socket.start()

	if s.config.LogBasicSessionActivity && s.log.InfoEnabled() {
		s.log.Info("session connected",
			logger.Field{Key: "session", Value: session.ID()},
			logger.Field{Key: "remote", Value: conn.RemoteAddr().String()})
	}

	if s.NewSessionConnected != nil {
		submitTask(func() { s.NewSessionConnected(session) })
	}

	return session
}

// onSocketClosed is the socket-close callback: it removes the session from
// the registry and fires the close events asynchronously.
func (s *Server) onSocketClosed(session *AppSession, reason CloseReason) {
	if session == nil {
		return
	}

	s.sessions.Remove(sessionKey(session.ID()))
	session.markDisconnected()

	logIt := s.config.LogBasicSessionActivity ||
		(reason != CloseReasonClientClosing && reason != CloseReasonServerClosing && reason != CloseReasonServerShutdown)
	if logIt && s.log.InfoEnabled() {
		s.log.Info("session closed",
			logger.Field{Key: "session", Value: session.ID()},
			logger.Field{Key: "reason", Value: reason.String()})
	}

	submitTask(func() {
		session.events.OnSessionClosed(session, reason)
		if s.SessionClosed != nil {
			s.SessionClosed(session, reason)
		}
	})
}

func (s *Server) allowRawData(session *AppSession, data []byte) bool {
	if s.RawDataReceived == nil {
		return true
	}

	return s.RawDataReceived(session, data)
}

// executeCommand dispatches one framed request on its session: current
// command bookkeeping, the raw handler override, registry lookup, the filter
// chain, and the handled-request counter. Handler errors and panics go to
// the session's HandleException.
func (s *Server) executeCommand(session *AppSession, req *framing.Request) {
	session.setCurrentCommand(req.Key)

	defer func() {
		if r := recover(); r != nil {
			session.events.HandleException(session, fmt.Errorf("command %s panicked: %v", req.Key, r))
		}
		session.touch()
		s.totalHandled.Add(1)
	}()

	if s.RequestHandler != nil {
		if err := s.RequestHandler(session, req); err != nil {
			session.events.HandleException(session, err)
		}
		return
	}

	cmd, filters, ok := s.registry.Get(req.Key)
	if !ok {
		session.events.HandleUnknownRequest(session, req)
		return
	}

	ctx := &command.ExecContext{
		Session: session,
		Request: req,
		Command: cmd,
	}

	var cancelledBy command.Filter
	for _, filter := range filters {
		filter.OnExecuting(ctx)
		if ctx.Cancel && cancelledBy == nil {
			cancelledBy = filter
		}
	}
	if ctx.Cancel {
		if s.log.InfoEnabled() {
			s.log.Info("command cancelled by filter",
				logger.Field{Key: "session", Value: session.ID()},
				logger.Field{Key: "command", Value: req.Key},
				logger.Field{Key: "filter", Value: fmt.Sprintf("%T", cancelledBy)})
		}
		return
	}

	if err := cmd.Execute(session, req); err != nil {
		session.events.HandleException(session, err)
		return
	}

	for _, filter := range filters {
		filter.OnExecuted(ctx)
	}

	session.setPreviousCommand(req.Key)
	if s.config.LogCommand && s.log.InfoEnabled() {
		s.log.Info("command executed",
			logger.Field{Key: "session", Value: session.ID()},
			logger.Field{Key: "command", Value: req.Key})
	}
}

// ListenAddrs returns the bound addresses of all listeners. With an
// ephemeral port (0) configured, this reports the port actually assigned.
//
// Returns:
//   - The bound listener addresses, empty while the server is stopped
func (s *Server) ListenAddrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, info := range s.listeners {
		if info.listener != nil {
			addrs = append(addrs, info.listener.Addr())
		}
		if info.packet != nil {
			addrs = append(addrs, info.packet.LocalAddr())
		}
	}

	return addrs
}

// GetSessionByID looks a session up by its id, case-insensitively.
//
// Parameters:
//   - id: The session id
//
// Returns:
//   - The session and true, or nil and false when absent
func (s *Server) GetSessionByID(id string) (*AppSession, bool) {
	return s.sessions.Get(sessionKey(id))
}

// SessionCount returns the number of registered sessions.
//
// Returns:
//   - The live session count
func (s *Server) SessionCount() int {
	return s.sessions.Count()
}

// GetAllSessions returns the sessions known to the server. With snapshots
// enabled this reads the latest snapshot, trading seconds-scale staleness
// for a lock-free read; otherwise it walks the live registry.
//
// Returns:
//   - The sessions
func (s *Server) GetAllSessions() []*AppSession {
	if !s.config.DisableSessionSnapshot {
		if snap := s.snapshot.Load().([]*AppSession); snap != nil {
			return snap
		}
	}

	return s.liveSessions()
}

// GetSessions returns the known sessions matching pred, reading the same
// source as GetAllSessions.
//
// Parameters:
//   - pred: The predicate sessions must match
//
// Returns:
//   - The matching sessions
func (s *Server) GetSessions(pred func(*AppSession) bool) []*AppSession {
	var matched []*AppSession
	for _, session := range s.GetAllSessions() {
		if pred(session) {
			matched = append(matched, session)
		}
	}

	return matched
}

// Broadcast sends data to every registered session. Failures on individual
// sessions are skipped; a broadcast never fails as a whole.
//
// Parameters:
//   - data: The bytes to send to each session
func (s *Server) Broadcast(data []byte) {
	for _, session := range s.liveSessions() {
		_ = session.TrySend(data)
	}
}

func (s *Server) liveSessions() []*AppSession {
	sessions := make([]*AppSession, 0, s.sessions.Count())
	s.sessions.IterCb(func(_ string, session *AppSession) {
		sessions = append(sessions, session)
	})

	return sessions
}

func sessionKey(id string) string {
	return strings.ToLower(id)
}
