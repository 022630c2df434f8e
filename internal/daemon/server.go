package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/why-cli/why/internal/provider"
)

// DefaultIdleTimeout is how long the daemon waits without traffic before
// exiting on its own.
const DefaultIdleTimeout = 30 * time.Minute

// ErrAlreadyRunning is returned by Serve when a live daemon already holds
// the socket.
var ErrAlreadyRunning = errors.New("daemon already running")

// Server owns the socket, the warm backend and the idle timer.
type Server struct {
	backend     provider.Provider
	log         *zap.Logger
	socketPath  string
	pidPath     string
	idleTimeout time.Duration
	modelPath   string

	started  time.Time
	served   uint64
	genTotal time.Duration

	// mu guards lastActivity, active and served.
	mu           sync.Mutex
	lastActivity time.Time
	active       int

	// genMu serializes generation; the warm engine handles one prompt
	// at a time.
	genMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	ln        net.Listener
}

// ServerOption adjusts server construction.
type ServerOption func(*Server)

// WithIdleTimeout overrides the idle shutdown timeout. Zero disables it.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.idleTimeout = d }
}

// WithSocketPath overrides the socket location. Used by tests.
func WithSocketPath(path string) ServerOption {
	return func(s *Server) {
		s.socketPath = path
		s.pidPath = path + ".pid"
	}
}

// WithModelPath records the served model path for stats reporting.
func WithModelPath(path string) ServerOption {
	return func(s *Server) { s.modelPath = path }
}

// NewServer builds a daemon around an already-open backend.
func NewServer(backend provider.Provider, log *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		backend:     backend,
		log:         log,
		socketPath:  SocketPath(),
		pidPath:     PidPath(),
		idleTimeout: DefaultIdleTimeout,
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewLogger opens the daemon log file and builds a production zap logger
// writing to it.
func NewLogger() (*zap.Logger, error) {
	path, err := LogPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

// Serve binds the socket and runs until shutdown: an explicit shutdown
// request, a SIGINT/SIGTERM, or the idle timeout expiring with no
// request in flight. The socket and pid file are removed on the way out.
func (s *Server) Serve() error {
	if err := s.bind(); err != nil {
		return err
	}
	s.started = time.Now()
	s.lastActivity = s.started
	defer s.cleanup()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.log.Info("signal received, shutting down", zap.String("signal", sig.String()))
			s.Shutdown()
		case <-s.closed:
		}
	}()

	s.log.Info("daemon listening",
		zap.String("socket", s.socketPath),
		zap.Duration("idle_timeout", s.idleTimeout))

	for {
		if deadline, ok := s.idleDeadline(); ok {
			if expired := s.checkIdle(deadline); expired {
				s.log.Info("idle timeout reached, shutting down")
				s.Shutdown()
				return nil
			}
			s.ln.(*net.UnixListener).SetDeadline(deadline)
		}

		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// bind claims the socket, refusing when a live daemon answers on it and
// clearing it when it is stale.
func (s *Server) bind() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		probe, err := net.DialTimeout("unix", s.socketPath, 300*time.Millisecond)
		if err == nil {
			probe.Close()
			return ErrAlreadyRunning
		}
		s.log.Info("removing stale socket", zap.String("socket", s.socketPath))
		os.Remove(s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.socketPath, err)
	}
	s.ln = ln

	if err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		ln.Close()
		os.Remove(s.socketPath)
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// idleDeadline reports when the idle timeout would fire. ok is false when
// the timeout is disabled.
func (s *Server) idleDeadline() (time.Time, bool) {
	if s.idleTimeout <= 0 {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity.Add(s.idleTimeout), true
}

// checkIdle reports whether the daemon has been idle past deadline with
// no request in flight. Checked only between accepts, never mid-request.
func (s *Server) checkIdle(deadline time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == 0 && !time.Now().Before(deadline)
}

func (s *Server) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Shutdown stops the accept loop. Safe to call more than once.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.ln != nil {
			s.ln.Close()
		}
	})
}

func (s *Server) cleanup() {
	os.Remove(s.socketPath)
	os.Remove(s.pidPath)
	if closer, ok := s.backend.(interface{ Close() error }); ok {
		closer.Close()
	}
	s.log.Info("daemon stopped", zap.Uint64("requests_served", s.served))
	s.log.Sync()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.lastActivity = time.Now()
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	enc := json.NewEncoder(conn)

	// A connection that goes quiet is dropped so it cannot pin the idle
	// timer forever.
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

	for scanner.Scan() {
		conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			enc.Encode(Response{Type: TypeError, Error: "malformed request: " + err.Error()})
			return
		}
		s.touch()

		switch req.Action {
		case ActionPing:
			enc.Encode(Response{ID: req.ID, Type: TypePong})
		case ActionStats:
			enc.Encode(Response{ID: req.ID, Type: TypeStats, Stats: s.stats()})
		case ActionShutdown:
			enc.Encode(Response{ID: req.ID, Type: TypeShutdownAck})
			s.log.Info("shutdown requested")
			s.Shutdown()
			return
		case ActionExplain:
			s.handleExplain(enc, req)
		default:
			enc.Encode(Response{ID: req.ID, Type: TypeError, Error: "unknown action " + req.Action})
		}
	}
}

func (s *Server) stats() *Stats {
	s.mu.Lock()
	served := s.served
	genTotal := s.genTotal
	s.mu.Unlock()

	var avgMs int64
	if served > 0 {
		avgMs = genTotal.Milliseconds() / int64(served)
	}
	return &Stats{
		PID:            os.Getpid(),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		RequestsServed: served,
		AvgGenerateMs:  avgMs,
		ModelPath:      s.modelPath,
		IdleTimeoutSec: int64(s.idleTimeout.Seconds()),
	}
}

// handleExplain runs one generation. Generations are serialized: a second
// client blocks until the engine frees up. A failed write to the client
// cancels the generation so a vanished client does not burn CPU.
func (s *Server) handleExplain(enc *json.Encoder, req Request) {
	start := time.Now()
	s.log.Info("explain request",
		zap.String("id", req.ID),
		zap.Int("input_len", len(req.Input)),
		zap.Bool("stream", req.Stream))

	s.mu.Lock()
	s.served++
	s.mu.Unlock()

	s.genMu.Lock()
	defer s.genMu.Unlock()

	var onToken func(string) bool
	if req.Stream {
		onToken = func(tok string) bool {
			return enc.Encode(Response{ID: req.ID, Type: TypeToken, Content: tok}) == nil
		}
	}

	out, err := s.backend.Explain(context.Background(), provider.Request{
		Input:   req.Input,
		Context: req.Context,
	}, onToken)
	s.mu.Lock()
	s.genTotal += time.Since(start)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("generation failed", zap.String("id", req.ID), zap.Error(err))
		enc.Encode(Response{ID: req.ID, Type: TypeError, Error: err.Error()})
		return
	}

	s.log.Info("explain done",
		zap.String("id", req.ID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("output_len", len(out)))
	enc.Encode(Response{ID: req.ID, Type: TypeComplete, Explanation: out})
}
