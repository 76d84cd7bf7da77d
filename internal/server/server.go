// Package server implements the TCP front end of stashkv.
//
// Each accepted connection gets its own goroutine that reads protocol
// lines, feeds them to a per-connection parser, and dispatches completed
// commands against the shared store. Protocol errors are answered with
// an error reply and the connection keeps reading.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stashkv/stashkv/internal/protocol"
	"github.com/stashkv/stashkv/internal/store"
	"github.com/stashkv/stashkv/internal/telemetry/metric"
)

// Config holds the protocol server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// ReadTimeout is the timeout for reading a command once its first
	// byte has arrived (default: 30s).
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing a response (default: 30s).
	WriteTimeout time.Duration
	// IdleTimeout is the timeout for idle connections (default: 5m).
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per IP.
	// Set to 0 to disable rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    1000,
	}
}

// Server accepts connections and serves the wire protocol.
type Server struct {
	cfg     *Config
	handler *CommandHandler
	logger  *slog.Logger
	metrics *metric.Registry
	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// Conn represents a single client connection.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	closed atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
	}
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// New creates a protocol server.
func New(cfg *Config, st *store.Store, metrics *metric.Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
	s.handler = NewCommandHandler(st, s, metrics, logger)
	return s
}

// Start begins listening and accepting connections. It returns once the
// listener is bound; accepting happens in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)
	s.logger.Info("server listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("accept loop error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, newConn(c))
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()

	connID := newConnID()
	log := s.logger.With("conn_id", connID, "remote", c.RemoteAddr().String())
	log.Debug("connection opened")

	if s.metrics != nil {
		s.metrics.ConnectionsActive.Inc()
		defer s.metrics.ConnectionsActive.Dec()
	}

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 5 * time.Minute
	}

	parser := protocol.NewParser()
	midFrame := false

	for {
		// Between frames a connection may sit idle; mid-frame the
		// tighter per-command timeout applies.
		deadline := idleTimeout
		if midFrame {
			deadline = readTimeout
		}
		if err := c.netConn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return
		}

		line, err := protocol.ReadLine(c.br, protocol.MaxLineLen)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("connection closed by peer")
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Debug("connection timed out")
				return
			}
			if errors.Is(err, protocol.ErrMalformed) {
				// Unframed garbage on the wire; reply and drop the
				// connection since resynchronization is hopeless.
				_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = protocol.WriteError(c.bw, "ERR protocol error: "+err.Error())
				_ = c.bw.Flush()
				return
			}
			log.Debug("connection read error", "error", err)
			return
		}

		cmd, err := parser.Feed(line)
		if err != nil {
			parser.Reset()
			midFrame = false
			if s.metrics != nil {
				s.metrics.ProtocolErrors.Inc()
			}
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if errors.Is(err, protocol.ErrUnknownCommand) {
				log.Debug("unknown command", "error", err)
				_ = protocol.WriteError(c.bw, "ERR "+err.Error())
			} else {
				log.Debug("malformed frame", "error", err)
				_ = protocol.WriteError(c.bw, "ERR protocol error: "+err.Error())
			}
			if err := c.bw.Flush(); err != nil {
				return
			}
			continue
		}
		if cmd == nil {
			midFrame = true
			continue
		}
		midFrame = false

		s.handler.Handle(ctx, c, cmd)

		if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			return
		}
	}
}

// Connection IDs only need to be unique within a process lifetime.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newConnID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
