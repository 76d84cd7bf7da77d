package server

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/stashkv/stashkv/internal/protocol"
	"github.com/stashkv/stashkv/internal/store"
	"github.com/stashkv/stashkv/internal/telemetry/metric"
)

// rateLimiter tracks a token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(commandsPerSecond int) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(commandsPerSecond),
		burst:    commandsPerSecond,
	}
}

// allow checks whether a command from the given IP should proceed.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[ip] = lim
	}
	return lim.Allow()
}

// CommandHandler maps parsed commands onto store operations and writes
// the protocol reply. Each command produces exactly one reply and is
// never retried internally.
type CommandHandler struct {
	store       *store.Store
	logger      *slog.Logger
	metrics     *metric.Registry
	rateLimiter *rateLimiter
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(st *store.Store, srv *Server, metrics *metric.Registry, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}

	var rl *rateLimiter
	if srv != nil && srv.cfg != nil && srv.cfg.RateLimit > 0 {
		rl = newRateLimiter(srv.cfg.RateLimit)
	}

	return &CommandHandler{
		store:       st,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rl,
	}
}

// Handle executes one command against the store and writes the reply to
// the connection's buffered writer. The caller flushes.
func (h *CommandHandler) Handle(ctx context.Context, conn *Conn, cmd protocol.Command) {
	if h.rateLimiter != nil {
		ip := conn.RemoteAddr().String()
		if idx := strings.LastIndex(ip, ":"); idx != -1 {
			ip = ip[:idx]
		}
		if !h.rateLimiter.allow(ip) {
			h.observe(cmd.Name(), "error")
			_ = protocol.WriteError(conn.bw, "ERR rate limit exceeded")
			return
		}
	}

	switch c := cmd.(type) {
	case protocol.Ping:
		h.handlePing(conn)
	case protocol.Echo:
		h.handleEcho(conn, c)
	case protocol.Set:
		h.handleSet(ctx, conn, c)
	case protocol.Get:
		h.handleGet(ctx, conn, c)
	default:
		// Unreachable while Command stays sealed.
		h.observe(cmd.Name(), "error")
		_ = protocol.WriteError(conn.bw, "ERR unknown command '"+cmd.Name()+"'")
	}
}

func (h *CommandHandler) handlePing(conn *Conn) {
	h.observe("PING", "ok")
	_ = protocol.WriteSimpleString(conn.bw, "PONG")
}

func (h *CommandHandler) handleEcho(conn *Conn, cmd protocol.Echo) {
	h.observe("ECHO", "ok")
	_ = protocol.WriteBulkString(conn.bw, cmd.Arg)
}

func (h *CommandHandler) handleSet(ctx context.Context, conn *Conn, cmd protocol.Set) {
	if err := h.store.Put(ctx, cmd.Key, cmd.Value, cmd.TTL); err != nil {
		// The write reached memory but not durable storage; the client
		// must not see OK.
		h.observe("SET", "error")
		h.logger.Error("SET failed", "key", cmd.Key, "error", err)
		_ = protocol.WriteError(conn.bw, "ERR "+err.Error())
		return
	}
	h.observe("SET", "ok")
	_ = protocol.WriteSimpleString(conn.bw, "OK")
}

func (h *CommandHandler) handleGet(ctx context.Context, conn *Conn, cmd protocol.Get) {
	value, ok := h.store.Get(ctx, cmd.Key)
	h.observe("GET", "ok")
	if !ok {
		_ = protocol.WriteNullBulk(conn.bw)
		return
	}
	_ = protocol.WriteBulkString(conn.bw, value)
}

func (h *CommandHandler) observe(command, status string) {
	if h.metrics != nil {
		h.metrics.CommandsTotal.WithLabelValues(command, status).Inc()
	}
}
