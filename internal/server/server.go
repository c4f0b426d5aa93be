// Package server implements the TCP front end: it accepts connections,
// decodes RESP commands, dispatches them to the cache, and encodes replies.
// One goroutine serves each connection for its whole lifetime.
package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sweepkv/sweepkv/cache"
	"github.com/sweepkv/sweepkv/resp"
)

// defaultReadTimeout bounds how long a connection may sit idle between
// commands before the server drops it.
const defaultReadTimeout = 5 * time.Minute

// Config carries the server's listen settings.
type Config struct {
	// Addr is the TCP listen address, e.g. ":6379".
	Addr string

	// ReadTimeout is the per-command read deadline. Zero applies
	// defaultReadTimeout; a negative value disables the deadline.
	ReadTimeout time.Duration
}

// Server accepts client connections and serves cache commands over RESP.
type Server struct {
	cfg   Config
	cache cache.Cache
	log   *zap.Logger

	mu     sync.Mutex
	lis    net.Listener
	conns  map[net.Conn]struct{}
	closed atomic.Bool

	wg sync.WaitGroup
}

// New constructs a server around an existing cache. The server does not own
// the cache; closing the server leaves the cache running.
func New(cfg Config, c cache.Cache, log *zap.Logger) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:   cfg,
		cache: c,
		log:   log,
		conns: make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds Config.Addr and serves until Close is called or the
// listener fails.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis, spawning one goroutine per connection.
// It returns nil after Close, or the accept error that stopped it.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		lis.Close()
		return nil
	}
	s.lis = lis
	s.mu.Unlock()

	s.log.Info("listening", zap.String("addr", lis.Addr().String()))

	for {
		conn, err := lis.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close stops the listener, closes open connections, and waits for the
// per-connection goroutines to drain. Safe to call multiple times.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	var err error
	if s.lis != nil {
		err = s.lis.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConn runs one connection's read-dispatch-reply loop until the client
// disconnects, times out, or sends bytes that don't frame as RESP.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.log.Debug("connection opened", zap.String("remote", remote))

	r := resp.NewReader(conn)
	w := resp.NewWriter(conn)

	for {
		if s.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
				return
			}
		}

		v, err := r.ReadValue()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.log.Debug("connection closed", zap.String("remote", remote))
			case errors.Is(err, resp.ErrProtocol):
				// Tell the client why before hanging up, like redis does.
				_ = w.WriteError("ERR " + err.Error())
				_ = w.Flush()
				s.log.Debug("protocol error", zap.String("remote", remote), zap.Error(err))
			default:
				s.log.Debug("read failed", zap.String("remote", remote), zap.Error(err))
			}
			return
		}

		cmd, err := resp.ParseCommand(v)
		if err != nil {
			// Bad commands are per-request failures; the connection survives.
			if werr := w.WriteError("ERR " + err.Error()); werr != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			continue
		}

		if err := s.dispatch(cmd, w); err != nil {
			s.log.Debug("write failed", zap.String("remote", remote), zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// dispatch maps one decoded command onto the cache and writes the reply.
func (s *Server) dispatch(cmd resp.Command, w *resp.Writer) error {
	switch cmd.Kind {
	case resp.Ping:
		return w.WriteSimpleString("PONG")
	case resp.Echo:
		return w.WriteBulkString(cmd.Msg)
	case resp.Set:
		s.cache.Set(cmd.Key, cmd.Value, cmd.TTL)
		return w.WriteSimpleString("OK")
	case resp.Get:
		if v, ok := s.cache.Get(cmd.Key); ok {
			return w.WriteBulkString(v)
		}
		return w.WriteNull()
	default:
		return w.WriteError("ERR unhandled command")
	}
}
