// Package server implements the TCP front-end described in spec.md
// §4.I: one connection, one request, one response, dispatched through a
// worker pool so a slow client or blocking disk I/O never stalls
// unrelated connections.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/NaokiLH/kvs/internal/engine"
	"github.com/NaokiLH/kvs/internal/protocol"
	"github.com/NaokiLH/kvs/internal/workerpool"
)

// EngineFactory returns a fresh, independently-clonable engine handle for
// one worker pool slot. The server calls this once per pool worker so
// each worker gets its own reader cache (spec.md §4.G, §5).
type EngineFactory func() engine.Engine

// Server accepts TCP connections and dispatches each to the worker pool.
//
// A fixed set of engine clones — one per pool slot — is handed out
// through engines, a buffered channel acting as a free list. A worker
// borrows a clone for the duration of one request and returns it,
// so each clone's reader cache is reused across many requests rather
// than rebuilt from scratch per connection (spec.md §4.G, §5).
type Server struct {
	listener net.Listener
	pool     *workerpool.Pool
	engines  chan engine.Engine
}

// New starts listening on addr, creates size engine clones via
// newEngine, and spins up a pool of size workers sharing them through a
// free list.
func New(addr string, size int, newEngine EngineFactory) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	engines := make(chan engine.Engine, size)
	for i := 0; i < size; i++ {
		engines <- newEngine()
	}

	pool, err := workerpool.New(size)
	if err != nil {
		_ = ln.Close()

		return nil, fmt.Errorf("server: %w", err)
	}

	return &Server{listener: ln, pool: pool, engines: engines}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed, submitting
// each to the worker pool. It returns nil when Close causes Accept to
// fail with net.ErrClosed, and any other error otherwise.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("server: accept: %w", err)
		}

		submitErr := s.pool.Submit(func() {
			eng := <-s.engines
			defer func() { s.engines <- eng }()

			handleConn(conn, eng)
		})
		if submitErr != nil {
			_ = conn.Close()

			return fmt.Errorf("server: %w", submitErr)
		}
	}
}

// Close stops accepting connections and shuts down the worker pool,
// waiting for in-flight requests to finish, then closes every engine
// clone in the free list.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.pool.Close()

	close(s.engines)

	for eng := range s.engines {
		if closeErr := eng.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	return err
}

// handleConn reads exactly one request, executes it against eng, writes
// exactly one response, and closes the connection (spec.md §4.I).
func handleConn(conn net.Conn, eng engine.Engine) {
	defer conn.Close()

	var req protocol.Request

	dec := json.NewDecoder(conn)
	if err := dec.Decode(&req); err != nil {
		log.Printf("kvs: server: decode request from %s: %v", conn.RemoteAddr(), err)

		return
	}

	if err := req.Validate(); err != nil {
		writeResponse(conn, protocol.Failure(err.Error()))

		return
	}

	writeResponse(conn, dispatch(eng, req))
}

// dispatch executes a validated request against eng and builds the
// response, translating engine errors into spec.md §6's Err string form.
func dispatch(eng engine.Engine, req protocol.Request) protocol.Response {
	switch {
	case req.Set != nil:
		if err := eng.Set(req.Set.Key, req.Set.Value); err != nil {
			return protocol.Failure(err.Error())
		}

		return protocol.OkEmpty()

	case req.Get != nil:
		value, ok, err := eng.Get(req.Get.Key)
		if err != nil {
			return protocol.Failure(err.Error())
		}

		if !ok {
			return protocol.OkMiss()
		}

		return protocol.OkValue(value)

	case req.Rm != nil:
		if err := eng.Remove(req.Rm.Key); err != nil {
			return protocol.Failure(err.Error())
		}

		return protocol.OkEmpty()

	default:
		return protocol.Failure("server: unreachable request variant")
	}
}

func writeResponse(conn net.Conn, resp protocol.Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Printf("kvs: server: write response to %s: %v", conn.RemoteAddr(), err)
	}
}
