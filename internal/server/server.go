// Package server implements the Hashline TCP server: connection scheduling,
// command dispatch, and the glue between the wire protocol and the store.
//
// Scheduling model: one acceptance goroutine plus one session goroutine per
// connection, parked in the Go runtime's netpoller while waiting for data.
// The netpoller is the shared readiness context, multiplexing every blocked
// read onto edge-triggered OS primitives without consuming a thread. What
// the server bounds is work, not waiting: a weighted semaphore with one
// slot per configured worker caps how many sessions decode, dispatch, and
// reply at the same time, and a session holds a slot only for that span,
// releasing it before the next blocking read. An idle connection therefore
// never pins a worker slot. A second semaphore sized to the configured
// backlog caps concurrent sessions; beyond it, new sockets wait in the
// kernel's accept queue.
//
// Each session owns a protocol.LineBuffer, so a command split across many
// tiny reads and a burst of pipelined commands in one read both decode
// correctly. All replies produced by one read are flushed in a single
// write.
//
// Example usage:
//
//	srv := server.New(config.DefaultServerConfig(), store.New())
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hashline/hashline/pkg/config"
	"github.com/hashline/hashline/pkg/protocol"
	"github.com/hashline/hashline/pkg/store"
)

// readChunkSize is the size of the per-session read buffer. Reads larger
// than one chunk simply arrive as several feeds to the line buffer.
const readChunkSize = 4096

// Server is a Hashline server instance. It owns the listener, the worker
// slots, and the set of live sessions. Construct with New; a zero Server is
// not usable.
type Server struct {
	cfg   *config.ServerConfig
	table *store.Table

	// workers bounds concurrent command processing; slots bounds
	// concurrent sessions.
	workers *semaphore.Weighted
	slots   *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]net.Conn
	closed   bool
}

// New creates a Server that will serve table on the address in cfg.
// The server is not started until Start is called.
func New(cfg *config.ServerConfig, table *store.Table) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		table:    table,
		workers:  semaphore.NewWeighted(int64(cfg.Workers)),
		slots:    semaphore.NewWeighted(int64(cfg.Backlog)),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]net.Conn),
	}
}

// Start begins listening and blocks until Stop is called or the listener
// fails. It runs the acceptance loop, then waits for every session to
// finish.
//
// Returns:
//   - nil after a clean Stop
//   - Error if the listener cannot be created
func (s *Server) Start() error {
	addr := s.cfg.Address()
	lc := net.ListenConfig{}
	listener, err := lc.Listen(s.ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	log.Printf("Hashline server listening on %s (%d workers)", addr, s.cfg.Workers)

	err = s.acceptLoop()
	s.wg.Wait()
	return err
}

// Stop shuts the server down: it closes the listener, then closes every
// live session so Start returns. In-flight commands finish; the table is
// left intact.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.sessions))
	for _, c := range s.sessions {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}

// Addr returns the address the server is listening on, or nil before
// Start has bound the listener. Useful when the configured port is 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop accepts connections and launches a session goroutine for
// each. A session slot is acquired before each accept, so at most Backlog
// sessions are live at once; beyond that, pending sockets wait in the
// kernel backlog. Returns when the listener closes or Stop cancels the
// server context.
func (s *Server) acceptLoop() error {
	for {
		if err := s.slots.Acquire(s.ctx, 1); err != nil {
			return nil
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.slots.Release(1)
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Failed to accept connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.slots.Release(1)
			s.serve(conn)
		}()
	}
}

// serve runs one connection's whole session: block for data, take a worker
// slot, decode and dispatch every buffered line, reply, release the slot,
// and block again until the peer closes, errors, or quits. The worker
// slot is held only while processing, never across a blocking read.
func (s *Server) serve(conn net.Conn) {
	id := uuid.Must(uuid.NewV7()).String()
	s.register(id, conn)

	defer func() {
		s.unregister(id)
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("conn %s: error closing: %v", id, err)
		}
		log.Printf("conn %s: closed", id)
	}()

	log.Printf("conn %s: accepted from %s", id, conn.RemoteAddr())

	readTimeout := time.Duration(s.cfg.ReadTimeout) * time.Second
	writeTimeout := time.Duration(s.cfg.WriteTimeout) * time.Second

	var lb protocol.LineBuffer
	chunk := make([]byte, readChunkSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			if aerr := s.workers.Acquire(s.ctx, 1); aerr != nil {
				return
			}

			lb.Feed(chunk[:n])
			var out bytes.Buffer
			quit := s.drain(&lb, &out, id)

			var werr error
			if out.Len() > 0 {
				if werr = conn.SetWriteDeadline(time.Now().Add(writeTimeout)); werr == nil {
					_, werr = conn.Write(out.Bytes())
				}
			}
			s.workers.Release(1)

			if werr != nil {
				log.Printf("conn %s: write error: %v", id, werr)
				return
			}
			if quit {
				return
			}
		}

		if err != nil {
			// EOF is the normal peer close; anything else tears down
			// just this connection.
			return
		}
	}
}

// drain processes every complete line currently buffered, appending one
// reply line per command (and the multi-line dump body). It reports
// whether a quit command ended the session; pipelined input after a quit
// is discarded.
func (s *Server) drain(lb *protocol.LineBuffer, out *bytes.Buffer, id string) (quit bool) {
	for {
		line, ok, err := lb.Next()
		if err != nil {
			log.Printf("conn %s: oversized line dropped", id)
			writeLine(out, protocol.ReplyErrLineLimit)
			continue
		}
		if !ok {
			return false
		}

		if s.dispatch(line, out) {
			return true
		}
	}
}

func (s *Server) register(id string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = conn
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func writeLine(out *bytes.Buffer, line string) {
	out.WriteString(line)
	out.WriteByte('\n')
}
