// Package actuator implements the daemon side of the line protocol: it
// accepts one orchestrator at a time and turns each command line into a
// pulse train.
package actuator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/protocol"
)

// MaxLineBytes bounds one request line.
const MaxLineBytes = 1024

// Executor runs decoded commands. *motion.Controller implements it.
type Executor interface {
	Execute(cmd protocol.Command) (int, error)
	MotorCount() int
}

// Server answers protocol lines on a stream listener.
type Server struct {
	exec Executor

	mu     sync.Mutex
	active net.Conn
	served int
}

// NewServer creates a server driving exec.
func NewServer(exec Executor) *Server {
	return &Server{exec: exec}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln one at a time. Each connection is served
// to completion before the next Accept. Serve closes ln and returns nil once
// ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.mu.Lock()
		if s.active != nil {
			s.active.Close()
		}
		s.mu.Unlock()
	})
	defer stop()
	defer ln.Close()

	debug.Info("Actuator listening on %s (%d motors)", ln.Addr(), s.exec.MotorCount())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				debug.Info("Actuator stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		s.active = conn
		s.served++
		s.mu.Unlock()

		s.handle(conn)

		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}
}

// Served returns the number of connections accepted so far.
func (s *Server) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr()
	debug.Info("Orchestrator connected from %s", peer)

	r := bufio.NewReaderSize(conn, MaxLineBytes)
	for {
		raw, err := r.ReadSlice(protocol.Delimiter)
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			debug.Warn("Request line from %s exceeds %d bytes", peer, MaxLineBytes)
			if err := discardLine(r); err != nil {
				return
			}
			if _, err := conn.Write(protocol.ErrorReply(fmt.Errorf("line exceeds %d bytes", MaxLineBytes))); err != nil {
				return
			}
			continue
		case errors.Is(err, io.EOF):
			debug.Info("Orchestrator %s disconnected", peer)
			return
		case err != nil:
			debug.Warn("Read from %s: %v", peer, err)
			return
		}

		line := strings.TrimSpace(string(raw))
		reply := s.reply(line)
		debug.Live("%s -> %s", line, strings.TrimSpace(string(reply)))
		if _, err := conn.Write(reply); err != nil {
			// Pins stay where the last command left them.
			debug.Warn("Write to %s: %v", peer, err)
			return
		}
	}
}

// discardLine skips the rest of an oversized line.
func discardLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice(protocol.Delimiter)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func (s *Server) reply(line string) []byte {
	cmd, err := protocol.ParseCommand(line, s.exec.MotorCount())
	if err != nil {
		debug.Warn("Rejected %q: %v", line, err)
		return protocol.ErrorReply(err)
	}
	if _, err := s.exec.Execute(cmd); err != nil {
		return protocol.ErrorReply(err)
	}
	return protocol.DoneReply()
}
