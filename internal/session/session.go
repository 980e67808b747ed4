// Package session executes a command sequence against the actuator: one
// connection, one outstanding command, abort on the first failure.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/link"
	"github.com/cjeanneret/CubeGo/internal/protocol"
)

var (
	ErrConnect         = errors.New("session: cannot connect to actuator")
	ErrTransport       = errors.New("session: transport failure")
	ErrAckTimeout      = errors.New("session: no reply before timeout")
	ErrRejected        = errors.New("session: actuator rejected command")
	ErrUnexpectedReply = errors.New("session: unexpected reply")
	ErrState           = errors.New("session: invalid state")
)

// State is the lifecycle position of a session.
type State int

const (
	Disconnected State = iota
	Connected
	Executing
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Aborted
}

// Event describes the outcome of one command.
type Event struct {
	Index     int // zero-based position in the sequence
	Command   protocol.Command
	Reply     string // trimmed reply, empty when none arrived
	Err       error
	SentAt    time.Time
	RepliedAt time.Time
}

// Options tune a session.
type Options struct {
	// AckTimeout bounds the wait for each reply. Zero waits forever.
	AckTimeout time.Duration
	// InterCommandDelay is slept after each DONE.
	InterCommandDelay time.Duration
	// ReplyBufferBytes is the longest accepted reply line. Defaults to 1024.
	ReplyBufferBytes int
	// OnCommand, when set, is called after every command.
	OnCommand func(Event)
}

// Report summarizes a session.
type Report struct {
	State    State
	Total    int // commands queued
	Sent     int // commands written to the link
	Acked    int // commands answered with DONE
	FailedAt int // index of the failing command, -1 if none
	Err      error
}

// Session owns one connection for its whole lifetime. It is not reusable:
// build a new session to try again.
type Session struct {
	dialer link.Dialer
	opts   Options

	state  State
	conn   link.Conn
	reader *bufio.Reader
	report Report
	sleep  func(time.Duration)
}

// New returns a disconnected session.
func New(d link.Dialer, opts Options) *Session {
	if opts.ReplyBufferBytes <= 0 {
		opts.ReplyBufferBytes = 1024
	}
	return &Session{
		dialer: d,
		opts:   opts,
		state:  Disconnected,
		report: Report{FailedAt: -1},
		sleep:  time.Sleep,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Report returns a snapshot of the progress so far.
func (s *Session) Report() Report {
	r := s.report
	r.State = s.state
	return r
}

// Connect opens the connection. On failure the session stays
// Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	if s.state != Disconnected {
		return fmt.Errorf("%w: connect while %s", ErrState, s.state)
	}
	debug.Info("Connecting to actuator at %s", s.dialer)
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrConnect, s.dialer, err)
		s.report.Err = err
		return err
	}
	s.conn = conn
	s.reader = bufio.NewReaderSize(conn, s.opts.ReplyBufferBytes)
	s.state = Connected
	debug.Info("Connected to actuator at %s", s.dialer)
	return nil
}

// Execute sends cmds in order, waiting for each reply before sending the
// next. It returns when every command got DONE (Completed) or on the first
// failure (Aborted). Commands already acknowledged are not undone. The
// connection is closed in both cases.
func (s *Session) Execute(ctx context.Context, cmds []protocol.Command) (Report, error) {
	if s.state != Connected {
		return s.Report(), fmt.Errorf("%w: execute while %s", ErrState, s.state)
	}
	s.state = Executing
	s.report.Total = len(cmds)

	for i, c := range cmds {
		if err := ctx.Err(); err != nil {
			return s.abort(i, fmt.Errorf("cancelled before command %d: %w", i+1, err))
		}

		ev := Event{Index: i, Command: c, SentAt: time.Now()}
		debug.Command(i+1, len(cmds), c.String())
		if _, err := s.conn.Write(c.Line()); err != nil {
			ev.Err = fmt.Errorf("%w: write %s: %w", ErrTransport, c, err)
			s.notify(ev)
			return s.abort(i, ev.Err)
		}
		s.report.Sent++

		reply, err := s.readReply()
		ev.RepliedAt = time.Now()
		ev.Reply = strings.TrimSpace(reply)
		if err == nil {
			err = checkReply(c, reply)
		}
		debug.Reply(i+1, reply)
		ev.Err = err
		s.notify(ev)
		if err != nil {
			return s.abort(i, err)
		}
		s.report.Acked++

		if s.opts.InterCommandDelay > 0 && i < len(cmds)-1 {
			s.sleep(s.opts.InterCommandDelay)
		}
	}

	s.close()
	s.state = Completed
	debug.Info("Session completed: %d/%d commands acknowledged", s.report.Acked, s.report.Total)
	return s.Report(), nil
}

// Close releases the connection of a session that will not execute.
func (s *Session) Close() error {
	if s.state == Connected {
		s.state = Aborted
		s.report.Err = fmt.Errorf("%w: closed before execution", ErrState)
	}
	return s.close()
}

func (s *Session) readReply() (string, error) {
	if d, ok := s.conn.(link.ReadDeadliner); ok && s.opts.AckTimeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(s.opts.AckTimeout)); err != nil {
			return "", fmt.Errorf("%w: set deadline: %w", ErrTransport, err)
		}
	}
	line, err := s.reader.ReadSlice(protocol.Delimiter)
	switch {
	case err == nil:
		return string(line), nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return "", fmt.Errorf("%w after %v", ErrAckTimeout, s.opts.AckTimeout)
	case errors.Is(err, bufio.ErrBufferFull):
		return string(line), fmt.Errorf("%w: reply exceeds %d bytes", ErrUnexpectedReply, s.opts.ReplyBufferBytes)
	case errors.Is(err, io.EOF):
		return string(line), fmt.Errorf("%w: connection closed by actuator", ErrTransport)
	}
	return "", fmt.Errorf("%w: read: %w", ErrTransport, err)
}

func checkReply(c protocol.Command, reply string) error {
	kind, msg := protocol.ClassifyReply(reply)
	switch kind {
	case protocol.Done:
		return nil
	case protocol.Error:
		return fmt.Errorf("%w: %s: %s", ErrRejected, c, msg)
	}
	return fmt.Errorf("%w: %s: %q", ErrUnexpectedReply, c, msg)
}

func (s *Session) abort(index int, err error) (Report, error) {
	s.close()
	s.state = Aborted
	s.report.FailedAt = index
	s.report.Err = err
	debug.Error(err)
	debug.Info("Session aborted at command %d/%d (%d acknowledged)", index+1, s.report.Total, s.report.Acked)
	return s.Report(), err
}

func (s *Session) notify(ev Event) {
	if s.opts.OnCommand != nil {
		s.opts.OnCommand(ev)
	}
}

func (s *Session) close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	return err
}

// Run connects and executes cmds in one call. The returned report is
// meaningful even when err is non-nil.
func Run(ctx context.Context, d link.Dialer, opts Options, cmds []protocol.Command) (Report, error) {
	s := New(d, opts)
	if err := s.Connect(ctx); err != nil {
		r := s.Report()
		r.Total = len(cmds)
		return r, err
	}
	return s.Execute(ctx, cmds)
}
