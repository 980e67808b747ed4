package session

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/CubeGo/internal/link"
	"github.com/cjeanneret/CubeGo/internal/protocol"
)

const closeConn = "<close>"

// fakeActuator accepts a single connection and answers each line with the
// reply chosen by handler. An empty reply sends nothing.
type fakeActuator struct {
	ln   net.Listener
	done chan struct{}

	mu        sync.Mutex
	lines     []string
	pipelined bool
}

func startFake(t *testing.T, handler func(i int, line string) string) *fakeActuator {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeActuator{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })

	go func() {
		defer close(f.done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for i := 0; ; i++ {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			f.mu.Lock()
			f.lines = append(f.lines, strings.TrimSpace(line))
			f.mu.Unlock()

			// Nothing else may arrive before this command is answered.
			_ = conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
			if _, err := r.Peek(1); err == nil {
				f.mu.Lock()
				f.pipelined = true
				f.mu.Unlock()
			}
			_ = conn.SetReadDeadline(time.Time{})

			reply := handler(i, line)
			switch reply {
			case "":
			case closeConn:
				return
			default:
				if _, err := conn.Write([]byte(reply)); err != nil {
					return
				}
			}
		}
	}()
	return f
}

func (f *fakeActuator) dialer() link.Dialer {
	return link.TCPDialer{Address: f.ln.Addr().String(), Timeout: time.Second}
}

// received waits for the actuator to see the connection close.
func (f *fakeActuator) received(t *testing.T) []string {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatal("fake actuator did not finish")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.False(t, f.pipelined, "a command was sent before the previous reply")
	return append([]string(nil), f.lines...)
}

func always(reply string) func(int, string) string {
	return func(int, string) string { return reply }
}

func commands(n int) []protocol.Command {
	cmds := make([]protocol.Command, n)
	for i := range cmds {
		sense := protocol.CW
		if i%2 == 1 {
			sense = protocol.CCW
		}
		cmds[i] = protocol.Command{Motor: i % 6, Sense: sense, Turns: 2 + 2*(i%2)}
	}
	return cmds
}

func lines(cmds []protocol.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

// ---------- Happy path ----------

func TestExecute_AllDone(t *testing.T) {
	fake := startFake(t, always("DONE\n"))
	cmds := commands(5)

	report, err := Run(context.Background(), fake.dialer(), Options{AckTimeout: time.Second}, cmds)
	require.NoError(t, err)

	assert.Equal(t, Completed, report.State)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 5, report.Sent)
	assert.Equal(t, 5, report.Acked)
	assert.Equal(t, -1, report.FailedAt)
	assert.Equal(t, lines(cmds), fake.received(t))
}

func TestExecute_ZeroCommands(t *testing.T) {
	fake := startFake(t, always("DONE\n"))

	report, err := Run(context.Background(), fake.dialer(), Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Completed, report.State)
	assert.Equal(t, 0, report.Sent)
	assert.Empty(t, fake.received(t))
}

func TestExecute_DoneWithWhitespace(t *testing.T) {
	fake := startFake(t, always("  DONE \r\n"))
	report, err := Run(context.Background(), fake.dialer(), Options{}, commands(2))
	require.NoError(t, err)
	assert.Equal(t, Completed, report.State)
	fake.received(t)
}

func TestExecute_StateTransitions(t *testing.T) {
	fake := startFake(t, always("DONE\n"))
	s := New(fake.dialer(), Options{})
	assert.Equal(t, Disconnected, s.State())

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, Connected, s.State())

	var during State
	s.opts.OnCommand = func(Event) { during = s.State() }
	_, err := s.Execute(context.Background(), commands(1))
	require.NoError(t, err)
	assert.Equal(t, Executing, during)
	assert.Equal(t, Completed, s.State())
	assert.True(t, s.State().Terminal())

	_, err = s.Execute(context.Background(), commands(1))
	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, s.Connect(context.Background()), ErrState)
	fake.received(t)
}

func TestExecute_InterCommandDelay(t *testing.T) {
	fake := startFake(t, always("DONE\n"))
	s := New(fake.dialer(), Options{InterCommandDelay: 100 * time.Millisecond})
	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, s.Connect(context.Background()))
	_, err := s.Execute(context.Background(), commands(4))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond}, slept)
	fake.received(t)
}

func TestExecute_Events(t *testing.T) {
	fake := startFake(t, always("DONE\n"))
	var events []Event
	opts := Options{OnCommand: func(ev Event) { events = append(events, ev) }}

	_, err := Run(context.Background(), fake.dialer(), opts, commands(3))
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i, ev.Index)
		assert.Equal(t, "DONE", ev.Reply)
		assert.NoError(t, ev.Err)
		assert.False(t, ev.RepliedAt.Before(ev.SentAt))
	}
	fake.received(t)
}

// ---------- Failures ----------

func TestExecute_ErrorOnThirdOfFive(t *testing.T) {
	fake := startFake(t, func(i int, _ string) string {
		if i == 2 {
			return "ERROR: Invalid format\n"
		}
		return "DONE\n"
	})
	cmds := commands(5)

	report, err := Run(context.Background(), fake.dialer(), Options{AckTimeout: time.Second}, cmds)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid format")

	assert.Equal(t, Aborted, report.State)
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 2, report.Acked)
	assert.Equal(t, 2, report.FailedAt)
	assert.Equal(t, lines(cmds[:3]), fake.received(t), "commands 4 and 5 must never be transmitted")
}

func TestExecute_UnexpectedReply(t *testing.T) {
	fake := startFake(t, always("OK\n"))
	report, err := Run(context.Background(), fake.dialer(), Options{}, commands(3))
	assert.ErrorIs(t, err, ErrUnexpectedReply)
	assert.Equal(t, Aborted, report.State)
	assert.Equal(t, 1, report.Sent)
	assert.Len(t, fake.received(t), 1)
}

func TestExecute_AckTimeout(t *testing.T) {
	fake := startFake(t, always(""))
	report, err := Run(context.Background(), fake.dialer(), Options{AckTimeout: 50 * time.Millisecond}, commands(3))
	assert.ErrorIs(t, err, ErrAckTimeout)
	assert.Equal(t, Aborted, report.State)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 0, report.Acked)
	assert.Len(t, fake.received(t), 1)
}

func TestExecute_ConnectionReset(t *testing.T) {
	fake := startFake(t, func(i int, _ string) string {
		if i == 1 {
			return closeConn
		}
		return "DONE\n"
	})
	report, err := Run(context.Background(), fake.dialer(), Options{AckTimeout: time.Second}, commands(4))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, Aborted, report.State)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Acked)
	assert.Equal(t, 1, report.FailedAt)
	fake.received(t)
}

func TestExecute_ReplyTooLong(t *testing.T) {
	fake := startFake(t, always("DONE"+strings.Repeat(".", 200)+"\n"))
	report, err := Run(context.Background(), fake.dialer(), Options{ReplyBufferBytes: 64}, commands(2))
	assert.ErrorIs(t, err, ErrUnexpectedReply)
	assert.Equal(t, Aborted, report.State)
	fake.received(t)
}

func TestExecute_CancelledBetweenCommands(t *testing.T) {
	fake := startFake(t, always("DONE\n"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := Options{OnCommand: func(Event) { cancel() }}

	report, err := Run(ctx, fake.dialer(), opts, commands(3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, report.State)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Acked)
	assert.Len(t, fake.received(t), 1)
}

func TestConnect_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	report, err := Run(context.Background(), link.TCPDialer{Address: addr, Timeout: time.Second}, Options{}, commands(2))
	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, Disconnected, report.State)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 2, report.Total)
}

func TestClose_BeforeExecute(t *testing.T) {
	fake := startFake(t, always("DONE\n"))
	s := New(fake.dialer(), Options{})
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Close())
	assert.Equal(t, Aborted, s.State())

	_, err := s.Execute(context.Background(), commands(1))
	assert.ErrorIs(t, err, ErrState)
	assert.Empty(t, fake.received(t))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.False(t, Executing.Terminal())
}
