// Package link opens the byte stream between the orchestrator and the
// actuator.
package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cjeanneret/CubeGo/internal/config"
)

// Conn is a reliable, ordered, bidirectional byte stream.
type Conn interface {
	io.ReadWriteCloser
}

// ReadDeadliner is implemented by connections that support bounded reads.
// A read past the deadline fails with an error matching
// os.ErrDeadlineExceeded.
type ReadDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Dialer opens a new connection to the actuator.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	String() string
}

// TCPDialer connects over TCP.
type TCPDialer struct {
	Address string
	Timeout time.Duration
}

func (d TCPDialer) Dial(ctx context.Context) (Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	c, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		// Commands are tiny and latency matters more than batching.
		_ = tc.SetNoDelay(true)
	}
	return c, nil
}

func (d TCPDialer) String() string {
	return "tcp://" + d.Address
}

// FromConfig builds the dialer selected by session.transport.
func FromConfig(cfg *config.Config) (Dialer, error) {
	switch cfg.Session.Transport {
	case "tcp":
		return TCPDialer{Address: cfg.Session.Address, Timeout: cfg.DialTimeout()}, nil
	case "serial":
		return SerialDialer{
			Device:      cfg.Session.SerialDevice,
			Baud:        cfg.Session.SerialBaud,
			ReadTimeout: cfg.AckTimeout(),
		}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Session.Transport)
}
