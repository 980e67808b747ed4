package link

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tarm/serial"
)

// SerialDialer opens a serial line to an actuator wired over UART or USB.
// The read timeout is fixed when the port is opened.
type SerialDialer struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

func (d SerialDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        d.Device,
		Baud:        d.Baud,
		ReadTimeout: d.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.Device, err)
	}
	return &serialConn{port: port}, nil
}

func (d SerialDialer) String() string {
	return fmt.Sprintf("serial://%s@%d", d.Device, d.Baud)
}

// serialConn maps an empty read, which is how the port reports its read
// timeout, to os.ErrDeadlineExceeded.
type serialConn struct {
	port io.ReadWriteCloser
}

func (c *serialConn) Read(b []byte) (int, error) {
	n, err := c.port.Read(b)
	if n == 0 && (err == nil || err == io.EOF) {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

func (c *serialConn) Write(b []byte) (int, error) {
	return c.port.Write(b)
}

func (c *serialConn) Close() error {
	return c.port.Close()
}
