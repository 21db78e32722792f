package marionette

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/log"
)

const readChunkSize = 32 << 10

// Conn is a framed Marionette byte stream. It is not safe for concurrent
// reads or concurrent writes; Client serializes access.
type Conn struct {
	nc     net.Conn
	addr   string
	logger *log.Logger

	// buf holds bytes read off the socket but not yet returned as a frame.
	buf     []byte
	scratch []byte

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the Marionette server listening on addr. A zero timeout
// means the dial is only bounded by ctx.
func Dial(ctx context.Context, addr string, timeout time.Duration, logger *log.Logger) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &errext.ConnectionError{Op: "dial", Addr: addr, Err: err}
	}
	return NewConn(nc, logger), nil
}

// NewConn wraps an already established connection.
func NewConn(nc net.Conn, logger *log.Logger) *Conn {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Conn{
		nc:      nc,
		addr:    nc.RemoteAddr().String(),
		logger:  logger,
		scratch: make([]byte, readChunkSize),
	}
}

// RemoteAddr returns the peer address as a string.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// ReadFrame blocks until one whole frame is buffered and returns its payload.
// There is no read timeout of its own; cancelling ctx aborts the read.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		payload, n, err := DecodeFrame(c.buf)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out := make([]byte, len(payload))
			copy(out, payload)
			c.consume(n)
			c.logger.Debugf("marionette:recv", "<- %s", out)
			return out, nil
		}

		if err := c.fill(ctx); err != nil {
			return nil, err
		}
	}
}

// WriteFrame sends payload as a single length-prefixed write.
func (c *Conn) WriteFrame(payload []byte) error {
	c.logger.Debugf("marionette:send", "-> %s", payload)
	if _, err := c.nc.Write(EncodeFrame(payload)); err != nil {
		return &errext.ConnectionError{Op: "write to", Addr: c.addr, Err: err}
	}
	return nil
}

// ExpectEOF reads once more and requires the peer to have closed the stream
// without sending anything else.
func (c *Conn) ExpectEOF(ctx context.Context) error {
	if len(c.buf) > 0 {
		return unexpectedTrailer(c.buf)
	}

	n, err := c.read(ctx)
	if n > 0 {
		return unexpectedTrailer(c.scratch[:n])
	}
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	}
	return nil
}

// Close closes the socket. Calling it more than once is fine.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

func (c *Conn) consume(n int) {
	rest := len(c.buf) - n
	if rest == 0 {
		c.buf = c.buf[:0]
		return
	}
	copy(c.buf, c.buf[n:])
	c.buf = c.buf[:rest]
}

func (c *Conn) fill(ctx context.Context) error {
	n, err := c.read(ctx)
	if n > 0 {
		c.buf = append(c.buf, c.scratch[:n]...)
		return nil
	}
	if errors.Is(err, io.EOF) {
		return &errext.ConnectionError{Op: "read from", Addr: c.addr, Err: io.ErrUnexpectedEOF}
	}
	return err
}

// read does one Read off the socket. A cancelled ctx interrupts it through
// an immediate read deadline.
func (c *Conn) read(ctx context.Context) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetReadDeadline(time.Now())
	})
	n, err := c.nc.Read(c.scratch)
	stop()

	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return n, fmt.Errorf("reading from %s: %w", c.addr, ctxErr)
	}
	return n, &errext.ConnectionError{Op: "read from", Addr: c.addr, Err: err}
}

func unexpectedTrailer(data []byte) error {
	const maxShown = 64
	if len(data) > maxShown {
		data = data[:maxShown]
	}
	return &errext.ProtocolError{
		Reason: "expected end of stream",
		Err:    fmt.Errorf("got %q", data),
	}
}
