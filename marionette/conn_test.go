package marionette

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/lib/testutils"
	"github.com/liuxd6825/foxshot/log"
)

func newPipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()

	client, server := net.Pipe()
	c := NewConn(client, nil)
	t.Cleanup(func() {
		_ = c.Close()
		_ = server.Close()
	})
	return c, server
}

func writeAll(t *testing.T, w net.Conn, chunks ...string) <-chan struct{} {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range chunks {
			if _, err := w.Write([]byte(c)); err != nil {
				return
			}
		}
	}()
	return done
}

func TestConnReadFrameOrdering(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"one write":   {"5:first6:second"},
		"split reads": {"5", ":fi", "rst6:", "sec", "ond"},
		"byte by byte": func() []string {
			var out []string
			for _, b := range "5:first6:second" {
				out = append(out, string(b))
			}
			return out
		}(),
	}
	for name, chunks := range tests {
		chunks := chunks
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, server := newPipeConn(t)
			done := writeAll(t, server, chunks...)

			ctx := context.Background()
			first, err := c.ReadFrame(ctx)
			require.NoError(t, err)
			second, err := c.ReadFrame(ctx)
			require.NoError(t, err)

			assert.Equal(t, "first", string(first))
			assert.Equal(t, "second", string(second))
			<-done
		})
	}
}

func TestConnReadFrameUnexpectedEOF(t *testing.T) {
	t.Parallel()

	c, server := newPipeConn(t)
	go func() {
		_, _ = server.Write([]byte("10:abc"))
		_ = server.Close()
	}()

	_, err := c.ReadFrame(context.Background())
	require.Error(t, err)

	var cerr *errext.ConnectionError
	require.True(t, errors.As(err, &cerr), "got %T", err)
}

func TestConnReadFrameContextCancel(t *testing.T) {
	t.Parallel()

	c, _ := newPipeConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ReadFrame(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnWriteFrame(t *testing.T) {
	t.Parallel()

	logger, hook := testutils.NewLogger()
	client, server := net.Pipe()
	c := NewConn(client, log.New(logger, true, nil))
	defer func() { _ = c.Close() }()
	defer func() { _ = server.Close() }()

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		got <- string(buf[:n])
	}()

	require.NoError(t, c.WriteFrame([]byte(`[0,0,"WebDriver:NewSession",{}]`)))
	assert.Equal(t, `31:[0,0,"WebDriver:NewSession",{}]`, <-got)
	assert.True(t, hook.WaitFor("marionette:send", "WebDriver:NewSession", time.Second))

	require.NoError(t, server.Close())
	err := c.WriteFrame([]byte("{}"))
	var cerr *errext.ConnectionError
	assert.True(t, errors.As(err, &cerr))
}

func TestConnExpectEOF(t *testing.T) {
	t.Parallel()

	t.Run("clean close", func(t *testing.T) {
		t.Parallel()

		c, server := newPipeConn(t)
		require.NoError(t, server.Close())
		assert.NoError(t, c.ExpectEOF(context.Background()))
	})

	t.Run("trailing bytes", func(t *testing.T) {
		t.Parallel()

		c, server := newPipeConn(t)
		done := writeAll(t, server, "junk")

		err := c.ExpectEOF(context.Background())
		var perr *errext.ProtocolError
		require.True(t, errors.As(err, &perr), "got %v", err)
		<-done
	})

	t.Run("buffered leftovers", func(t *testing.T) {
		t.Parallel()

		c, server := newPipeConn(t)
		done := writeAll(t, server, "2:ok3:")

		_, err := c.ReadFrame(context.Background())
		require.NoError(t, err)
		<-done

		err = c.ExpectEOF(context.Background())
		var perr *errext.ProtocolError
		require.True(t, errors.As(err, &perr), "got %v", err)
	})
}

func TestConnCloseTwice(t *testing.T) {
	t.Parallel()

	c, _ := newPipeConn(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
