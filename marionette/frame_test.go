package marionette

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/foxshot/errext"
)

func TestEncodeFrame(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0:", string(EncodeFrame(nil)))
	assert.Equal(t, "2:{}", string(EncodeFrame([]byte("{}"))))
	// multi-byte characters count as bytes, not runes
	assert.Equal(t, "5:\"ü\"x", string(EncodeFrame([]byte("\"ü\"x"))))
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	t.Parallel()

	payloads := []string{
		"",
		"{}",
		`[0,1,"WebDriver:Navigate",{"url":"https://example.com"}]`,
		"payload:with:colons",
		strings.Repeat("x", 70000),
	}
	for _, p := range payloads {
		frame := EncodeFrame([]byte(p))
		got, n, err := DecodeFrame(frame)
		require.NoError(t, err)
		assert.Equal(t, len(frame), n)
		assert.Equal(t, p, string(got))
	}
}

func TestDecodeFramePartial(t *testing.T) {
	t.Parallel()

	frame := EncodeFrame([]byte(`{"applicationType":"gecko"}`))
	for i := 0; i < len(frame); i++ {
		buf := append([]byte(nil), frame[:i]...)
		orig := append([]byte(nil), buf...)

		payload, n, err := DecodeFrame(buf)
		require.NoError(t, err, "prefix of %d bytes", i)
		assert.Zero(t, n)
		assert.Nil(t, payload)
		assert.Equal(t, orig, buf, "the buffer must not be modified")
	}
}

func TestDecodeFrameTwoInOneBuffer(t *testing.T) {
	t.Parallel()

	buf := append(EncodeFrame([]byte("first")), EncodeFrame([]byte("2:second"))...)

	p1, n1, err := DecodeFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(p1))

	p2, n2, err := DecodeFrame(buf[n1:])
	require.NoError(t, err)
	assert.Equal(t, "2:second", string(p2))
	assert.Equal(t, len(buf), n1+n2)
}

func TestDecodeFrameMalformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"letters before colon": "ab:{}",
		"empty length":         ":{}",
		"negative length":      "-1:{}",
		"garbage no colon":     "{\"a\"",
		"too many digits":      strings.Repeat("9", maxLengthDigits+1),
		"overflowing length":   "9223372036854775807:abc",
		"over frame limit":     strconv.Itoa(maxFrameSize+1) + ":",
	}
	for name, in := range tests {
		in := in
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, n, err := DecodeFrame([]byte(in))
			require.Error(t, err)
			assert.Zero(t, n)

			var perr *errext.ProtocolError
			require.True(t, errors.As(err, &perr))
			assert.False(t, perr.IsPeerError())
		})
	}
}
