package marionette

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/liuxd6825/foxshot/errext"
)

// maxLengthDigits bounds the decimal length prefix. Anything longer can't be
// a valid frame and is rejected before the colon shows up.
const maxLengthDigits = 20

// maxFrameSize caps a single frame. Full page screenshots of very long
// documents stay well below it.
const maxFrameSize = 1 << 30

// EncodeFrame prefixes payload with its decimal byte length and a colon.
func EncodeFrame(payload []byte) []byte {
	size := strconv.Itoa(len(payload))
	out := make([]byte, 0, len(size)+1+len(payload))
	out = append(out, size...)
	out = append(out, ':')
	return append(out, payload...)
}

// DecodeFrame extracts the first complete frame from buf. It returns the
// payload, which aliases buf, and the number of bytes the frame occupied.
// n == 0 with a nil error means buf doesn't hold a whole frame yet and must
// be left as is until more bytes arrive.
func DecodeFrame(buf []byte) (payload []byte, n int, err error) {
	colon := bytes.IndexByte(buf, ':')
	if colon < 0 {
		if err := checkLengthPrefix(buf); err != nil {
			return nil, 0, err
		}
		return nil, 0, nil
	}

	prefix := buf[:colon]
	if len(prefix) == 0 {
		return nil, 0, malformedLength(prefix)
	}
	if err := checkLengthPrefix(prefix); err != nil {
		return nil, 0, err
	}

	size, perr := strconv.Atoi(string(prefix))
	if perr != nil {
		return nil, 0, &errext.ProtocolError{Reason: "malformed frame length", Err: perr}
	}

	if size > maxFrameSize {
		return nil, 0, &errext.ProtocolError{
			Reason: "malformed frame length",
			Err:    fmt.Errorf("frame of %d bytes exceeds the %d byte limit", size, maxFrameSize),
		}
	}

	end := colon + 1 + size
	if len(buf) < end {
		return nil, 0, nil
	}

	return buf[colon+1 : end], end, nil
}

func checkLengthPrefix(prefix []byte) error {
	if len(prefix) > maxLengthDigits {
		return malformedLength(prefix[:maxLengthDigits+1])
	}
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return malformedLength(prefix)
		}
	}
	return nil
}

func malformedLength(prefix []byte) error {
	return &errext.ProtocolError{
		Reason: "malformed frame length",
		Err:    fmt.Errorf("length prefix %q is not a decimal number", prefix),
	}
}
