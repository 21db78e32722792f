package tests

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/foxshot/cmd/state"
	"github.com/liuxd6825/foxshot/lib/testutils"
	"github.com/liuxd6825/foxshot/tests/marionettetest"
	"github.com/liuxd6825/foxshot/ui/console"
)

// Buffer is a goroutine safe in-memory stand-in for os.Stdout and os.Stderr.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Bytes returns a copy of everything written so far.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// Fd returns a descriptor that is never a terminal.
func (b *Buffer) Fd() uintptr { return uintptr(math.MaxUint32) }

// GlobalTestState is a wrapper around GlobalState for use in tests.
type GlobalTestState struct {
	*state.GlobalState
	Cancel func()

	Stdout, Stderr *Buffer
	LoggerHook     *testutils.SimpleLogrusHook

	Cwd string

	ExpectedExitCode int
}

// NewGlobalTestState returns an initialized GlobalTestState, mocking all
// GlobalState fields for use in tests. The file system is in memory; use
// UseOsFs for tests that launch a browser.
func NewGlobalTestState(tb testing.TB) *GlobalTestState {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	fs := afero.NewMemMapFs()
	cwd := string(filepath.Separator) + "test" + string(filepath.Separator)
	require.NoError(tb, fs.MkdirAll(cwd, 0o755))

	ts := &GlobalTestState{
		Cancel: cancel,
		Stdout: &Buffer{},
		Stderr: &Buffer{},
		Cwd:    cwd,
	}

	con := console.New(ts.Stdout, ts.Stderr, strings.NewReader(""), false, "")
	ts.GlobalState = state.NewGlobalStateWith(ctx, fs, con, map[string]string{}, []string{"foxshot"})

	ts.LoggerHook = testutils.NewLogHook()
	ts.Logger.SetLevel(logrus.InfoLevel)
	ts.Logger.AddHook(ts.LoggerHook)

	ts.Getwd = func() (string, error) { return ts.Cwd, nil }
	ts.OSExit = func(exitCode int) {
		cancel()
		assert.Equal(tb, ts.ExpectedExitCode, exitCode)
	}

	return ts
}

// UseOsFs switches the test state to the real file system rooted in a fresh
// temporary directory, which also becomes the working directory and the
// profile parent directory.
func (ts *GlobalTestState) UseOsFs(tb testing.TB) {
	tb.Helper()

	ts.FS = afero.NewOsFs()
	ts.Cwd = tb.TempDir()
	ts.Env["FOXSHOT_PROFILE_PARENT_DIR"] = filepath.Join(ts.Cwd, "profiles")
	require.NoError(tb, os.Mkdir(ts.Env["FOXSHOT_PROFILE_PARENT_DIR"], 0o755)) //nolint:forbidigo
}

// UseFakeFirefox makes the capture commands launch the test binary as a
// fake Firefox behaving as mode. The commands it served are logged to
// commandLog.
func (ts *GlobalTestState) UseFakeFirefox(mode, commandLog string) {
	ts.Env["FIREFOX_BIN"] = os.Args[0]
	ts.Env["FOXSHOT_POLL_INTERVAL"] = "10ms"
	ts.Env[marionettetest.FakeFirefoxEnv] = mode
	ts.Env[marionettetest.FakeLogEnv] = commandLog
}
