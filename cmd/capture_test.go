package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/foxshot/cmd/tests"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/lib/testutils"
	"github.com/liuxd6825/foxshot/tests/marionettetest"
)

func newCaptureTestState(t *testing.T, mode string) (*tests.GlobalTestState, string) {
	t.Helper()

	ts := tests.NewGlobalTestState(t)
	ts.UseOsFs(t)
	commandLog := filepath.Join(ts.Cwd, "commands.log")
	ts.UseFakeFirefox(mode, commandLog)
	return ts, commandLog
}

func assertProfilesRemoved(t *testing.T, ts *tests.GlobalTestState) {
	t.Helper()

	entries, err := os.ReadDir(ts.Env["FOXSHOT_PROFILE_PARENT_DIR"]) //nolint:forbidigo
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScreenshotCommand(t *testing.T) {
	t.Parallel()

	ts, commandLog := newCaptureTestState(t, marionettetest.ModeScreenshot)
	ts.CmdArgs = []string{
		"foxshot", "screenshot", "-w", "800px", "-H", "600px", "--js", "window.scrollTo(0, 0)",
		"https://example.com", "page.png",
	}
	ExecuteWithGlobalState(ts.GlobalState)

	data, err := os.ReadFile(filepath.Join(ts.Cwd, "page.png")) //nolint:forbidigo
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
	assertProfilesRemoved(t, ts)

	stdout := ts.Stdout.String()
	assert.Contains(t, stdout, "output:")
	assert.Contains(t, stdout, filepath.Join(ts.Cwd, "page.png"))
	assert.Contains(t, stdout, "firefox 115.0")

	cmds, err := os.ReadFile(commandLog) //nolint:forbidigo
	require.NoError(t, err)
	assert.Contains(t, string(cmds), `style.width = \"800px\"`)
	assert.Contains(t, string(cmds), `style.height = \"600px\"`)
	assert.Contains(t, string(cmds), `"script":"window.scrollTo(0, 0)"`)

	assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.InfoLevel, "FIREFOX STDOUT> fake firefox"))
}

func TestPDFCommandSummary(t *testing.T) {
	t.Parallel()

	ts, commandLog := newCaptureTestState(t, marionettetest.ModePDF)
	ts.CmdArgs = []string{
		"foxshot", "pdf", "--landscape", "--background", "--scale", "0.5", "--page-ranges", "1-2",
		"--summary", "https://example.com", "page.pdf",
	}
	ExecuteWithGlobalState(ts.GlobalState)

	stdout := ts.Stdout.String()
	assert.Contains(t, stdout, "mode: pdf\n")
	assert.Contains(t, stdout, "contentType: application/pdf\n")
	assert.Contains(t, stdout, "browserName: firefox\n")
	assertProfilesRemoved(t, ts)

	cmds, err := os.ReadFile(commandLog) //nolint:forbidigo
	require.NoError(t, err)
	assert.Contains(t, string(cmds), `"orientation":"landscape","background":true,"scale":0.5`)
	assert.Contains(t, string(cmds), `"pageRanges":["1-2"]`)
}

func TestQuietCaptureOnlyWritesTheFile(t *testing.T) {
	t.Parallel()

	ts, _ := newCaptureTestState(t, marionettetest.ModeScreenshot)
	ts.CmdArgs = []string{"foxshot", "-q", "screenshot", "https://example.com", "page.png"}
	ExecuteWithGlobalState(ts.GlobalState)

	assert.Empty(t, ts.Stdout.Bytes())
	assert.Empty(t, ts.Stderr.Bytes())
	_, err := os.Stat(filepath.Join(ts.Cwd, "page.png")) //nolint:forbidigo
	require.NoError(t, err)
}

func TestCaptureCommandFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mode     string
		env      map[string]string
		exitCode exitcodes.ExitCode
		errMsg   string
	}{
		{
			name: "protocol version", mode: marionettetest.ModeBadVersion,
			exitCode: exitcodes.ProtocolViolation, errMsg: "expected marionetteProtocol to be 3",
		},
		{
			name: "no root element", mode: marionettetest.ModeNoRoot,
			exitCode: exitcodes.ProtocolViolation, errMsg: "no element matches the selector",
		},
		{
			name: "port never published", mode: marionettetest.ModeHang,
			env:      map[string]string{"FOXSHOT_DISCOVERY_TIMEOUT": "300ms"},
			exitCode: exitcodes.Timeout, errMsg: "marionette port discovery timed out after 300ms",
		},
		{
			name: "browser crashed", mode: marionettetest.ModeCrash,
			exitCode: exitcodes.BrowserLaunchFailed, errMsg: "exited",
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts, _ := newCaptureTestState(t, tc.mode)
			for k, v := range tc.env {
				ts.Env[k] = v
			}
			ts.CmdArgs = []string{"foxshot", "screenshot", "https://example.com", "page.png"}
			ts.ExpectedExitCode = int(tc.exitCode)
			ExecuteWithGlobalState(ts.GlobalState)

			assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel, tc.errMsg))
			assertProfilesRemoved(t, ts)
			_, err := os.Stat(filepath.Join(ts.Cwd, "page.png")) //nolint:forbidigo
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestCaptureErrorsCarryHints(t *testing.T) {
	t.Parallel()

	ts, _ := newCaptureTestState(t, marionettetest.ModeScreenshot)
	ts.Env["FIREFOX_BIN"] = filepath.Join(ts.Cwd, "no-such-firefox")
	ts.CmdArgs = []string{"foxshot", "screenshot", "https://example.com", "page.png"}
	ts.ExpectedExitCode = int(exitcodes.BrowserLaunchFailed)
	ExecuteWithGlobalState(ts.GlobalState)

	var hint string
	for _, e := range ts.LoggerHook.Drain() {
		if e.Level == logrus.ErrorLevel {
			hint, _ = e.Data["hint"].(string)
		}
	}
	assert.Contains(t, hint, "FIREFOX_BIN")
}

func TestCaptureCommandArgs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"no output", []string{"screenshot", "https://example.com"}, "accepts 2 arg(s), received 1"},
		{"too many", []string{"pdf", "a", "b", "c"}, "accepts 2 arg(s), received 3"},
		{"pdf has no width", []string{"pdf", "-w", "10px", "https://example.com", "a.pdf"}, "unknown shorthand flag: 'w'"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := tests.NewGlobalTestState(t)
			ts.CmdArgs = append([]string{"foxshot"}, tc.args...)
			ts.ExpectedExitCode = -1
			ExecuteWithGlobalState(ts.GlobalState)

			assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel, tc.errMsg))
		})
	}
}

func TestCaptureInterruptedBySignal(t *testing.T) {
	t.Parallel()

	ts, _ := newCaptureTestState(t, marionettetest.ModeHang)
	ts.SignalNotify = func(c chan<- os.Signal, _ ...os.Signal) {
		go func() {
			time.Sleep(200 * time.Millisecond)
			c <- os.Interrupt
		}()
	}
	ts.CmdArgs = []string{"foxshot", "screenshot", "https://example.com", "page.png"}
	ts.ExpectedExitCode = int(exitcodes.ExternalAbort)
	ExecuteWithGlobalState(ts.GlobalState)

	entries := ts.LoggerHook.Drain()
	assert.True(t, testutils.LogContains(entries, logrus.WarnLevel, "stopping on signal interrupt"))
	assert.True(t, testutils.LogContains(entries, logrus.ErrorLevel, "capture interrupted by signal interrupt"))
	assertProfilesRemoved(t, ts)
	assert.False(t, strings.Contains(ts.Stdout.String(), "output:"))
}
