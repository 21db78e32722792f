package firefox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/lib/testutils"
)

const prefsPath = "/profile/prefs.js"

func TestDiscoverPortAfterRewrite(t *testing.T) {
	t.Parallel()

	fs := testutils.MakeMemMapFs(t, map[string][]byte{prefsPath: []byte(`user_pref("marionette.port", 0);` + "\n")})

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = afero.WriteFile(fs, prefsPath, []byte(
			`user_pref("app.normandy.first_run", false);`+"\n"+
				`user_pref("marionette.port", 4444);`+"\n"), 0o644)
	}()

	port, err := DiscoverPort(context.Background(), fs, prefsPath, DiscoveryOptions{
		PollInterval: 10 * time.Millisecond,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 4444, port)
}

func TestDiscoverPortMissingFileAppears(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = afero.WriteFile(fs, prefsPath, []byte(`user_pref("marionette.port", 2828);`+"\n"), 0o644)
	}()

	port, err := DiscoverPort(context.Background(), fs, prefsPath, DiscoveryOptions{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2828, port)
}

func TestDiscoverPortTimeout(t *testing.T) {
	t.Parallel()

	fs := testutils.MakeMemMapFs(t, map[string][]byte{prefsPath: []byte(`user_pref("marionette.port", 0);` + "\n")})

	start := time.Now()
	_, err := DiscoverPort(context.Background(), fs, prefsPath, DiscoveryOptions{
		PollInterval: 10 * time.Millisecond,
		Timeout:      80 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var terr *errext.TimeoutError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.Equal(t, exitcodes.Timeout, terr.ExitCode())
	assert.NotEmpty(t, terr.Hint())
}

func TestDiscoverPortExited(t *testing.T) {
	t.Parallel()

	exited := make(chan struct{})
	close(exited)

	_, err := DiscoverPort(context.Background(), afero.NewMemMapFs(), prefsPath, DiscoveryOptions{
		PollInterval: 10 * time.Millisecond,
		Exited:       exited,
	})
	require.ErrorIs(t, err, ErrExitedEarly)
	var ecerr errext.HasExitCode
	require.ErrorAs(t, err, &ecerr)
	assert.Equal(t, exitcodes.BrowserLaunchFailed, ecerr.ExitCode())
}

func TestDiscoverPortContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DiscoverPort(ctx, afero.NewMemMapFs(), prefsPath, DiscoveryOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadPort(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string
		port    int
	}{
		"zero":              {`user_pref("marionette.port", 0);`, 0},
		"set":               {`user_pref("marionette.port", 4444);`, 4444},
		"partial write":     {`user_pref("marionette.port", 44`, 0},
		"indented":          {`  user_pref("marionette.port", 4444);`, 0},
		"other pref":        {`user_pref("marionette.portal", 4444);`, 0},
		"first non-zero":    {"user_pref(\"marionette.port\", 0);\nuser_pref(\"marionette.port\", 5555);\nuser_pref(\"marionette.port\", 6666);", 5555},
		"out of range port": {`user_pref("marionette.port", 70000);`, 0},
		"windows newlines":  {"user_pref(\"a\", 1);\r\nuser_pref(\"marionette.port\", 4444);\n", 4444},
	}
	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fs := testutils.MakeMemMapFs(t, map[string][]byte{prefsPath: []byte(tc.content)})
			assert.Equal(t, tc.port, readPort(fs, prefsPath))
		})
	}
}
