package firefox

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
)

func TestProfile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/tmp", 0o755))

	p, err := NewProfile(fs, "/tmp", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Dir(), "/tmp/"+profilePrefix), p.Dir())
	assert.Equal(t, p.Dir()+"/prefs.js", p.PrefsPath())

	require.NoError(t, p.WritePrefs(map[string]interface{}{
		"browser.shell.checkDefaultBrowser": false,
		"app.update.auto":                   false,
		"layout.css.devPixelsPerPx":         "2.0",
		"dom.max_script_run_time":           0,
	}))
	data, err := afero.ReadFile(fs, p.PrefsPath())
	require.NoError(t, err)
	assert.Equal(t, `user_pref("marionette.port", 0);
user_pref("app.update.auto", false);
user_pref("browser.shell.checkDefaultBrowser", false);
user_pref("dom.max_script_run_time", 0);
user_pref("layout.css.devPixelsPerPx", "2.0");
`, string(data))

	require.NoError(t, p.Cleanup())
	require.NoError(t, p.Cleanup())
	exists, err := afero.DirExists(fs, p.Dir())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProfileMinimalPrefs(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	p, err := NewProfile(fs, "", nil)
	require.NoError(t, err)

	require.NoError(t, p.WritePrefs(nil))
	data, err := afero.ReadFile(fs, p.PrefsPath())
	require.NoError(t, err)
	assert.Equal(t, "user_pref(\"marionette.port\", 0);\n", string(data))
}

func TestProfileRejectedPrefs(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]interface{}{
		"port override": {PortPref: 2828},
		"nested value":  {"a.b": map[string]interface{}{"c": 1}},
		"fraction":      {"a.b": 1.5},
	}
	for name, prefs := range tests {
		prefs := prefs
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := NewProfile(afero.NewMemMapFs(), "", nil)
			require.NoError(t, err)

			err = p.WritePrefs(prefs)
			require.Error(t, err)
			var ecerr errext.HasExitCode
			require.ErrorAs(t, err, &ecerr)
			assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())
		})
	}
}

func TestProfileReadOnlyFs(t *testing.T) {
	t.Parallel()

	_, err := NewProfile(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/nope", nil)
	var ferr *errext.FilesystemError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, exitcodes.FilesystemFailure, ferr.ExitCode())
}
