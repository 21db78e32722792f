package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/lib/types"
)

func TestNewConfigIsValid(t *testing.T) {
	t.Parallel()

	conf := NewConfig()
	require.NoError(t, conf.Validate())
	assert.Equal(t, "127.0.0.1", conf.Host.String)
	assert.Equal(t, 30*time.Second, conf.DiscoveryTimeout.TimeDuration())
	assert.Equal(t, 10*time.Second, conf.ShutdownGrace.TimeDuration())
	assert.False(t, conf.FirefoxBin.Valid)
}

func TestConfigApply(t *testing.T) {
	t.Parallel()

	base := NewConfig()
	base.Prefs = map[string]interface{}{"a": 1, "b": "x"}

	got := base.Apply(Config{
		Host:         null.StringFrom("::1"),
		PollInterval: types.NullDurationFrom(time.Second),
		Prefs:        map[string]interface{}{"b": "y"},
	})
	assert.Equal(t, "::1", got.Host.String)
	assert.Equal(t, time.Second, got.PollInterval.TimeDuration())
	assert.Equal(t, 5*time.Second, got.DialTimeout.TimeDuration())
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "y"}, got.Prefs)
	assert.Equal(t, "x", base.Prefs["b"], "Apply must not modify the receiver's prefs")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"empty host", func(c *Config) { c.Host = null.StringFrom("") }, "host must not be empty"},
		{"hostname", func(c *Config) { c.Host = null.StringFrom("example.com") }, `host "example.com" is not an IP address`},
		{"zero poll", func(c *Config) { c.PollInterval = types.NullDurationFrom(0) }, "pollInterval must be positive"},
		{"negative dial", func(c *Config) { c.DialTimeout = types.NullDurationFrom(-time.Second) }, "dialTimeout must be positive"},
		{"negative grace", func(c *Config) { c.ShutdownGrace = types.NullDurationFrom(-time.Second) }, "shutdownGrace must not be negative"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			conf := NewConfig()
			tc.modify(&conf)
			err := conf.Validate()
			require.ErrorContains(t, err, tc.errMsg)

			var ecerr errext.HasExitCode
			require.ErrorAs(t, err, &ecerr)
			assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())
		})
	}

	t.Run("localhost and zero grace", func(t *testing.T) {
		t.Parallel()

		conf := NewConfig()
		conf.Host = null.StringFrom("localhost")
		conf.ShutdownGrace = types.NullDurationFrom(0)
		require.NoError(t, conf.Validate())
	})
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	t.Run("full", func(t *testing.T) {
		t.Parallel()

		conf, err := ParseYAML([]byte(`
firefoxBin: /opt/firefox/firefox
discoveryTimeout: 1m
prefs:
  browser.startup.homepage: "about:blank"
  layout.css.devPixelsPerPx: 2
extraArgs: ["--width=1280"]
`))
		require.NoError(t, err)
		assert.Equal(t, null.StringFrom("/opt/firefox/firefox"), conf.FirefoxBin)
		assert.Equal(t, time.Minute, conf.DiscoveryTimeout.TimeDuration())
		assert.False(t, conf.Host.Valid)
		assert.Equal(t, "about:blank", conf.Prefs["browser.startup.homepage"])
		assert.Equal(t, 2, conf.Prefs["layout.css.devPixelsPerPx"])
		assert.Equal(t, []string{"--width=1280"}, conf.ExtraArgs)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		conf, err := ParseYAML(nil)
		require.NoError(t, err)
		assert.Equal(t, Config{}, conf)
	})

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		_, err := ParseYAML([]byte("firefoxBinary: /usr/bin/firefox\n"))
		require.ErrorContains(t, err, "field firefoxBinary not found")
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Parallel()

	conf, err := ConfigFromEnv(map[string]string{
		"FIREFOX_BIN":            "/usr/bin/firefox-esr",
		"FOXSHOT_DIAL_TIMEOUT":   "250ms",
		"FOXSHOT_SHUTDOWN_GRACE": "0",
		"FOXSHOT_FIREFOX_ARGS":   "--safe-mode,--kiosk",
		"UNRELATED":              "1",
	})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/firefox-esr", conf.FirefoxBin.String)
	assert.Equal(t, 250*time.Millisecond, conf.DialTimeout.TimeDuration())
	assert.True(t, conf.ShutdownGrace.Valid)
	assert.Zero(t, conf.ShutdownGrace.TimeDuration())
	assert.False(t, conf.PollInterval.Valid)
	assert.Equal(t, []string{"--safe-mode", "--kiosk"}, conf.ExtraArgs)

	_, err = ConfigFromEnv(map[string]string{"FOXSHOT_POLL_INTERVAL": "often"})
	require.Error(t, err)
}

func TestGetConsolidatedConfig(t *testing.T) {
	t.Parallel()

	file := []byte("host: 10.0.0.1\ndialTimeout: 1s\npollInterval: 1s\n")
	envMap := map[string]string{
		"FOXSHOT_DIAL_TIMEOUT":  "2s",
		"FOXSHOT_POLL_INTERVAL": "2s",
	}
	flags := Config{PollInterval: types.NullDurationFrom(3 * time.Second)}

	conf, err := GetConsolidatedConfig(file, envMap, flags)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", conf.Host.String, "file overrides defaults")
	assert.Equal(t, 2*time.Second, conf.DialTimeout.TimeDuration(), "env overrides file")
	assert.Equal(t, 3*time.Second, conf.PollInterval.TimeDuration(), "flags override env")
	assert.Equal(t, 30*time.Second, conf.DiscoveryTimeout.TimeDuration(), "defaults survive")

	_, err = GetConsolidatedConfig(nil, nil, Config{Host: null.StringFrom("nope")})
	require.ErrorContains(t, err, "invalid configuration")
}
