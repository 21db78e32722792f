package types

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseExtendedDuration(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		durStr string
		expErr bool
		expDur time.Duration
	}{
		{"", true, 0},
		{"d", true, 0},
		{"d2h", true, 0},
		{"2.1d", true, 0},
		{"2d-2h", true, 0},
		{"2da", true, 0},
		{"150", false, 150 * time.Millisecond},
		{"1.12s", false, 1120 * time.Millisecond},
		{"30s", false, 30 * time.Second},
		{"1d", false, 24 * time.Hour},
		{"1d23h", false, 47 * time.Hour},
		{"-1d2h", false, -26 * time.Hour},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("tc_%s_exp", tc.durStr), func(t *testing.T) {
			t.Parallel()
			result, err := ParseExtendedDuration(tc.durStr)
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expDur, result)
		})
	}
}

func TestNullDuration(t *testing.T) {
	t.Parallel()

	t.Run("JSON", func(t *testing.T) {
		t.Parallel()
		var d NullDuration
		require.NoError(t, json.Unmarshal([]byte(`"10s"`), &d))
		assert.Equal(t, NullDurationFrom(10*time.Second), d)

		require.NoError(t, json.Unmarshal([]byte(`null`), &d))
		assert.False(t, d.Valid)

		assert.Error(t, json.Unmarshal([]byte(`"ten"`), &d))
	})

	t.Run("Text", func(t *testing.T) {
		t.Parallel()
		var d NullDuration
		require.NoError(t, d.UnmarshalText([]byte("100ms")))
		assert.Equal(t, 100*time.Millisecond, d.TimeDuration())
		assert.True(t, d.Valid)

		require.NoError(t, d.UnmarshalText(nil))
		assert.False(t, d.Valid)
		assert.Equal(t, Duration(0), d.ValueOrZero())
	})

	t.Run("YAML", func(t *testing.T) {
		t.Parallel()
		var cfg struct {
			Grace NullDuration `yaml:"grace"`
			Poll  NullDuration `yaml:"poll"`
		}
		require.NoError(t, yaml.Unmarshal([]byte("grace: 2s\n"), &cfg))
		assert.Equal(t, NullDurationFrom(2*time.Second), cfg.Grace)
		assert.False(t, cfg.Poll.Valid)

		out, err := yaml.Marshal(cfg)
		require.NoError(t, err)
		assert.Contains(t, string(out), "grace: 2s")
	})
}
