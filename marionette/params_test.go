package marionette

import (
	"testing"

	"github.com/mailru/easyjson/jwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionParamsCapabilities(t *testing.T) {
	t.Parallel()

	w := jwriter.Writer{}
	newSessionParams{capabilities: map[string]interface{}{
		"acceptInsecureCerts": true,
		"moz:firefoxOptions": map[string]interface{}{
			"args":  []interface{}{"-headless"},
			"prefs": map[string]interface{}{"dom.disable_beforeunload": true, "layout.css.devPixelsPerPx": "1.0"},
		},
		"pageLoadStrategy": "eager",
		"timeouts":         map[string]interface{}{"script": 30000, "implicit": int64(0), "pageLoad": 1.5e5},
		"proxy":            nil,
	}}.MarshalEasyJSON(&w)
	require.NoError(t, w.Error)

	out, err := w.BuildBytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"capabilities":{"alwaysMatch":{
		"acceptInsecureCerts": true,
		"moz:firefoxOptions": {"args":["-headless"],"prefs":{"dom.disable_beforeunload":true,"layout.css.devPixelsPerPx":"1.0"}},
		"pageLoadStrategy": "eager",
		"timeouts": {"script":30000,"implicit":0,"pageLoad":150000},
		"proxy": null
	}}}`, string(out))
}

func TestNewSessionParamsEmpty(t *testing.T) {
	t.Parallel()

	w := jwriter.Writer{}
	newSessionParams{}.MarshalEasyJSON(&w)
	out, err := w.BuildBytes()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))
}

func TestNewSessionParamsUnsupportedValue(t *testing.T) {
	t.Parallel()

	_, err := encodeCommand(&Command{
		Name:   "WebDriver:NewSession",
		Params: newSessionParams{capabilities: map[string]interface{}{"bad": struct{}{}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported capability value of type struct {}")
}
