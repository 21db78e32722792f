package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/marionette"
)

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	valid := Request{Mode: ModeScreenshot, URL: "https://example.com", Output: "out.png"}
	require.NoError(t, valid.Validate())

	pdf := Request{Mode: ModePDF, URL: "file:///tmp/a.html", Output: "out.pdf", Print: marionette.DefaultPrintOptions()}
	require.NoError(t, pdf.Validate())

	testCases := []struct {
		name   string
		modify func(*Request)
		errMsg string
	}{
		{"mode", func(r *Request) { r.Mode = "gif" }, `unknown capture mode "gif"`},
		{"url", func(r *Request) { r.URL = "" }, "an input URL is required"},
		{"bad url", func(r *Request) { r.URL = "http://[::1" }, "input URL"},
		{"output", func(r *Request) { r.Output = "" }, "an output filename is required"},
		{"pdf size", func(r *Request) { r.Mode = ModePDF; r.Width = "10px" }, "width and height only apply to screenshots"},
		{"scale", func(r *Request) { r.Print.Scale = -1 }, "print scale must be positive"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := valid
			tc.modify(&req)
			err := req.Validate()
			require.ErrorContains(t, err, tc.errMsg)

			var ecerr errext.HasExitCode
			require.ErrorAs(t, err, &ecerr)
			assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())
		})
	}
}
