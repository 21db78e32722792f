package capture

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
	"github.com/liuxd6825/foxshot/marionette"
)

// Mode selects what a run produces.
type Mode string

// Capture modes.
const (
	ModeScreenshot Mode = "screenshot"
	ModePDF        Mode = "pdf"
)

// Request is a single capture.
type Request struct {
	Mode   Mode
	URL    string
	Output string

	// Width and Height are CSS lengths applied to the root element before a
	// screenshot, e.g. "1024px". Empty leaves the page alone.
	Width  string
	Height string
	// Script runs after navigation and layout, before the capture.
	Script string

	Print marionette.PrintOptions
}

// Validate checks the request is complete.
func (r Request) Validate() error {
	var errs []error
	switch r.Mode {
	case ModeScreenshot, ModePDF:
	default:
		errs = append(errs, fmt.Errorf("unknown capture mode %q", r.Mode))
	}
	if r.URL == "" {
		errs = append(errs, errors.New("an input URL is required"))
	} else if _, err := url.Parse(r.URL); err != nil {
		errs = append(errs, fmt.Errorf("input URL: %w", err))
	}
	if r.Output == "" {
		errs = append(errs, errors.New("an output filename is required"))
	}
	if r.Mode == ModePDF && (r.Width != "" || r.Height != "") {
		errs = append(errs, errors.New("width and height only apply to screenshots"))
	}
	if r.Print.Scale < 0 {
		errs = append(errs, fmt.Errorf("print scale must be positive, got %v", r.Print.Scale))
	}

	if err := errors.Join(errs...); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return nil
}

// Result describes a finished capture.
type Result struct {
	Mode        Mode   `json:"mode" yaml:"mode"`
	Output      string `json:"output" yaml:"output"`
	Bytes       int    `json:"bytes" yaml:"bytes"`
	ContentType string `json:"contentType" yaml:"contentType"`

	ProfileDir     string `json:"profileDir" yaml:"profileDir"`
	Port           int    `json:"port" yaml:"port"`
	SessionID      string `json:"sessionId" yaml:"sessionId"`
	BrowserName    string `json:"browserName" yaml:"browserName"`
	BrowserVersion string `json:"browserVersion" yaml:"browserVersion"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}
