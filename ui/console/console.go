// Package console wraps the process' standard streams for foxshot's
// command line output.
package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Console enables synced writing to stdout and stderr ...
type Console struct {
	IsTTY          bool
	outMx          *sync.Mutex
	Stdout, Stderr io.Writer
	Stdin          io.Reader
	stdoutFd       OSFile
	theme          *theme
	logger         *logrus.Logger
}

// New returns the pointer to a new Console value. Colors are only used when
// both outputs are terminals and colorize is set.
func New(stdout, stderr OSFileW, stdin io.Reader, colorize bool, termType string) *Console {
	outMx := &sync.Mutex{}
	outCW := newConsoleWriter(stdout, outMx, termType)
	errCW := newConsoleWriter(stderr, outMx, termType)
	isTTY := outCW.isTTY && errCW.isTTY

	var th *theme
	var outW, errW io.Writer = outCW, errCW
	if isTTY && colorize {
		th = &theme{
			foreground: newColor(color.FgCyan),
			value:      newColor(color.FgHiWhite, color.Bold),
			failure:    newColor(color.FgRed),
		}
	} else {
		outW = colorable.NewNonColorable(outCW)
		errW = colorable.NewNonColorable(errCW)
	}

	logger := &logrus.Logger{
		Out: errW,
		Formatter: &logrus.TextFormatter{
			ForceColors:   th != nil,
			DisableColors: th == nil,
		},
		Hooks: make(logrus.LevelHooks),
		Level: logrus.InfoLevel,
	}

	return &Console{
		IsTTY:    isTTY,
		outMx:    outMx,
		Stdout:   outW,
		Stderr:   errW,
		Stdin:    stdin,
		stdoutFd: stdout,
		theme:    th,
		logger:   logger,
	}
}

// ApplyTheme adds ANSI color escape sequences to s if themes are enabled;
// otherwise it returns s unchanged.
func (c *Console) ApplyTheme(s string) string {
	if c.colorized() {
		return c.theme.foreground.Sprint(s)
	}

	return s
}

// Banner returns the foxshot banner, colored if themes are enabled.
func (c *Console) Banner() string {
	return c.ApplyTheme(strings.Join([]string{
		`   __           _         _   `,
		`  / _|_____ __ | |_  ___ | |_ `,
		` |  _/ _ \ \ / | ' \/ _ \|  _|`,
		` |_| \___/_\_\ |_||_\___/ \__|`,
	}, "\n"))
}

// GetLogger returns the preconfigured plain-text logger. It will be configured
// to output colors if themes are enabled.
func (c *Console) GetLogger() *logrus.Logger {
	return c.logger
}

// SetLogger overrides the preconfigured logger.
func (c *Console) SetLogger(l *logrus.Logger) {
	c.logger = l
}

// Print writes s to stdout.
func (c *Console) Print(s string) {
	if _, err := fmt.Fprint(c.Stdout, s); err != nil {
		c.logger.Errorf("could not print '%s' to stdout: %s", s, err.Error())
	}
}

// Printf writes s to stdout, formatted with optional arguments.
func (c *Console) Printf(s string, a ...interface{}) {
	if _, err := fmt.Fprintf(c.Stdout, s, a...); err != nil {
		c.logger.Errorf("could not print '%s' to stdout: %s", s, err.Error())
	}
}

// PrintYAML marshals v to YAML, and writes the result to stdout. It returns an
// error if marshalling fails.
func (c *Console) PrintYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal YAML: %w", err)
	}
	c.Print(string(data))
	return nil
}

// PrintJSON writes v to stdout as a single line of JSON.
func (c *Console) PrintJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal JSON: %w", err)
	}
	c.Print(string(data) + "\n")
	return nil
}

// PrintField writes an aligned "name: value" line, highlighting the value if
// themes are enabled.
func (c *Console) PrintField(name string, value interface{}) {
	v := fmt.Sprint(value)
	if c.colorized() {
		v = c.theme.value.Sprint(v)
	}
	c.Printf("  %-16s %s\n", name+":", v)
}

// Failure colors s as an error if themes are enabled.
func (c *Console) Failure(s string) string {
	if c.colorized() {
		return c.theme.failure.Sprint(s)
	}
	return s
}

// TermWidth returns the terminal window width in characters. If the window size
// lookup fails, or if we're not running in a TTY (interactive terminal), the
// default value of 80 will be returned. err will be non-nil if the lookup fails.
func (c *Console) TermWidth() (int, error) {
	if !c.IsTTY {
		return defaultTermWidth, nil
	}

	width, _, err := term.GetSize(int(c.stdoutFd.Fd()))
	if !(width > 0) || err != nil {
		return defaultTermWidth, err
	}

	return width, nil
}

// Rule returns a horizontal line as wide as the terminal, capped at
// maxRuleWidth.
func (c *Console) Rule() string {
	width, _ := c.TermWidth()
	if width > maxRuleWidth {
		width = maxRuleWidth
	}
	return c.ApplyTheme(strings.Repeat("─", width-termPadding))
}

func (c *Console) colorized() bool {
	return c.theme != nil
}

// OSFile is a subset of the functionality implemented by os.File.
type OSFile interface {
	Fd() uintptr
}

// OSFileW is the writer variant of OSFile, typically representing os.Stdout and
// os.Stderr.
type OSFileW interface {
	io.Writer
	OSFile
}

// theme is a collection of colors supported by the console output.
type theme struct {
	foreground *color.Color
	value      *color.Color
	failure    *color.Color
}

// A writer that syncs writes with a mutex and, if the output is a TTY, clears
// before newlines.
type consoleWriter struct {
	OSFileW
	isTTY bool
	mutex *sync.Mutex
}

func newConsoleWriter(out OSFileW, mx *sync.Mutex, termType string) *consoleWriter {
	isTTY := termType != "dumb" && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()))
	return &consoleWriter{out, isTTY, mx}
}

func (w *consoleWriter) Write(p []byte) (n int, err error) {
	origLen := len(p)
	if w.isTTY {
		// Add a TTY code to erase till the end of line with each new line
		p = bytes.ReplaceAll(p, []byte{'\n'}, []byte{'\x1b', '[', '0', 'K', '\n'})
	}

	w.mutex.Lock()
	n, err = w.OSFileW.Write(p)
	w.mutex.Unlock()

	if err != nil && n < origLen {
		return n, err
	}
	return origLen, err
}

// newColor returns the requested color with the given attributes.
func newColor(attributes ...color.Attribute) *color.Color {
	c := color.New(attributes...)
	c.EnableColor()
	return c
}
