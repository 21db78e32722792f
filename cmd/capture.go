package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/foxshot/capture"
	"github.com/liuxd6825/foxshot/cmd/state"
	"github.com/liuxd6825/foxshot/env"
	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/marionette"
)

// captureCmd is shared by the screenshot and pdf commands, only the mode and
// the mode specific flags differ.
type captureCmd struct {
	gs   *state.GlobalState
	mode capture.Mode

	width, height string
	script        string
	summary       bool
	print         marionette.PrintOptions
	noShrink      bool
}

func (c *captureCmd) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", 0)
	flags.SortFlags = false
	if c.mode == capture.ModeScreenshot {
		flags.StringVarP(&c.width, "width", "w", "", "set the CSS width of the root element, e.g. 1024px")
		flags.StringVarP(&c.height, "height", "H", "", "set the CSS height of the root element, e.g. 768px")
	} else {
		c.print = marionette.DefaultPrintOptions()
		flags.BoolVar(&c.print.Landscape, "landscape", false, "print in landscape orientation")
		flags.BoolVar(&c.print.PrintBackground, "print-background", false, "include background colors and images")
		flags.Float64Var(&c.print.Scale, "scale", c.print.Scale, "scale factor of the rendering")
		flags.BoolVar(&c.noShrink, "no-shrink-to-fit", false, "don't shrink the content to fit the page width")
		flags.Float64Var(&c.print.PageWidth, "page-width", c.print.PageWidth, "paper width in cm")
		flags.Float64Var(&c.print.PageHeight, "page-height", c.print.PageHeight, "paper height in cm")
		flags.Float64Var(&c.print.MarginTop, "margin-top", c.print.MarginTop, "top margin in cm")
		flags.Float64Var(&c.print.MarginBottom, "margin-bottom", c.print.MarginBottom, "bottom margin in cm")
		flags.Float64Var(&c.print.MarginLeft, "margin-left", c.print.MarginLeft, "left margin in cm")
		flags.Float64Var(&c.print.MarginRight, "margin-right", c.print.MarginRight, "right margin in cm")
		flags.StringSliceVar(&c.print.PageRanges, "page-ranges", nil, "pages to print, e.g. 1-3,5")
	}
	flags.StringVar(&c.script, "javascript", "", "JavaScript to execute before the capture (alias --js)")
	flags.BoolVar(&c.summary, "summary", false, "print the capture result as YAML")
	return flags
}

// normalizeFlags maps the flag aliases to their canonical names.
func normalizeFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "js":
		name = "javascript"
	case "background":
		name = "print-background"
	}
	return pflag.NormalizedName(name)
}

func (c *captureCmd) run(cmd *cobra.Command, args []string) (err error) {
	gs := c.gs
	conf, err := getConsolidatedConfig(gs, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(gs)
	if err != nil {
		return err
	}

	output, err := c.outputPath(args[1])
	if err != nil {
		return err
	}
	req := capture.Request{
		Mode:   c.mode,
		URL:    args[0],
		Output: output,
		Width:  c.width,
		Height: c.height,
		Script: c.script,
	}
	if c.mode == capture.ModePDF {
		req.Print = c.print
		req.Print.ShrinkToFit = !c.noShrink
	}

	ctx, cancel := context.WithCancel(gs.Ctx)
	defer cancel()

	sigC := make(chan os.Signal, 2)
	gs.SignalNotify(sigC, os.Interrupt, syscall.SIGTERM)
	defer gs.SignalStop(sigC)
	interrupted := make(chan os.Signal, 1)
	go func() {
		select {
		case sig := <-sigC:
			logger.Warnf("capture", "stopping on signal %s", sig)
			interrupted <- sig
			cancel()
		case <-ctx.Done():
		}
	}()

	runner := capture.NewRunner(gs.FS, conf,
		capture.WithLogger(logger),
		capture.WithTracer(gs.TracerProvider.Tracer()),
		capture.WithBrowserEnv(env.Environ(gs.Env)...),
	)
	res, err := runner.Run(ctx, req)
	if err != nil {
		select {
		case sig := <-interrupted:
			return &errext.InterruptError{Reason: "capture interrupted by signal " + sig.String()}
		default:
		}
		return err
	}

	return c.report(res)
}

func (c *captureCmd) outputPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	cwd, err := c.gs.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, name), nil
}

func (c *captureCmd) report(res *capture.Result) error {
	con := c.gs.Console
	if c.summary {
		return con.PrintYAML(res)
	}
	if c.gs.Flags.Quiet {
		return nil
	}

	con.Printf("%s\n", con.Rule())
	con.PrintField("output", res.Output)
	con.PrintField("bytes", res.Bytes)
	con.PrintField("content type", res.ContentType)
	con.PrintField("browser", strings.TrimSpace(res.BrowserName+" "+res.BrowserVersion))
	con.PrintField("duration", res.Duration.Round(time.Millisecond))
	con.Printf("%s\n", con.Rule())
	return nil
}

func newCaptureCmd(gs *state.GlobalState, mode capture.Mode) *cobra.Command {
	c := &captureCmd{gs: gs, mode: mode}
	cmd := &cobra.Command{
		Args: exactArgsWithMsg(2, "arg should be the input URL and the output filename"),
		RunE: c.run,
	}
	cmd.Flags().SortFlags = false
	cmd.Flags().AddFlagSet(c.flagSet())
	cmd.Flags().AddFlagSet(configFlagSet())
	cmd.Flags().SetNormalizeFunc(normalizeFlags)
	return cmd
}

func getCmdScreenshot(gs *state.GlobalState) *cobra.Command {
	cmd := newCaptureCmd(gs, capture.ModeScreenshot)
	cmd.Use = "screenshot [flags] <input_url> <output_png>"
	cmd.Short = "Save a PNG of a page"
	cmd.Long = `Save a PNG screenshot of the page's root element.

The root element can be resized with --width and --height before the
screenshot is taken.`
	cmd.Example = `
  # Capture a page
  $ foxshot screenshot https://example.com example.png

  # At a fixed width, after hiding the cookie banner
  $ foxshot screenshot -w 1280px --js 'document.querySelector("#cookies").remove()' https://example.com example.png`[1:]
	return cmd
}

func getCmdPDF(gs *state.GlobalState) *cobra.Command {
	cmd := newCaptureCmd(gs, capture.ModePDF)
	cmd.Use = "pdf [flags] <input_url> <output_pdf>"
	cmd.Short = "Print a page to PDF"
	cmd.Long = `Print a page to a PDF document, the way Firefox's print dialog does.`
	cmd.Example = `
  # Print a page on US letter paper
  $ foxshot pdf https://example.com example.pdf

  # A4 landscape with backgrounds
  $ foxshot pdf --landscape --print-background --page-width 21 --page-height 29.7 https://example.com example.pdf`[1:]
	return cmd
}
