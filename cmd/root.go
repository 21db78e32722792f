// Package cmd implements the foxshot command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/foxshot/cmd/state"
	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/internal/lib/trace"
	"github.com/liuxd6825/foxshot/lib/consts"
	"github.com/liuxd6825/foxshot/log"
)

const waitLoggerCloseTimeout = time.Second * 5

// Execute builds the GlobalState from the real process and runs the root
// command. It is called by main.main().
func Execute() {
	ExecuteWithGlobalState(state.NewGlobalState(context.Background()))
}

// ExecuteWithGlobalState runs the root command with an existing GlobalState.
func ExecuteWithGlobalState(gs *state.GlobalState) {
	newRootCommand(gs).execute()
}

// This is to keep all fields needed for the main/root foxshot command
type rootCommand struct {
	globalState *state.GlobalState

	cmd            *cobra.Command
	stopLoggersCh  chan struct{}
	loggersWg      sync.WaitGroup
	loggerIsRemote bool
}

func newRootCommand(gs *state.GlobalState) *rootCommand {
	c := &rootCommand{
		globalState:   gs,
		stopLoggersCh: make(chan struct{}),
	}
	// the base command when called without any subcommands.
	rootCmd := &cobra.Command{
		Use:               gs.BinaryName,
		Short:             "capture web pages with a headless Firefox",
		Long:              "\n" + gs.Console.Banner() + "\n\nRender a page in headless Firefox over Marionette and save it as PNG or PDF.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
		Version:           consts.FullVersion(),
	}
	rootCmd.SetVersionTemplate(
		`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "v%s\n" .Version}}`,
	)

	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	if len(gs.CmdArgs) > 0 {
		rootCmd.SetArgs(gs.CmdArgs[1:])
	}
	rootCmd.SetOut(gs.Console.Stdout)
	rootCmd.SetErr(gs.Console.Stderr)
	rootCmd.SetIn(gs.Console.Stdin)

	subCommands := []func(*state.GlobalState) *cobra.Command{
		getCmdScreenshot, getCmdPDF, getCmdConfig, getCmdVersion,
	}
	for _, sc := range subCommands {
		rootCmd.AddCommand(sc(gs))
	}

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if err := c.setupLoggers(c.stopLoggersCh); err != nil {
		return err
	}
	if err := c.setupTracing(); err != nil {
		return err
	}

	c.globalState.Logger.Debugf("foxshot version: v%s", consts.FullVersion())
	return nil
}

func (c *rootCommand) execute() {
	ctx, cancel := context.WithCancel(c.globalState.Ctx)
	c.globalState.Ctx = ctx

	exitCode := errext.UnknownExitCode
	defer func() {
		cancel()
		c.stopTracing()
		c.stopLoggers()
		c.globalState.OSExit(exitCode)
	}()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unexpected foxshot panic: %s\n%s", r, debug.Stack())
			if c.loggerIsRemote {
				c.globalState.FallbackLogger.Error(err)
			}
			c.globalState.Logger.Error(err)
		}
	}()

	err := c.cmd.Execute()
	exitCode = errext.ProcessExitCode(err)
	if err == nil {
		return
	}

	errText, fields := errext.Format(err)
	c.globalState.Logger.WithFields(fields).Error(errText)
	if c.loggerIsRemote {
		c.globalState.FallbackLogger.WithFields(fields).Error(errText)
	}
}

func (c *rootCommand) stopLoggers() {
	done := make(chan struct{})
	go func() {
		c.loggersWg.Wait()
		close(done)
	}()
	close(c.stopLoggersCh)
	select {
	case <-done:
	case <-time.After(waitLoggerCloseTimeout):
		c.globalState.FallbackLogger.Errorf("The logger didn't stop in %s", waitLoggerCloseTimeout)
	}
}

func rootCmdPersistentFlagSet(gs *state.GlobalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	// We need to use `gs.Flags.<value>` both as the destination and as
	// the value here, since the config values could have already been set by
	// their respective environment variables. However, we then also have to
	// explicitly set the DefValue to the respective default value from
	// `gs.DefaultFlags.<value>`, so that the `foxshot --help` message is
	// not messed up...

	flags.StringVar(&gs.Flags.LogOutput, "log-output", gs.Flags.LogOutput,
		"change the output for foxshot logs, possible values are: "+
			"'stderr', 'stdout', 'none', 'file=./path.log[,level=info]'")
	flags.Lookup("log-output").DefValue = gs.DefaultFlags.LogOutput

	flags.StringVar(&gs.Flags.LogFormat, "log-format", gs.Flags.LogFormat,
		"log output format, one of 'text', 'json', 'raw' or 'logstash'")
	flags.Lookup("log-format").DefValue = gs.DefaultFlags.LogFormat

	flags.StringVar(&gs.Flags.LogCategoryFilter, "log-category-filter", gs.Flags.LogCategoryFilter,
		"only log lines whose category matches this regular expression, e.g. '^marionette'")
	flags.Lookup("log-category-filter").DefValue = gs.DefaultFlags.LogCategoryFilter

	flags.StringVar(&gs.Flags.TracesOutput, "traces-output", gs.Flags.TracesOutput,
		"set the output for foxshot traces, possible values are "+
			"'none' and 'otel[=host:port][,proto=grpc|http][,header.<name>=<value>]'")
	flags.Lookup("traces-output").DefValue = gs.DefaultFlags.TracesOutput

	flags.StringVarP(&gs.Flags.ConfigFilePath, "config", "c", gs.Flags.ConfigFilePath, "YAML config file")
	// And we also need to explicitly set the default value for the usage message here, so things
	// like `FOXSHOT_CONFIG="blah" foxshot screenshot -h` don't produce a weird usage message
	flags.Lookup("config").DefValue = gs.DefaultFlags.ConfigFilePath
	must(cobra.MarkFlagFilename(flags, "config"))

	flags.BoolVar(&gs.Flags.NoColor, "no-color", gs.Flags.NoColor, "disable colored output")
	flags.Lookup("no-color").DefValue = strconv.FormatBool(gs.DefaultFlags.NoColor)

	flags.BoolVarP(&gs.Flags.Verbose, "verbose", "v", gs.DefaultFlags.Verbose, "enable verbose logging")
	flags.BoolVarP(&gs.Flags.Quiet, "quiet", "q", gs.Flags.Quiet, "only print errors")
	flags.Lookup("quiet").DefValue = strconv.FormatBool(gs.DefaultFlags.Quiet)

	return flags
}

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// setupLoggers points the logger at the selected output and format. Hooks
// that buffer, like the file one, are flushed once stop is closed.
func (c *rootCommand) setupLoggers(stop <-chan struct{}) error {
	gs := c.globalState
	switch {
	case gs.Flags.Verbose:
		gs.Logger.SetLevel(logrus.DebugLevel)
	case gs.Flags.Quiet:
		gs.Logger.SetLevel(logrus.ErrorLevel)
	}

	if _, err := newCategoryFilter(gs.Flags.LogCategoryFilter); err != nil {
		return err
	}

	loggerForceColors := false // disable color by default
	hookCtx, cancelHook := context.WithCancel(context.Background())
	switch line := gs.Flags.LogOutput; {
	case line == "stderr":
		loggerForceColors = !gs.Flags.NoColor && gs.Console.IsTTY
		gs.Logger.SetOutput(gs.Console.Stderr)
	case line == "stdout":
		loggerForceColors = !gs.Flags.NoColor && gs.Console.IsTTY
		gs.Logger.SetOutput(gs.Console.Stdout)
	case line == "none":
		gs.Logger.SetOutput(io.Discard)
	case strings.HasPrefix(line, "file"):
		done := make(chan struct{})
		hook, err := log.FileHookFromConfigLine(hookCtx, gs.FS, gs.Getwd, gs.FallbackLogger, line, done)
		if err != nil {
			cancelHook()
			return err
		}
		gs.Logger.AddHook(hook)
		gs.Logger.SetOutput(io.Discard) // don't output to anywhere else
		c.loggerIsRemote = true
		c.loggersWg.Add(1)
		go func() {
			<-done
			c.loggersWg.Done()
		}()
	default:
		cancelHook()
		return fmt.Errorf("unsupported log output '%s'", line)
	}

	switch gs.Flags.LogFormat {
	case "raw":
		gs.Logger.SetFormatter(&RawFormatter{})
		gs.Logger.Debug("Logger format: RAW")
	case "json":
		gs.Logger.SetFormatter(&logrus.JSONFormatter{})
		gs.Logger.Debug("Logger format: JSON")
	case "logstash":
		gs.Logger.SetFormatter(&LogstashJSONFormatter{})
		gs.Logger.Debug("Logger format: LOGSTASH")
	case "", "text":
		gs.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors: loggerForceColors, DisableColors: gs.Flags.NoColor,
		})
		gs.Logger.Debug("Logger format: TEXT")
	default:
		cancelHook()
		return fmt.Errorf("unsupported log format '%s'", gs.Flags.LogFormat)
	}

	// Sometimes the Go runtime uses the standard log output to
	// log some messages directly.
	w := gs.Logger.Writer()
	stdlog.SetOutput(w)
	c.loggersWg.Add(1)
	go func() {
		<-stop
		cancelHook()
		_ = w.Close()
		c.loggersWg.Done()
	}()
	return nil
}

func (c *rootCommand) setupTracing() error {
	tp, err := trace.FromConfigLine(c.globalState.Ctx, c.globalState.Flags.TracesOutput)
	if err != nil {
		return fmt.Errorf("setting up traces output: %w", err)
	}
	c.globalState.TracerProvider = tp
	return nil
}

func (c *rootCommand) stopTracing() {
	ctx, cancel := context.WithTimeout(context.Background(), waitLoggerCloseTimeout)
	defer cancel()
	if err := c.globalState.TracerProvider.Shutdown(ctx); err != nil {
		c.globalState.Logger.WithError(err).Warn("Couldn't flush the traces")
	}
}
