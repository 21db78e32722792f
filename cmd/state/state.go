// Package state holds everything a foxshot command touches outside of its
// own arguments, so that commands can be run against fakes in tests.
package state

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/foxshot/env"
	"github.com/liuxd6825/foxshot/internal/lib/trace"
	"github.com/liuxd6825/foxshot/ui/console"
)

// GlobalState contains the GlobalOptions and accessors for most of the global
// process-external state like CLI arguments, env vars, standard input, output
// and error, etc. In practice, most of it is normally accessed through the `os`
// package from the Go stdlib.
//
// We group them here so we can prevent direct access to them from the rest of
// the foxshot codebase. This gives us the ability to mock them and have
// robust and easy-to-write integration-like tests to check the foxshot
// end-to-end behavior in any simulated conditions.
type GlobalState struct {
	Ctx context.Context

	FS         afero.Fs
	Getwd      func() (string, error)
	BinaryName string
	CmdArgs    []string
	Env        map[string]string

	DefaultFlags, Flags GlobalOptions

	Console *console.Console

	OSExit       func(int)
	SignalNotify func(chan<- os.Signal, ...os.Signal)
	SignalStop   func(chan<- os.Signal)

	Logger         *logrus.Logger
	FallbackLogger logrus.FieldLogger

	// TracerProvider is replaced by the root command when --traces-output
	// asks for an exporter.
	TracerProvider *trace.TracerProvider
}

// NewGlobalState returns a new GlobalState with the given ctx.
// Ideally, this should be the only function in the whole codebase where we use
// global variables and functions from the os package. Anywhere else, things
// like os.Stdout, os.Stderr, os.Stdin, os.Getenv(), etc. should be removed and
// the respective properties of globalState used instead.
func NewGlobalState(ctx context.Context) *GlobalState {
	envMap := env.ParseEnviron(os.Environ())

	confDir, err := os.UserConfigDir()
	if err != nil {
		confDir = ".config"
	}

	noColor := consolidateGlobalFlags(GetDefaultGlobalOptions(confDir), envMap).NoColor
	con := console.New(os.Stdout, os.Stderr, os.Stdin, !noColor, envMap["TERM"])

	gs := newGlobalState(ctx, afero.NewOsFs(), con, envMap, os.Args, confDir)
	gs.Getwd = os.Getwd
	gs.OSExit = os.Exit
	gs.SignalNotify = signal.Notify
	gs.SignalStop = signal.Stop
	return gs
}

// NewGlobalStateWith assembles a GlobalState around the given console and
// environment. The config directory defaults to ".config" under the working
// directory, and exiting or signal handling are left to the caller.
func NewGlobalStateWith(
	ctx context.Context, fs afero.Fs, con *console.Console, envMap map[string]string, args []string,
) *GlobalState {
	return newGlobalState(ctx, fs, con, envMap, args, ".config")
}

func newGlobalState(
	ctx context.Context, fs afero.Fs, con *console.Console, envMap map[string]string, args []string, confDir string,
) *GlobalState {
	defaultFlags := GetDefaultGlobalOptions(confDir)
	binary := "foxshot"
	if len(args) > 0 {
		binary = strings.TrimSuffix(filepath.Base(args[0]), ".exe")
	}

	return &GlobalState{
		Ctx:          ctx,
		FS:           fs,
		Getwd:        func() (string, error) { return "/", nil },
		BinaryName:   binary,
		CmdArgs:      args,
		Env:          envMap,
		DefaultFlags: defaultFlags,
		Flags:        consolidateGlobalFlags(defaultFlags, envMap),
		Console:      con,
		OSExit:       func(int) {},
		SignalNotify: func(chan<- os.Signal, ...os.Signal) {},
		SignalStop:   func(chan<- os.Signal) {},
		Logger:       con.GetLogger(),
		FallbackLogger: &logrus.Logger{ // we may modify the other one
			Out:       con.Stderr,
			Formatter: new(logrus.TextFormatter), // no fancy formatting here
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
		TracerProvider: trace.NewNoopTracerProvider(),
	}
}
