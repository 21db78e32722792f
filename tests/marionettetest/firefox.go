package marionettetest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Environment variables understood by a test binary that calls
// MaybeFakeFirefox from its TestMain.
const (
	// FakeFirefoxEnv selects the fake browser's behaviour.
	FakeFirefoxEnv = "FOXSHOT_FAKE_FIREFOX"
	// FakeLogEnv names a file that receives one "name params" line per
	// command the fake browser served.
	FakeLogEnv = "FOXSHOT_FAKE_LOG"
)

// Fake browser modes.
const (
	ModeScreenshot = "screenshot"
	ModePDF        = "pdf"
	ModeSlowExit   = "slowexit"
	ModeBadVersion = "badversion"
	ModeNoRoot     = "noroot"
	ModeCrash      = "crash"
	ModeHang       = "hang"
)

var portLineRe = regexp.MustCompile(`(?m)^user_pref\("marionette\.port", 0\);$`)

// MaybeFakeFirefox turns the running test binary into a fake Firefox and
// exits when FakeFirefoxEnv is set. Point FIREFOX_BIN at os.Args[0] to use
// it.
func MaybeFakeFirefox() {
	if mode := os.Getenv(FakeFirefoxEnv); mode != "" {
		os.Exit(FakeFirefox(mode, os.Args[1:]))
	}
}

// FakeFirefox pretends to be a headless Firefox: it serves Marionette on an
// ephemeral port, publishes the port in the profile's prefs.js and exits
// once it's told to quit. The mode picks a misbehaviour.
func FakeFirefox(mode string, args []string) int {
	var profile string
	for i, a := range args {
		if a == "--profile" && i+1 < len(args) {
			profile = args[i+1]
		}
	}
	if profile == "" {
		fmt.Fprintln(os.Stderr, "fake firefox: no --profile given")
		return 2
	}

	var opts []Option
	switch mode {
	case ModeScreenshot, ModePDF, ModeSlowExit:
	case ModeBadVersion:
		opts = append(opts, WithHandshake(`{"applicationType":"gecko","marionetteProtocol":2}`))
	case ModeNoRoot:
		opts = append(opts, WithReply("WebDriver:FindElements", Result(`[]`)))
	case ModeCrash:
		fmt.Fprintln(os.Stderr, "Segmentation fault")
		return 139
	case ModeHang:
		fmt.Fprintln(os.Stderr, "fake firefox: never publishing a port")
		time.Sleep(time.Hour)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "fake firefox: unknown mode %q\n", mode)
		return 2
	}

	srv, err := Listen("127.0.0.1:0", opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer srv.Close()

	if err := publishPort(filepath.Join(profile, "prefs.js"), srv.Port()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "fake firefox: marionette listening on %d\n", srv.Port())

	select {
	case <-srv.QuitReceived():
	case <-time.After(time.Minute):
		return 1
	}

	if path := os.Getenv(FakeLogEnv); path != "" {
		_ = os.WriteFile(path, []byte(strings.Join(CommandLog(srv), "\n")), 0o600) //nolint:forbidigo
	}
	if mode == ModeSlowExit {
		srv.Close()
		time.Sleep(time.Hour)
	}
	return 0
}

// publishPort rewrites the port line the way Firefox does once Marionette
// is bound.
func publishPort(prefsPath string, port int) error {
	prefs, err := os.ReadFile(prefsPath) //nolint:forbidigo
	if err != nil {
		return err
	}
	prefs = portLineRe.ReplaceAll(prefs, []byte(`user_pref("marionette.port", `+strconv.Itoa(port)+`);`))
	return os.WriteFile(prefsPath, prefs, 0o600) //nolint:forbidigo
}

// CommandLog renders the commands srv received, one "name params" per line.
func CommandLog(srv *Server) []string {
	var lines []string
	for _, c := range srv.Commands() {
		lines = append(lines, c.Name+" "+c.Params)
	}
	return lines
}
