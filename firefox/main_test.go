package firefox

import (
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"
)

const helperEnv = "FOXSHOT_FIREFOX_HELPER"

// TestMain doubles as a stand-in browser: when helperEnv is set the test
// binary behaves like the requested kind of browser instead of running tests.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode))
	}
	goleak.VerifyTestMain(m)
}

func runHelper(mode string) int {
	switch mode {
	case "chatty":
		fmt.Fprintln(os.Stdout, "console.log: hello")
		fmt.Fprintln(os.Stderr, "*** You are running in headless mode.")
		fmt.Fprint(os.Stdout, "no trailing newline")
		return 0
	case "hang":
		fmt.Fprintln(os.Stderr, "ignoring quit")
		time.Sleep(time.Hour)
		return 0
	case "fail":
		fmt.Fprintln(os.Stderr, "Error: profile missing")
		return 3
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		return 2
	}
}
