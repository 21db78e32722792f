// Package tests contains the GlobalState fakes the command tests run
// against.
package tests

import (
	"fmt"
	"os"
	"testing"

	"go.uber.org/goleak"

	"github.com/liuxd6825/foxshot/tests/marionettetest"
)

// Main is a TestMain function that can be imported by other test packages.
// The test binary doubles as the fake Firefox the capture commands launch,
// and it checks for leaked goroutines once the tests are done.
func Main(m *testing.M) {
	marionettetest.MaybeFakeFirefox()

	exitCode := 1 // error out by default
	defer func() {
		os.Exit(exitCode)
	}()

	defer func() {
		// The logrus writer handed to the standard logger is closed by the
		// root command, but its reader goroutine may still be unwinding.
		opt := goleak.IgnoreTopFunction("io.(*pipe).read")
		if err := goleak.Find(opt); err != nil {
			fmt.Println(err) //nolint:forbidigo
			exitCode = 3
		}
	}()

	exitCode = m.Run()
}
