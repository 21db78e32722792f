package firefox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/errext/exitcodes"
)

// DefaultPollInterval is used when DiscoveryOptions.PollInterval is unset.
const DefaultPollInterval = 100 * time.Millisecond

var portPrefRe = regexp.MustCompile(`(?m)^user_pref\("marionette\.port", (\d+)\);$`)

// ErrExitedEarly is returned when the browser goes away before it has
// published a port.
var ErrExitedEarly = errors.New("firefox exited before publishing its Marionette port")

// DiscoveryOptions bound the wait for the Marionette port.
type DiscoveryOptions struct {
	PollInterval time.Duration
	// Timeout of zero waits until ctx is done.
	Timeout time.Duration
	// Exited, when set, stops the wait as soon as it's closed.
	Exited <-chan struct{}
}

// DiscoverPort polls prefsPath until Firefox has rewritten the marionette
// port preference with a non-zero value and returns it. The file is re-read
// from scratch every time; a missing or half written file just means another
// poll.
func DiscoverPort(ctx context.Context, fs afero.Fs, prefsPath string, opts DiscoveryOptions) (int, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if port := readPort(fs, prefsPath); port != 0 {
			return port, nil
		}

		select {
		case <-ticker.C:
		case <-deadline:
			return 0, errext.NewTimeoutError("marionette port discovery", opts.Timeout,
				"firefox never wrote "+PortPref+" to "+prefsPath+"; make sure FIREFOX_BIN points to a Firefox build")
		case <-opts.Exited:
			return 0, errext.WithExitCodeIfNone(ErrExitedEarly, exitcodes.BrowserLaunchFailed)
		case <-ctx.Done():
			return 0, fmt.Errorf("waiting for the marionette port: %w", ctx.Err())
		}
	}
}

// readPort returns the first non-zero port preference in the file, or 0.
func readPort(fs afero.Fs, path string) int {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0
	}
	for _, m := range portPrefRe.FindAllSubmatch(data, -1) {
		port, err := strconv.Atoi(string(m[1]))
		if err != nil || port <= 0 || port > 65535 {
			continue
		}
		return port
	}
	return 0
}
