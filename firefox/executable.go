package firefox

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/liuxd6825/foxshot/env"
)

// ExecutablePath returns FIREFOX_BIN when it's set, otherwise the first
// well-known Firefox location that resolves. It returns "" when there's none.
func ExecutablePath(lookup env.LookupFunc) string {
	if p, ok := lookup(env.FirefoxBin); ok && p != "" {
		return p
	}

	for _, path := range [...]string{
		// Mac
		"/Applications/Firefox.app/Contents/MacOS/firefox-bin",
		"/Applications/Firefox.app/Contents/MacOS/firefox",

		// Unix-like
		"firefox",
		"firefox-esr",
		"/usr/lib/firefox/firefox",

		// Windows
		"firefox.exe",
		`C:\Program Files\Mozilla Firefox\firefox.exe`,
		`C:\Program Files (x86)\Mozilla Firefox\firefox.exe`,
		filepath.Join(os.Getenv("LOCALAPPDATA"), `Mozilla Firefox\firefox.exe`),
	} {
		if _, err := exec.LookPath(path); err == nil {
			return path
		}
	}

	return ""
}
