// Package consts houses some constants needed across foxshot
package consts

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version contains the current semantic version of foxshot.
const Version = "0.3.0"

// FullVersion returns the maximally full version and build information for
// the currently running foxshot executable.
func FullVersion() string {
	goVersionArch := fmt.Sprintf("%s, %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if commit := vcsCommit(); commit != "" {
		return fmt.Sprintf("%s (commit/%s, %s)", Version, commit, goVersionArch)
	}
	return fmt.Sprintf("%s (%s)", Version, goVersionArch)
}

// VersionDetails returns the structured details about the version.
func VersionDetails() map[string]string {
	details := map[string]string{
		"version":    "v" + Version,
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}
	if commit := vcsCommit(); commit != "" {
		details["commit"] = commit
	}
	return details
}

func vcsCommit() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	var commit string
	var dirty bool
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			commitLen := 10
			if len(s.Value) < commitLen {
				commitLen = len(s.Value)
			}
			commit = s.Value[:commitLen]
		case "vcs.modified":
			if s.Value == "true" {
				dirty = true
			}
		}
	}
	if commit != "" && dirty {
		commit += "-dirty"
	}
	return commit
}
