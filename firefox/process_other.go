//go:build !linux

package firefox

import "os/exec"

func killAfterParent(*exec.Cmd) {}
