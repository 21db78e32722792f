package firefox

import (
	"os/exec"
	"syscall"
)

// killAfterParent makes the kernel kill the browser if foxshot dies first.
func killAfterParent(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
