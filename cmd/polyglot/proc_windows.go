//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// detach starts polyglotd without the parent's console
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
