//go:build unix

package daemon

import "syscall"

// detachAttr puts the spawned daemon in its own session so it survives
// the parent's terminal closing.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
