//go:build linux

package runner

import "syscall"

// parentDeathAttr lss 进程被强杀时内核向子进程发送 SIGTERM
func parentDeathAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
