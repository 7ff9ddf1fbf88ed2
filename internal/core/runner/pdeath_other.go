//go:build !linux

package runner

import "syscall"

func parentDeathAttr() *syscall.SysProcAttr {
	return nil
}
