// Package mlockall optionally pins the process's memory pages in RAM so
// key material handled by internal/secret is never written to swap.
package mlockall

import "syscall"

// Lock calls mlockall(MCL_CURRENT|MCL_FUTURE). It is opt-in: unlike a
// package init(), the caller decides whether a failure (missing
// CAP_IPC_LOCK, or a memory cgroup too small to lock) is fatal.
func Lock() error {
	return syscall.Mlockall(syscall.MCL_CURRENT | syscall.MCL_FUTURE)
}
