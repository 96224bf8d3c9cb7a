//go:build !windows

package transport

import (
	"os"
	"syscall"
)

// syscallSig0 returns the null signal, used to probe process liveness
// without affecting it (Process.Signal(0) on Unix).
func syscallSig0() os.Signal {
	return syscall.Signal(0)
}
