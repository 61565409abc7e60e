//go:build linux

package datasource

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel the file will be read once, front to
// back, so readahead can be aggressive. Best effort; the advice failing
// changes nothing about correctness.
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
