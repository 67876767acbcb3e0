// +build linux

package audio

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring storage comes from an anonymous mapping outside the Go heap, locked
// into memory where permitted so the audio thread never takes a page fault.
func allocSamples(n int) ([]int16, func() error, error) {
	b, err := unix.Mmap(-1, 0, n*2, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	if err := unix.Mlock(b); err != nil {
		log.Trace(5, "mlock of %d byte ring failed: %v", len(b), err)
	}
	samples := unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), n)
	return samples, func() error { return unix.Munmap(b) }, nil
}
