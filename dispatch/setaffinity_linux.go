// setaffinity_linux.go - pin the calling thread via sched_setaffinity(2)

//go:build linux

package dispatch

import "golang.org/x/sys/unix"

// setAffinity pins the current thread to one CPU core. Call only with the
// thread locked.
func setAffinity(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	// pid 0: the calling thread
	return unix.SchedSetaffinity(0, &set)
}
