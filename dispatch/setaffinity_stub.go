// setaffinity_stub.go - no thread pinning off Linux

//go:build !linux

package dispatch

// setAffinity is a no-op on platforms without sched_setaffinity. The
// dispatcher still runs on a locked OS thread.
func setAffinity(int) error { return nil }
