package dispatch

import "runtime"

// The worker stays on one OS thread for its whole life so affinity and
// timer ownership hold.
func lockThread()   { runtime.LockOSThread() }
func unlockThread() { runtime.UnlockOSThread() }
