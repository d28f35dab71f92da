// epoll_linux.go - level-triggered readiness source over epoll(7)
//
// The poller owns an epoll instance and a callback per registered fd.
// Poll uses a zero timeout so the dispatcher loop never parks in the
// kernel; readiness callbacks run inline on the dispatcher thread.

//go:build linux

package dispatch

import (
	"golang.org/x/sys/unix"

	"main/debug"
)

const epollBatch = 64

// EPoller is the epoll-backed ReadinessSource.
type EPoller struct {
	fd        int
	events    [epollBatch]unix.EpollEvent
	callbacks map[int32]func(events uint32)
}

// NewEPoller creates the epoll instance.
func NewEPoller() (*EPoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EPoller{
		fd:        fd,
		callbacks: make(map[int32]func(uint32)),
	}, nil
}

// Register watches fd for readable/hangup events. Wiring time only.
func (p *EPoller) Register(fd int, callback func(events uint32)) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLERR,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.callbacks[int32(fd)] = callback
	return nil
}

// Unregister stops watching fd.
func (p *EPoller) Unregister(fd int) {
	_ = unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(p.callbacks, int32(fd))
}

// Poll reaps ready events without blocking and dispatches their callbacks.
func (p *EPoller) Poll() int {
	n, err := unix.EpollWait(p.fd, p.events[:], 0)
	if err != nil {
		if err == unix.EINTR {
			return 0
		}
		debug.DropError("EPOLLER wait", err)
		return 0
	}
	for i := 0; i < n; i++ {
		if cb := p.callbacks[p.events[i].Fd]; cb != nil {
			cb(p.events[i].Events)
		}
	}
	return n
}

// Close releases the epoll instance.
func (p *EPoller) Close() error { return unix.Close(p.fd) }
