//go:build linux

package mcast

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollReactor implements reactor using epoll, one-shot + edge-triggered
// per fd, plus a self-pipe for Stop. Grounded on the teacher's
// poller_linux.go FastPoller, re-keyed by ServiceHandle and given its own
// Run loop per original_source/IOService.cpp's Run/Stop.
type epollReactor struct {
	epfd int

	mu  sync.Mutex
	fds map[int]ServiceHandle

	wakeR, wakeW int
}

func newReactor() (reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	re := &epollReactor{
		epfd:  epfd,
		fds:   make(map[int]ServiceHandle),
		wakeR: fds[0],
		wakeW: fds[1],
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, re.wakeR, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(re.wakeR),
	}); err != nil {
		_ = unix.Close(re.wakeR)
		_ = unix.Close(re.wakeW)
		_ = unix.Close(epfd)
		return nil, err
	}

	return re, nil
}

// add registers fd one-shot, edge-triggered, per spec section 4.2.
func (r *epollReactor) add(handle ServiceHandle, fd int, mask IOMask) error {
	r.mu.Lock()
	r.fds[fd] = handle
	r.mu.Unlock()

	ev := &unix.EpollEvent{
		Events: ioMaskToEpoll(mask) | unix.EPOLLONESHOT | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		// Already registered (re-arming after a prior one-shot fire without
		// a Remove in between): fall back to MOD.
		if err == unix.EEXIST {
			return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, ev)
		}
		r.mu.Lock()
		delete(r.fds, fd)
		r.mu.Unlock()
		return err
	}
	return nil
}

// remove deregisters fd, tolerating the closed-before-Remove race (spec
// section 9's open question: "tolerate the ENOENT/EBADF path silently").
func (r *epollReactor) remove(fd int) error {
	r.mu.Lock()
	delete(r.fds, fd)
	r.mu.Unlock()

	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

func (r *epollReactor) run(onReady func(handle ServiceHandle, mask IOMask)) {
	var events [256]unix.EpollEvent
	for {
		n, err := unix.EpollWait(r.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.wakeR {
				r.drainWake()
				return
			}

			r.mu.Lock()
			handle, ok := r.fds[fd]
			delete(r.fds, fd)
			r.mu.Unlock()
			if !ok {
				continue
			}

			// One-shot interest already consumed by the kernel; drop our
			// own registration too (spec 4.2: "the reactor does not
			// re-register; the service must re-issue the wait").
			_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)

			onReady(handle, epollToIOMask(events[i].Events))
		}
	}
}

func (r *epollReactor) stop() {
	var b [1]byte
	_, _ = unix.Write(r.wakeW, b[:])
}

func (r *epollReactor) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(r.wakeR, buf[:])
		if err != nil {
			return
		}
	}
}

func (r *epollReactor) close() error {
	_ = unix.Close(r.wakeR)
	_ = unix.Close(r.wakeW)
	return unix.Close(r.epfd)
}

func ioMaskToEpoll(mask IOMask) uint32 {
	var e uint32
	if mask&IORead != 0 {
		e |= unix.EPOLLIN
	}
	if mask&IOWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToIOMask(e uint32) IOMask {
	var mask IOMask
	if e&unix.EPOLLIN != 0 {
		mask |= IORead
	}
	if e&unix.EPOLLOUT != 0 {
		mask |= IOWrite
	}
	if e&unix.EPOLLERR != 0 {
		mask |= IOError
	}
	if e&unix.EPOLLHUP != 0 {
		mask |= IOHangup
	}
	return mask
}
