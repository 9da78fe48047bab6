//go:build darwin

package mcast

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueueReactor implements reactor using kqueue, one-shot (EV_ONESHOT) per
// fd, plus a self-pipe for Stop. Grounded on the teacher's
// poller_darwin.go FastPoller, re-keyed by ServiceHandle.
type kqueueReactor struct {
	kq int

	mu  sync.Mutex
	fds map[int]ServiceHandle

	wakeR, wakeW int
}

func newReactor() (reactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		_ = unix.Close(kq)
		return nil, err
	}

	re := &kqueueReactor{
		kq:    kq,
		fds:   make(map[int]ServiceHandle),
		wakeR: fds[0],
		wakeW: fds[1],
	}

	wakeEv := unix.Kevent_t{
		Ident:  uint64(re.wakeR),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wakeEv}, nil, nil); err != nil {
		_ = unix.Close(re.wakeR)
		_ = unix.Close(re.wakeW)
		_ = unix.Close(kq)
		return nil, err
	}

	return re, nil
}

func (r *kqueueReactor) add(handle ServiceHandle, fd int, mask IOMask) error {
	r.mu.Lock()
	r.fds[fd] = handle
	r.mu.Unlock()

	var changes []unix.Kevent_t
	if mask&IORead != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_READ,
			Flags: unix.EV_ADD | unix.EV_ONESHOT | unix.EV_CLEAR,
		})
	}
	if mask&IOWrite != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_WRITE,
			Flags: unix.EV_ADD | unix.EV_ONESHOT | unix.EV_CLEAR,
		})
	}
	if _, err := unix.Kevent(r.kq, changes, nil, nil); err != nil {
		r.mu.Lock()
		delete(r.fds, fd)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *kqueueReactor) remove(fd int) error {
	r.mu.Lock()
	delete(r.fds, fd)
	r.mu.Unlock()

	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	// kqueue reports ENOENT per-change when a filter was never registered;
	// Kevent returns the first such error via errno but still processes the
	// rest, so a blanket ignore matches the epoll reactor's tolerance of a
	// closed-before-Remove race (spec section 9).
	_, err := unix.Kevent(r.kq, changes, nil, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return nil
}

func (r *kqueueReactor) run(onReady func(handle ServiceHandle, mask IOMask)) {
	var events [256]unix.Kevent_t
	for {
		n, err := unix.Kevent(r.kq, nil, events[:], nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Ident)
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

			onReady(handle, kqueueToIOMask(events[i]))
		}
	}
}

func (r *kqueueReactor) stop() {
	var b [1]byte
	_, _ = unix.Write(r.wakeW, b[:])
}

func (r *kqueueReactor) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(r.wakeR, buf[:])
		if err != nil {
			return
		}
	}
}

func (r *kqueueReactor) close() error {
	_ = unix.Close(r.wakeR)
	_ = unix.Close(r.wakeW)
	return unix.Close(r.kq)
}

func kqueueToIOMask(ev unix.Kevent_t) IOMask {
	switch ev.Filter {
	case unix.EVFILT_READ:
		if ev.Flags&unix.EV_EOF != 0 {
			return IORead | IOHangup
		}
		return IORead
	case unix.EVFILT_WRITE:
		return IOWrite
	default:
		return 0
	}
}
