//go:build linux

package mcast

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpollReactor_AddFiresOnceOnReadable(t *testing.T) {
	r, err := newReactor()
	require.NoError(t, err)
	defer r.close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server, err := ln.Accept()
	require.NoError(t, err)
	defer server.Close()

	tcpConn, ok := server.(*net.TCPConn)
	require.True(t, ok)
	file, err := tcpConn.File()
	require.NoError(t, err)
	defer file.Close()
	fd := int(file.Fd())

	ready := make(chan ServiceHandle, 1)
	go r.run(func(handle ServiceHandle, mask IOMask) {
		if mask&IORead != 0 {
			ready <- handle
		}
	})
	defer r.stop()

	require.NoError(t, r.add(ServiceHandle(42), fd, IORead))

	_, err = client.Write([]byte("hi"))
	require.NoError(t, err)

	select {
	case h := <-ready:
		assert.Equal(t, ServiceHandle(42), h)
	case <-time.After(time.Second):
		t.Fatal("reactor never reported readability")
	}
}

func TestEpollReactor_RemoveTolerantOfAlreadyClosedFD(t *testing.T) {
	r, err := newReactor()
	require.NoError(t, err)
	defer r.close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server, err := ln.Accept()
	require.NoError(t, err)

	tcpConn, ok := server.(*net.TCPConn)
	require.True(t, ok)
	file, err := tcpConn.File()
	require.NoError(t, err)
	fd := int(file.Fd())

	require.NoError(t, r.add(ServiceHandle(1), fd, IORead))

	client.Close()
	server.Close()
	file.Close()

	assert.NoError(t, r.remove(fd))
}

func TestEpollReactor_StopUnblocksRun(t *testing.T) {
	r, err := newReactor()
	require.NoError(t, err)
	defer r.close()

	done := make(chan struct{})
	go func() {
		r.run(func(ServiceHandle, IOMask) {})
		close(done)
	}()

	r.stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run never returned after stop")
	}
}
