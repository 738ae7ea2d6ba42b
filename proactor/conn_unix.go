//go:build !windows

package proactor

import "golang.org/x/sys/unix"

// unixConn wraps a raw fd from an AF_UNIX socketpair (the standard
// Unix substitute for a bidirectional byte channel).
type unixConn struct {
	fd int
}

func (c *unixConn) Fd() int32 { return int32(c.fd) }

func (c *unixConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err == unix.EAGAIN {
		return 0, errWouldBlock
	}
	return n, err
}

func (c *unixConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err == unix.EAGAIN {
		return 0, errWouldBlock
	}
	return n, err
}

func (c *unixConn) Close() error { return unix.Close(c.fd) }

func platformSocketPair() (producer, consumer rawConn, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}
	// Only the consumer end is polled by the loop and so must be
	// non-blocking; the producer end is written to synchronously by caller
	// goroutines and a handful of small frames never fills the socket
	// buffer, so it stays blocking.
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	return &unixConn{fd: fds[0]}, &unixConn{fd: fds[1]}, nil
}
