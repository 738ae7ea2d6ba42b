//go:build windows

package proactor

import (
	"net"
	"time"

	"golang.org/x/sys/windows"
)

// winConn implements rawConn over a loopback TCP connection, the documented
// substitute for a Unix socketpair on Windows (§9: "the proactor's Windows
// socketpair substitute is a TODO and must be implemented").
type winConn struct {
	conn net.Conn
	fd   windows.Handle
}

func (c *winConn) Fd() int32 { return int32(c.fd) }

func (c *winConn) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, errWouldBlock
	}
	return n, err
}

func (c *winConn) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, errWouldBlock
	}
	return n, err
}

func (c *winConn) Close() error { return c.conn.Close() }

func wrapWinConn(conn net.Conn) (*winConn, error) {
	// TCP connections have no meaningful "non-blocking fd" on Windows
	// without cgo. Deadlines are cleared here, so Read and Write on both ends
	// block and never report errWouldBlock; the loop only reads the consumer
	// end after WSAPoll has reported it readable.
	_ = conn.SetDeadline(time.Time{})
	tc := conn.(*net.TCPConn)
	raw, err := tc.SyscallConn()
	if err != nil {
		return nil, err
	}
	var fd windows.Handle
	err = raw.Control(func(h uintptr) { fd = windows.Handle(h) })
	if err != nil {
		return nil, err
	}
	return &winConn{conn: conn, fd: fd}, nil
}

// platformSocketPair implements a socketpair substitute via a loopback TCP
// accept/dial, per the design note that loopback TCP is the standard
// Windows fallback.
func platformSocketPair() (producer, consumer rawConn, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, err
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			acceptErrCh <- err
			return
		}
		acceptCh <- c
	}()

	dialConn, err := net.DialTimeout("tcp", ln.Addr().String(), 5*time.Second)
	if err != nil {
		return nil, nil, err
	}

	var acceptConn net.Conn
	select {
	case acceptConn = <-acceptCh:
	case err := <-acceptErrCh:
		dialConn.Close()
		return nil, nil, err
	case <-time.After(5 * time.Second):
		dialConn.Close()
		return nil, nil, errSocketpairTimeout
	}

	p, err := wrapWinConn(dialConn)
	if err != nil {
		dialConn.Close()
		acceptConn.Close()
		return nil, nil, err
	}
	c, err := wrapWinConn(acceptConn)
	if err != nil {
		dialConn.Close()
		acceptConn.Close()
		return nil, nil, err
	}
	return p, c, nil
}
