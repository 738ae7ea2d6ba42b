package proactor

import "errors"

var (
	errWouldBlock        = errors.New("proactor: operation would block")
	errSocketpairTimeout = errors.New("proactor: timed out establishing loopback socketpair")
	errFrameTooLarge     = errors.New("proactor: control frame exceeds 255 bytes")
	errUnknownOpcode     = errors.New("proactor: unknown control opcode")
	errDuplicateWatcher  = errors.New("proactor: watcher already armed for this fd and direction")

	// ErrProactorClosed is returned by any Add*/Cancel*/Update* call made
	// after Destroy has started.
	ErrProactorClosed = errors.New("proactor: destroyed")
)
