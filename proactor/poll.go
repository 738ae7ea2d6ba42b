package proactor

// pollFD mirrors the POSIX pollfd layout the platform multiplexer operates
// on, independent of whether the backing syscall is Unix poll(2) or
// Windows' WSAPoll.
type pollFD struct {
	fd      int32
	events  int16
	revents int16
}

// doPoll blocks up to timeoutMs (negative means forever) waiting for any fd
// in fds to become ready, filling in each entry's revents. It is the
// "OS readiness multiplexer" the design treats as an abstract platform
// primitive (§1).
func doPoll(fds []pollFD, timeoutMs int) error {
	return platformPoll(fds, timeoutMs)
}
