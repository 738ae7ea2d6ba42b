//go:build !windows

package proactor

import "golang.org/x/sys/unix"

const (
	evRead  = int16(unix.POLLIN)
	evWrite = int16(unix.POLLOUT)
	evError = int16(unix.POLLERR | unix.POLLHUP | unix.POLLNVAL)
)

// platformPoll calls poll(2) via golang.org/x/sys/unix, retrying on EINTR
// and halving the polled range on ENOMEM (§4.E step 4).
func platformPoll(fds []pollFD, timeoutMs int) error {
	raw := make([]unix.PollFd, len(fds))
	for i, f := range fds {
		raw[i] = unix.PollFd{Fd: f.fd, Events: f.events}
	}

	n := len(raw)
	for {
		_, err := unix.Poll(raw[:n], timeoutMs)
		if err == nil {
			break
		}
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err == unix.ENOMEM && n > 1 {
			n /= 2
			continue
		}
		return err
	}

	for i := range fds {
		if i < n {
			fds[i].revents = raw[i].Revents
		} else {
			fds[i].revents = 0
		}
	}
	return nil
}
