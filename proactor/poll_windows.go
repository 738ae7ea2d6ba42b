//go:build windows

package proactor

import "golang.org/x/sys/windows"

const (
	evRead  = int16(windows.POLLRDNORM)
	evWrite = int16(windows.POLLWRNORM)
	evError = int16(windows.POLLERR | windows.POLLHUP)
)

// platformPoll calls WSAPoll via golang.org/x/sys/windows, the closest
// analogue of poll(2) available on Windows sockets.
func platformPoll(fds []pollFD, timeoutMs int) error {
	raw := make([]windows.WSAPollFd, len(fds))
	for i, f := range fds {
		raw[i] = windows.WSAPollFd{Fd: windows.Handle(f.fd), Events: f.events}
	}

	for {
		_, err := windows.WSAPoll(raw, timeoutMs)
		if err == nil {
			break
		}
		if err == windows.WSAEINTR {
			continue
		}
		return err
	}

	for i := range fds {
		fds[i].revents = raw[i].Revents
	}
	return nil
}
