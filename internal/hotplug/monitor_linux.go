//go:build linux

package hotplug

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// kernelGroup is the netlink multicast group the kernel broadcasts uevents on.
const kernelGroup = 1

// Monitor reads kernel uevents from a netlink socket.
type Monitor struct {
	fd int
}

// NewMonitor opens the uevent socket. It needs no privileges.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	// A receive timeout lets Run notice cancellation.
	tv := unix.NsecToTimeval(int64(time.Second))
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &Monitor{fd: fd}, nil
}

// Run calls fn for every event match accepts until ctx is done or the socket fails.
func (m *Monitor) Run(ctx context.Context, match func(Event) bool, fn func(Event)) error {
	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return err
		}
		ev, ok := Parse(buf[:n])
		if ok && (match == nil || match(ev)) {
			fn(ev)
		}
	}
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}
