//go:build linux

package server

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// bindDevice returns a socket control function that pins the socket to a
// network interface.
func bindDevice(device string) (func(network, address string, c syscall.RawConn) error, error) {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, device)
		})
		if err != nil {
			return err
		}
		if sockErr != nil {
			return fmt.Errorf("binding to device %s: %w", device, sockErr)
		}
		return nil
	}, nil
}
