//go:build !linux

package server

import (
	"errors"
	"syscall"
)

func bindDevice(device string) (func(network, address string, c syscall.RawConn) error, error) {
	return nil, errors.New("binding to a device is only supported on Linux")
}
