//go:build !linux

package socketcan

import "errors"

const CAN_EFF_FLAG = 0x80000000

var errUnsupported = errors.New("socketcan: only supported on linux")

// Device is a stub so replay code compiles on non-linux hosts; Open
// always fails there.
type Device struct{}

func Open(iface string) (*Device, error) { return nil, errUnsupported }

func (d *Device) Close() error { return errUnsupported }

func (d *Device) WriteFrame(canID uint32, data []byte) error { return errUnsupported }
