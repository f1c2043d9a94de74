//go:build linux

// Package socketcan replays decoded J1939 frames onto a CAN interface
// through a raw AF_CAN socket, so a recorded sniffer log can drive
// tooling that expects live bus traffic.
package socketcan

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// CAN_EFF_FLAG marks a 29-bit extended identifier (same value as <linux/can.h>).
const CAN_EFF_FLAG = 0x80000000

type Device struct {
	fd int
}

func Open(iface string) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		// Older kernels may not know this option; ignore ENOPROTOOPT
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("disable CAN FD: %w", err)
		}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &Device{fd: fd}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// WriteFrame writes one classic CAN frame with an extended identifier.
// Only the first 8 data bytes are sent; J1939 single frames carry
// exactly 8.
func (d *Device) WriteFrame(canID uint32, data []byte) error {
	var buf [unix.CAN_MTU]byte
	// struct can_frame (linux/can.h):
	//   can_id  u32   [0:4]  (includes EFF/RTR/ERR flags)
	//   can_dlc u8    [4]
	//   pad     3B    [5:8]
	//   data    [8]   [8:16]
	//
	// The kernel expects fields in host byte order; on common Linux archs
	// that is little-endian.
	if len(data) > 8 {
		data = data[:8]
	}
	binary.LittleEndian.PutUint32(buf[0:4], canID|CAN_EFF_FLAG)
	buf[4] = byte(len(data))
	copy(buf[8:], data)
	_, err := unix.Write(d.fd, buf[:])
	return err
}
