//go:build linux

package i2c

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request and message flags from <linux/i2c-dev.h> / <linux/i2c.h>.
const (
	i2cRdwr = 0x0707
	i2cMRd  = 0x0001
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// i2cRdwrData mirrors struct i2c_rdwr_ioctl_data.
type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Device is a register-addressed peripheral on one I2C adapter.
type Device struct {
	f    *os.File
	addr uint16
}

// Open opens /dev/i2c-<bus> and binds the device address used for all
// subsequent transfers. A failure here is fatal for the caller: the
// peripheral bus cannot be reached at all.
func Open(bus int, addr uint16) (*Device, error) {
	path := fmt.Sprintf("/dev/i2c-%d", bus)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	return &Device{f: f, addr: addr}, nil
}

// WriteBlock writes [reg, data...] as a single bus transaction. The payload
// bytes reach the wire in exactly the given order; the write is never split
// into per-byte transfers.
func (d *Device) WriteBlock(reg byte, data []byte) error {
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, reg)
	buf = append(buf, data...)

	msg := i2cMsg{
		addr: d.addr,
		len:  uint16(len(buf)),
		buf:  uintptr(unsafe.Pointer(&buf[0])),
	}
	if err := d.transfer(&msg, 1); err != nil {
		return fmt.Errorf("i2c: write reg %#02x: %w", reg, err)
	}
	runtime.KeepAlive(buf)
	return nil
}

// WriteByte writes a single byte to reg, as one transaction.
func (d *Device) WriteByte(reg, val byte) error {
	return d.WriteBlock(reg, []byte{val})
}

// ReadByte reads one byte from reg using a combined write-then-read
// transfer (no stop condition between the register write and the read).
func (d *Device) ReadByte(reg byte) (byte, error) {
	regBuf := []byte{reg}
	out := make([]byte, 1)

	msgs := [2]i2cMsg{
		{
			addr: d.addr,
			len:  1,
			buf:  uintptr(unsafe.Pointer(&regBuf[0])),
		},
		{
			addr:  d.addr,
			flags: i2cMRd,
			len:   1,
			buf:   uintptr(unsafe.Pointer(&out[0])),
		},
	}
	if err := d.transfer(&msgs[0], 2); err != nil {
		return 0, fmt.Errorf("i2c: read reg %#02x: %w", reg, err)
	}
	runtime.KeepAlive(regBuf)
	runtime.KeepAlive(out)
	return out[0], nil
}

// Close releases the adapter file descriptor.
func (d *Device) Close() error {
	return d.f.Close()
}

// transfer submits nmsgs messages starting at msgs as one I2C_RDWR ioctl.
func (d *Device) transfer(msgs *i2cMsg, nmsgs uint32) error {
	data := i2cRdwrData{
		msgs:  uintptr(unsafe.Pointer(msgs)),
		nmsgs: nmsgs,
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), i2cRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(msgs)
	if errno != 0 {
		return errno
	}
	return nil
}
