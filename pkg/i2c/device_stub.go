//go:build !linux

package i2c

// Device is a register-addressed peripheral on one I2C adapter. Only the
// Linux implementation can perform transfers.
type Device struct{}

// Open always fails off Linux; /dev/i2c-N is a Linux interface.
func Open(bus int, addr uint16) (*Device, error) {
	return nil, ErrUnsupported
}

func (d *Device) WriteBlock(reg byte, data []byte) error { return ErrUnsupported }

func (d *Device) WriteByte(reg, val byte) error { return ErrUnsupported }

func (d *Device) ReadByte(reg byte) (byte, error) { return 0, ErrUnsupported }

func (d *Device) Close() error { return nil }
