// Package i2c provides minimal register-addressed access to a peripheral on
// a Linux I2C adapter via the /dev/i2c-N character device.
//
// The package intentionally implements only what the actuator driver needs:
// a block write of a register plus payload in one bus transaction, and a
// combined write-then-read register read. It is not a general I2C driver.
//
// A Device is not safe for concurrent use; exactly one component should own
// the handle.
package i2c

import "errors"

// ErrUnsupported is returned by [Open] on platforms without /dev/i2c-N
// support.
var ErrUnsupported = errors.New("i2c: unsupported platform")
