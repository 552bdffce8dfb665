// Package actuator drives the voice-output peripheral over its register
// wire protocol.
//
// The peripheral exposes two registers: a speak register that accepts a
// two-byte command selecting a pre-recorded phrase, and a result register
// holding the id of the last phrase the peripheral itself recognised. The
// result register has proven unreliable in practice and is exposed for
// diagnostics only — local keyword spotting is the authoritative trigger
// path.
//
// The driver owns the bus handle exclusively and serializes all transactions
// through an internal mutex, so its methods are safe for concurrent use —
// the trigger path and diagnostics probes may share one driver.
package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Peripheral register map.
const (
	// RegResult holds the last phrase id the peripheral recognised.
	// Advisory only; see [Driver.ReadResult].
	RegResult = 0x64

	// RegSpeak accepts the two-byte speak command.
	RegSpeak = 0x6E
)

// CommandType selects which phrase table a speak command addresses.
type CommandType byte

const (
	// CommandWord speaks a command-word phrase.
	CommandWord CommandType = 0x00

	// Announcement speaks a passive announcement phrase.
	Announcement CommandType = 0xFF
)

// IsValid reports whether t is a recognised command type.
func (t CommandType) IsValid() bool {
	return t == CommandWord || t == Announcement
}

// Command is one speak instruction. It exists only for the duration of a
// single Speak call.
type Command struct {
	Type     CommandType
	PhraseID byte
}

// Encode returns the wire form of the command. Byte order is load-bearing:
// the peripheral expects [commandType, phraseId] and misplays word-swapped
// or split writes.
func (c Command) Encode() [2]byte {
	return [2]byte{byte(c.Type), c.PhraseID}
}

// Bus is the subset of an I2C device the driver needs. *i2c.Device
// satisfies it.
type Bus interface {
	// WriteBlock writes [reg, data...] as one bus transaction.
	WriteBlock(reg byte, data []byte) error

	// WriteByte writes one byte to reg.
	WriteByte(reg, val byte) error

	// ReadByte reads one byte from reg.
	ReadByte(reg byte) (byte, error)
}

// Driver encodes speak commands and reads the result register. One bus
// transaction runs at a time; the mutex keeps a diagnostics read from
// interleaving with a speak write.
type Driver struct {
	mu  sync.Mutex
	bus Bus
}

// New creates a Driver over an opened bus. The driver takes sole ownership
// of the handle.
func New(bus Bus) *Driver {
	return &Driver{bus: bus}
}

// Speak writes the two-byte speak command as a single block transaction.
//
// The peripheral bus intermittently ignores or delays commands; a returned
// error is expected to be logged and tolerated by callers, never treated as
// fatal.
func (d *Driver) Speak(t CommandType, phraseID byte) error {
	if !t.IsValid() {
		return fmt.Errorf("actuator: invalid command type %#02x", byte(t))
	}
	cmd := Command{Type: t, PhraseID: phraseID}
	wire := cmd.Encode()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.bus.WriteBlock(RegSpeak, wire[:]); err != nil {
		return fmt.Errorf("actuator: speak %#02x/%d: %w", byte(t), phraseID, err)
	}
	return nil
}

// ReadResult reads the peripheral's result register.
//
// Empirically the register does not reliably reflect recognition state; use
// it as a diagnostic or secondary signal only, never as the primary trigger
// source.
func (d *Driver) ReadResult() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.bus.ReadByte(RegResult)
	if err != nil {
		return 0, fmt.Errorf("actuator: read result: %w", err)
	}
	return v, nil
}

// ClearResult zeroes the result register. Some firmware revisions latch the
// last recognition until cleared.
func (d *Driver) ClearResult() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.bus.WriteByte(RegResult, 0x00); err != nil {
		return fmt.Errorf("actuator: clear result: %w", err)
	}
	return nil
}

// WatchResult polls the result register at the given interval and delivers
// each non-zero edge (a value differing from the previous poll) on the
// returned channel. Read failures are skipped. The channel closes when ctx
// is cancelled.
//
// This reproduces the legacy register-scan trigger path as a diagnostic
// stream; nothing in the trigger pipeline consumes it.
func (d *Driver) WatchResult(ctx context.Context, interval time.Duration) <-chan byte {
	out := make(chan byte, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last byte
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			v, err := d.ReadResult()
			if err != nil {
				continue
			}
			if v != 0 && v != last {
				select {
				case out <- v:
				default:
				}
			}
			last = v
		}
	}()
	return out
}
