// Package mock provides a recording test double for the actuator.Bus
// interface.
//
// Use WriteBlockCalls to assert on the exact wire bytes a test produced,
// and ReadByteResults to script successive result-register reads.
package mock

import (
	"sync"

	"github.com/echosort/echosort/pkg/actuator"
)

// WriteBlockCall records one invocation of Bus.WriteBlock.
type WriteBlockCall struct {
	Reg  byte
	Data []byte
}

// WriteByteCall records one invocation of Bus.WriteByte.
type WriteByteCall struct {
	Reg byte
	Val byte
}

// Bus is a mock implementation of actuator.Bus.
type Bus struct {
	mu sync.Mutex

	// WriteBlockErr, if non-nil, is returned by every WriteBlock call.
	WriteBlockErr error

	// WriteByteErr, if non-nil, is returned by every WriteByte call.
	WriteByteErr error

	// ReadByteErr, if non-nil, is returned by every ReadByte call.
	ReadByteErr error

	// ReadByteResults is consumed one value per successful ReadByte call.
	// When exhausted, ReadByte returns 0.
	ReadByteResults []byte

	// WriteBlockCalls records every WriteBlock invocation in order.
	WriteBlockCalls []WriteBlockCall

	// WriteByteCalls records every WriteByte invocation in order.
	WriteByteCalls []WriteByteCall

	// ReadByteCalls records the registers passed to ReadByte in order.
	ReadByteCalls []byte
}

// WriteBlock records the call with a copy of data.
func (b *Bus) WriteBlock(reg byte, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.WriteBlockCalls = append(b.WriteBlockCalls, WriteBlockCall{Reg: reg, Data: cp})
	return b.WriteBlockErr
}

// WriteByte records the call.
func (b *Bus) WriteByte(reg, val byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.WriteByteCalls = append(b.WriteByteCalls, WriteByteCall{Reg: reg, Val: val})
	return b.WriteByteErr
}

// ReadByte records the call and returns the next scripted result.
func (b *Bus) ReadByte(reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ReadByteCalls = append(b.ReadByteCalls, reg)
	if b.ReadByteErr != nil {
		return 0, b.ReadByteErr
	}
	if len(b.ReadByteResults) == 0 {
		return 0, nil
	}
	v := b.ReadByteResults[0]
	b.ReadByteResults = b.ReadByteResults[1:]
	return v, nil
}

// BlockCalls returns a snapshot of the recorded WriteBlock calls. Safe to
// call while the bus is in use from another goroutine.
func (b *Bus) BlockCalls() []WriteBlockCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]WriteBlockCall(nil), b.WriteBlockCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.WriteBlockCalls = nil
	b.WriteByteCalls = nil
	b.ReadByteCalls = nil
}

// Compile-time assertion that Bus implements actuator.Bus.
var _ actuator.Bus = (*Bus)(nil)
