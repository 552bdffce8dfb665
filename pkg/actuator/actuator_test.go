package actuator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/echosort/echosort/pkg/actuator"
	"github.com/echosort/echosort/pkg/actuator/mock"
)

func TestCommand_Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  actuator.Command
		want [2]byte
	}{
		{"command word", actuator.Command{Type: actuator.CommandWord, PhraseID: 3}, [2]byte{0x00, 0x03}},
		{"announcement", actuator.Command{Type: actuator.Announcement, PhraseID: 1}, [2]byte{0xFF, 0x01}},
		{"max phrase id", actuator.Command{Type: actuator.Announcement, PhraseID: 0xFF}, [2]byte{0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cmd.Encode(); got != tt.want {
				t.Fatalf("Encode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDriver_SpeakWireFormat(t *testing.T) {
	t.Parallel()

	bus := &mock.Bus{}
	d := actuator.New(bus)

	if err := d.Speak(actuator.CommandWord, 3); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	calls := bus.BlockCalls()
	if len(calls) != 1 {
		t.Fatalf("WriteBlock calls = %d, want 1", len(calls))
	}
	call := calls[0]
	if call.Reg != actuator.RegSpeak {
		t.Fatalf("register = %#02x, want %#02x", call.Reg, actuator.RegSpeak)
	}
	// Byte order is load-bearing: [commandType, phraseId], never swapped.
	if len(call.Data) != 2 || call.Data[0] != 0x00 || call.Data[1] != 0x03 {
		t.Fatalf("wire bytes = %#v, want [0x00 0x03]", call.Data)
	}
}

func TestDriver_SpeakRejectsUnknownCommandType(t *testing.T) {
	t.Parallel()

	bus := &mock.Bus{}
	d := actuator.New(bus)

	if err := d.Speak(actuator.CommandType(0x42), 1); err == nil {
		t.Fatal("want error for unknown command type")
	}
	if len(bus.BlockCalls()) != 0 {
		t.Fatal("invalid command reached the bus")
	}
}

func TestDriver_SpeakReportsBusFailure(t *testing.T) {
	t.Parallel()

	busErr := errors.New("bus timeout")
	bus := &mock.Bus{WriteBlockErr: busErr}
	d := actuator.New(bus)

	err := d.Speak(actuator.Announcement, 2)
	if !errors.Is(err, busErr) {
		t.Fatalf("Speak error = %v, want wrapped bus error", err)
	}
}

func TestDriver_ReadResult(t *testing.T) {
	t.Parallel()

	bus := &mock.Bus{ReadByteResults: []byte{7}}
	d := actuator.New(bus)

	v, err := d.ReadResult()
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if v != 7 {
		t.Fatalf("ReadResult = %d, want 7", v)
	}
	if len(bus.ReadByteCalls) != 1 || bus.ReadByteCalls[0] != actuator.RegResult {
		t.Fatalf("read register = %#v, want [0x64]", bus.ReadByteCalls)
	}
}

func TestDriver_ClearResult(t *testing.T) {
	t.Parallel()

	bus := &mock.Bus{}
	d := actuator.New(bus)

	if err := d.ClearResult(); err != nil {
		t.Fatalf("ClearResult: %v", err)
	}
	if len(bus.WriteByteCalls) != 1 {
		t.Fatalf("WriteByte calls = %d, want 1", len(bus.WriteByteCalls))
	}
	if c := bus.WriteByteCalls[0]; c.Reg != actuator.RegResult || c.Val != 0 {
		t.Fatalf("clear wrote %#v, want reg 0x64 val 0", c)
	}
}

func TestDriver_ConcurrentSpeakAndRead(t *testing.T) {
	t.Parallel()

	// Speak from the trigger path and ReadResult from a diagnostics probe
	// may run at the same time; the driver serializes the transactions.
	bus := &mock.Bus{}
	d := actuator.New(bus)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, _ = d.ReadResult()
		}
	}()
	for i := 0; i < 50; i++ {
		if err := d.Speak(actuator.Announcement, 1); err != nil {
			t.Fatalf("Speak: %v", err)
		}
	}
	<-done

	if got := len(bus.BlockCalls()); got != 50 {
		t.Fatalf("WriteBlock calls = %d, want 50", got)
	}
}

func TestDriver_WatchResultReportsEdges(t *testing.T) {
	t.Parallel()

	// Scripted polls: idle, recognition 5, latched 5, idle, recognition 2.
	bus := &mock.Bus{ReadByteResults: []byte{0, 5, 5, 0, 2}}
	d := actuator.New(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := d.WatchResult(ctx, time.Millisecond)

	var got []byte
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case v := <-ch:
			got = append(got, v)
		case <-timeout:
			t.Fatalf("timed out; got %v", got)
		}
	}

	if got[0] != 5 || got[1] != 2 {
		t.Fatalf("edges = %v, want [5 2]", got)
	}

	cancel()
	for range ch {
	}
}
