package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Compile-time assertion that MalgoPlayer satisfies [Player].
var _ Player = (*MalgoPlayer)(nil)

// MalgoPlayer plays PCM through the default playback device via miniaudio.
// One audio context is shared across all Play calls; each call opens and
// tears down its own device so playback never overlaps.
type MalgoPlayer struct {
	actx   *malgo.AllocatedContext
	volume int // 0..100
}

// NewMalgoPlayer initialises the audio backend. volume is a 0..100
// percentage applied to every sample; values outside the range are clamped.
// The caller must Close the player when done.
func NewMalgoPlayer(volume int) (*MalgoPlayer, error) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init playback context: %w", err)
	}
	return &MalgoPlayer{actx: actx, volume: volume}, nil
}

// Play blocks until the samples have been consumed by the device or ctx is
// cancelled. pcm must be mono 16 kHz 16-bit little-endian.
func (p *MalgoPlayer) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	samples := p.scaled(pcm)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = RequiredChannels
	cfg.SampleRate = RequiredSampleRate

	var (
		pos      int
		doneOnce sync.Once
		done     = make(chan struct{})
	)
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			n := copy(out, samples[pos:])
			pos += n
			if pos >= len(samples) {
				doneOnce.Do(func() { close(done) })
			}
		},
	}

	device, err := malgo.InitDevice(p.actx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("audio: init playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("audio: start playback: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the audio backend.
func (p *MalgoPlayer) Close() error {
	if err := p.actx.Uninit(); err != nil {
		return fmt.Errorf("audio: uninit playback context: %w", err)
	}
	p.actx.Free()
	return nil
}

// scaled returns pcm with the configured volume applied.
func (p *MalgoPlayer) scaled(pcm []byte) []byte {
	if p.volume >= 100 {
		return pcm
	}
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		s = int16(int(s) * p.volume / 100)
		binary.LittleEndian.PutUint16(out[i:], uint16(s))
	}
	return out
}
