// Package audio announces trigger-cycle outcomes.
//
// The Responder prefers a pre-recorded WAV asset for a category and falls
// back to the actuator's built-in phrases when no asset is configured. All
// playback assets must be mono, 16 kHz, 16-bit PCM; [CheckFile] enforces
// that at startup so a bad asset is a configuration error rather than a
// runtime fault.
package audio

import "context"

// Playback asset format requirements.
const (
	RequiredChannels   = 1
	RequiredSampleRate = 16000
	RequiredBits       = 16
)

// Player plays mono 16 kHz 16-bit little-endian PCM to the local speaker.
// Play blocks until playback completes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}
