// Package mock provides test doubles for the audio package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/echosort/echosort/pkg/actuator"
	"github.com/echosort/echosort/pkg/audio"
)

// Player is a mock implementation of audio.Player.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// PlayCalls records the byte length of each played PCM buffer.
	PlayCalls []int
}

// Play records the call.
func (p *Player) Play(_ context.Context, pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, len(pcm))
	return p.PlayErr
}

// Compile-time assertion that Player implements audio.Player.
var _ audio.Player = (*Player)(nil)

// SpeakCall records one invocation of Speaker.Speak.
type SpeakCall struct {
	Type     actuator.CommandType
	PhraseID byte
}

// Speaker is a mock implementation of audio.Speaker.
type Speaker struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error

	// SpeakCalls records every Speak invocation in order.
	SpeakCalls []SpeakCall
}

// Speak records the call.
func (s *Speaker) Speak(t actuator.CommandType, phraseID byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = append(s.SpeakCalls, SpeakCall{Type: t, PhraseID: phraseID})
	return s.SpeakErr
}

// Calls returns a snapshot of recorded Speak calls. Thread-safe.
func (s *Speaker) Calls() []SpeakCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpeakCall, len(s.SpeakCalls))
	copy(out, s.SpeakCalls)
	return out
}

// Compile-time assertion that Speaker implements audio.Speaker.
var _ audio.Speaker = (*Speaker)(nil)
