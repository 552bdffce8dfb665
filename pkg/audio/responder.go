package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/echosort/echosort/pkg/actuator"
)

// ErrNoMapping is returned by AnnounceCategory when a category has neither
// an audio asset nor an actuator phrase id configured.
var ErrNoMapping = errors.New("audio: category has no asset and no phrase id")

// Category maps one classification label to its announcement outputs.
// The mapping is loaded once at startup and read-only afterwards.
type Category struct {
	// AssetPath is the optional WAV asset played for this category.
	AssetPath string

	// PhraseID is the actuator announcement phrase spoken when no asset
	// is configured (or asset playback fails). Zero means unmapped.
	PhraseID byte
}

// Speaker is the actuator fallback for categories without a local asset.
// *actuator.Driver satisfies it.
type Speaker interface {
	Speak(t actuator.CommandType, phraseID byte) error
}

// Responder announces categories and system events through the local
// speaker, with the actuator as fallback.
type Responder struct {
	categories map[string]Category
	events     map[string]string // event key → asset path
	player     Player
	speaker    Speaker
}

// NewResponder builds a Responder over an immutable category mapping and an
// event-asset table. speaker may be nil, in which case the actuator fallback
// is unavailable and asset-less categories fail with [ErrNoMapping].
func NewResponder(categories map[string]Category, events map[string]string, player Player, speaker Speaker) *Responder {
	return &Responder{
		categories: categories,
		events:     events,
		player:     player,
		speaker:    speaker,
	}
}

// AnnounceCategory announces one classification result. A configured asset
// is played locally; otherwise the category's actuator phrase is spoken. A
// category with neither fails with [ErrNoMapping] and produces no output.
func (r *Responder) AnnounceCategory(ctx context.Context, category string) error {
	c, ok := r.categories[category]
	if !ok {
		return fmt.Errorf("audio: unknown category %q: %w", category, ErrNoMapping)
	}

	if c.AssetPath != "" {
		err := r.playAsset(ctx, c.AssetPath)
		if err == nil {
			return nil
		}
		// Asset failure degrades to the actuator phrase when one exists.
		slog.Warn("audio: asset playback failed, falling back to actuator",
			"category", category, "asset", c.AssetPath, "err", err)
		if c.PhraseID == 0 {
			return fmt.Errorf("audio: announce %q: %w", category, err)
		}
	}

	if c.PhraseID == 0 {
		return fmt.Errorf("audio: announce %q: %w", category, ErrNoMapping)
	}
	if r.speaker == nil {
		return fmt.Errorf("audio: announce %q: no speaker configured: %w", category, ErrNoMapping)
	}
	if err := r.speaker.Speak(actuator.Announcement, c.PhraseID); err != nil {
		return fmt.Errorf("audio: announce %q via actuator: %w", category, err)
	}
	return nil
}

// Respond plays the asset configured for a system event key (for example an
// acknowledgement tone). An unconfigured key is a no-op; there is no
// actuator fallback for generic events.
func (r *Responder) Respond(ctx context.Context, eventKey string) error {
	path, ok := r.events[eventKey]
	if !ok || path == "" {
		return nil
	}
	if err := r.playAsset(ctx, path); err != nil {
		return fmt.Errorf("audio: respond %q: %w", eventKey, err)
	}
	return nil
}

func (r *Responder) playAsset(ctx context.Context, path string) error {
	pcm, err := ReadAsset(path)
	if err != nil {
		return err
	}
	return r.player.Play(ctx, pcm)
}
