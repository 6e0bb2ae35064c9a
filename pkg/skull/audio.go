package skull

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive/gate"
)

// AudioEngine serializes every "talking" operation through one busy gate so
// playback and recording never overlap. One engine is shared by the actors
// that touch the speaker or the microphone.
type AudioEngine struct {
	gate     *gate.Gate
	player   Player
	recorder Recorder
	logger   *slog.Logger
}

// NewAudioEngine creates an engine over player and recorder.
func NewAudioEngine(player Player, recorder Recorder, logger *slog.Logger) *AudioEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioEngine{
		gate:     gate.New(),
		player:   player,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "audio")),
	}
}

// Play plays path, waiting for any operation in progress to finish first.
func (e *AudioEngine) Play(ctx context.Context, path string) error {
	return e.gate.Do(ctx, func(ctx context.Context) error {
		e.logger.Debug("playing", slog.String("path", path))
		return e.player.Play(ctx, path)
	})
}

// Record captures d of audio to path, waiting for the gate like Play.
func (e *AudioEngine) Record(ctx context.Context, path string, d time.Duration) error {
	return e.gate.Do(ctx, func(ctx context.Context) error {
		e.logger.Debug("recording", slog.String("path", path), slog.Duration("duration", d))
		return e.recorder.Record(ctx, path, d)
	})
}

// Exclusive runs fn while holding the gate, for operations such as
// transcription that must not overlap playback.
func (e *AudioEngine) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.gate.Do(ctx, fn)
}

// Playing reports whether an operation currently holds the gate.
func (e *AudioEngine) Playing() bool {
	return e.gate.Busy()
}
