package skull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// STT records the visitor and transcribes what they said.
type STT struct {
	out         eventhive.Producer
	engine      *AudioEngine
	transcriber Transcriber
	path        string
	duration    time.Duration
	censor      bool
	logger      *slog.Logger
}

// STTConfig configures the STT actor.
type STTConfig struct {
	RecordingPath  string
	RecordDuration time.Duration
	Censor         bool
}

// NewSTT creates the speech-to-text actor behavior.
func NewSTT(out eventhive.Producer, engine *AudioEngine, transcriber Transcriber, cfg STTConfig, logger *slog.Logger) *STT {
	return &STT{
		out:         out,
		engine:      engine,
		transcriber: transcriber,
		path:        cfg.RecordingPath,
		duration:    cfg.RecordDuration,
		censor:      cfg.Censor,
		logger:      orDefault(logger),
	}
}

// ConsumableKinds implements eventhive.Behavior.
func (s *STT) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{KindSTT}
}

// Handlers implements eventhive.Behavior.
func (s *STT) Handlers() eventhive.Handlers {
	return eventhive.Handlers{CmdRecordInferSpeech: s.recordAndTranscribe}
}

// recordAndTranscribe always publishes STT_FINISHED; a failure is reported
// as an empty transcript so the conversation restarts the recording.
func (s *STT) recordAndTranscribe(ctx context.Context, evt *eventhive.Event) error {
	text, err := s.transcribe(ctx)
	if err != nil {
		text = ""
	}
	if s.censor {
		text = Censor(text)
	}
	s.logger.Info("speech transcribed", slog.String("text", text))

	pubErr := errors.Join(
		emit(s.out, evt, KindSTTDone, eventhive.PriorityHigh, CmdSTTFinished, text),
		finished(s.out, evt, eventhive.PriorityHigh),
	)
	return errors.Join(err, pubErr)
}

func (s *STT) transcribe(ctx context.Context) (string, error) {
	if err := s.engine.Record(ctx, s.path, s.duration); err != nil {
		return "", fmt.Errorf("record: %w", err)
	}

	var text string
	err := s.engine.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		text, err = s.transcriber.Transcribe(ctx, s.path)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}
