package skull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// TTS turns GENERATE_TTS text into the shared speech file.
type TTS struct {
	out    eventhive.Producer
	synth  Synthesizer
	path   string
	logger *slog.Logger
}

// NewTTS creates the speech synthesis actor behavior. Speech is written to
// path, where the jaw picks it up.
func NewTTS(out eventhive.Producer, synth Synthesizer, path string, logger *slog.Logger) *TTS {
	return &TTS{out: out, synth: synth, path: path, logger: orDefault(logger)}
}

// ConsumableKinds implements eventhive.Behavior.
func (t *TTS) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{KindTTS}
}

// Handlers implements eventhive.Behavior.
func (t *TTS) Handlers() eventhive.Handlers {
	return eventhive.Handlers{CmdGenerateTTS: t.generate}
}

func (t *TTS) generate(ctx context.Context, evt *eventhive.Event) error {
	text, _ := evt.StringArg()

	var err error
	if strings.TrimSpace(text) == "" {
		err = errors.New("nothing to say")
	} else {
		t.logger.Info("generating speech", slog.Int("chars", len(text)))
		if err = t.synth.Synthesize(ctx, text, t.path); err != nil {
			err = fmt.Errorf("synthesize: %w", err)
		}
	}

	// The conversation moves on whether or not synthesis worked.
	return errors.Join(err, finished(t.out, evt, eventhive.PriorityHigh))
}
