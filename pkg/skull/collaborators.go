package skull

import (
	"context"
	"time"

	"github.com/randalmurphal/eventhive/pkg/skull/history"
	"github.com/randalmurphal/eventhive/pkg/skull/openai"
)

// Synthesizer renders text to a speech file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, path string) error
}

// Transcriber turns a recorded speech file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Responder produces the chatbot's reply to a conversation.
type Responder interface {
	Respond(ctx context.Context, messages []openai.Message) (string, error)
}

// HistoryStore keeps past conversation turns.
type HistoryStore interface {
	Append(ctx context.Context, role, content string) error
	Recent(ctx context.Context, limit int) ([]history.Turn, error)
}

// Player plays an audio file to the speaker.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Recorder captures d of microphone audio to a file.
type Recorder interface {
	Record(ctx context.Context, path string, d time.Duration) error
}

// Microphone streams signed 16-bit mono frames.
type Microphone interface {
	Open(ctx context.Context) error
	ReadFrame(ctx context.Context) ([]int16, error)
	Close() error
}

// Servo positions the jaw. Pulse widths are in microseconds.
type Servo interface {
	SetPulse(us float64) error
}

// Pin is a digital input.
type Pin interface {
	Read() (bool, error)
}

// PowerController halts or restarts the host.
type PowerController interface {
	Shutdown(ctx context.Context) error
	Reboot(ctx context.Context) error
}

// Color is an HSV color with every component in [0, 1].
type Color struct {
	H, S, V float64
}

// LEDStrip is an addressable LED bar.
type LEDStrip interface {
	Len() int
	Set(i int, c Color)
	Show() error
	Clear() error
}

// Usage is a resource sample with both values in [0, 1].
type Usage struct {
	Memory float64
	CPU    float64
}

// Sampler reads current resource usage.
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}
