package skull

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/eventhive/pkg/skull/openai"
)

// The Test* collaborators stand in for hardware and cloud backends when the
// skull runs with test_mode on (or in unit tests). They log what they would
// have done, optionally sleep to mimic real latency, and remember their
// calls for inspection.

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// TestPlayer pretends to play audio.
type TestPlayer struct {
	Delay  time.Duration
	Logger *slog.Logger

	mu     sync.Mutex
	played []string
}

// Play implements Player.
func (p *TestPlayer) Play(ctx context.Context, path string) error {
	orDefault(p.Logger).Info("test mode: playing audio", slog.String("path", path))
	p.mu.Lock()
	p.played = append(p.played, path)
	p.mu.Unlock()
	return sleepCtx(ctx, p.Delay)
}

// Played returns the paths played so far.
func (p *TestPlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

// TestRecorder pretends to record.
type TestRecorder struct {
	Delay  time.Duration
	Logger *slog.Logger

	mu       sync.Mutex
	recorded []string
}

// Record implements Recorder. The requested duration is ignored in favor
// of Delay.
func (r *TestRecorder) Record(ctx context.Context, path string, d time.Duration) error {
	orDefault(r.Logger).Info("test mode: recording", slog.String("path", path), slog.Duration("duration", d))
	r.mu.Lock()
	r.recorded = append(r.recorded, path)
	r.mu.Unlock()
	return sleepCtx(ctx, r.Delay)
}

// Recorded returns the paths recorded so far.
func (r *TestRecorder) Recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.recorded...)
}

// TestMicrophone replays queued frames, then silence.
type TestMicrophone struct {
	FrameSamples int
	// FrameDelay paces reads; it defaults to 5ms so scanners do not spin.
	FrameDelay time.Duration

	mu     sync.Mutex
	open   bool
	opens  int
	frames [][]int16
}

// Push queues frames to be returned by ReadFrame.
func (m *TestMicrophone) Push(frames ...[]int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frames...)
}

// Open implements Microphone.
func (m *TestMicrophone) Open(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		m.open = true
		m.opens++
	}
	return nil
}

// ReadFrame implements Microphone.
func (m *TestMicrophone) ReadFrame(ctx context.Context) ([]int16, error) {
	delay := m.FrameDelay
	if delay <= 0 {
		delay = 5 * time.Millisecond
	}
	if err := sleepCtx(ctx, delay); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, ErrMicClosed
	}
	if len(m.frames) > 0 {
		f := m.frames[0]
		m.frames = m.frames[1:]
		return f, nil
	}
	n := m.FrameSamples
	if n <= 0 {
		n = 64
	}
	return make([]int16, n), nil
}

// Close implements Microphone.
func (m *TestMicrophone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// IsOpen reports whether the microphone is open.
func (m *TestMicrophone) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Opens returns how many times the microphone went from closed to open.
func (m *TestMicrophone) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// TestSynthesizer records the texts it was asked to speak.
type TestSynthesizer struct {
	Delay  time.Duration
	Err    error
	Logger *slog.Logger

	mu    sync.Mutex
	texts []string
}

// Synthesize implements Synthesizer.
func (s *TestSynthesizer) Synthesize(ctx context.Context, text, path string) error {
	orDefault(s.Logger).Info("test mode: generating speech", slog.String("text", text), slog.String("path", path))
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if err := sleepCtx(ctx, s.Delay); err != nil {
		return err
	}
	return s.Err
}

// Texts returns every text synthesized so far.
func (s *TestSynthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// TestTranscriber returns scripted transcriptions in order, then Default.
type TestTranscriber struct {
	Default string

	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
}

// DefaultTestTranscript is what test mode hears when nothing is scripted.
const DefaultTestTranscript = "This is a test transcription."

// NewTestTranscriber creates a transcriber that returns replies in order.
func NewTestTranscriber(replies ...string) *TestTranscriber {
	return &TestTranscriber{Default: DefaultTestTranscript, replies: replies}
}

// FailNext makes the next call return err.
func (t *TestTranscriber) FailNext(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = append(t.errs, err)
}

// Transcribe implements Transcriber.
func (t *TestTranscriber) Transcribe(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		return "", err
	}
	if len(t.replies) > 0 {
		r := t.replies[0]
		t.replies = t.replies[1:]
		return r, nil
	}
	return t.Default, nil
}

// Calls returns how many transcriptions were requested.
func (t *TestTranscriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// TestResponder echoes the last user message.
type TestResponder struct {
	Err error

	mu       sync.Mutex
	requests [][]openai.Message
}

// Respond implements Responder.
func (r *TestResponder) Respond(ctx context.Context, messages []openai.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	r.requests = append(r.requests, append([]openai.Message(nil), messages...))
	r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return fmt.Sprintf("You said: %s", messages[i].Content), nil
		}
	}
	return "I have nothing to say.", nil
}

// Requests returns every message list received.
func (r *TestResponder) Requests() [][]openai.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]openai.Message(nil), r.requests...)
}

// TestServo records pulse widths.
type TestServo struct {
	mu     sync.Mutex
	pulses []float64
}

// SetPulse implements Servo.
func (s *TestServo) SetPulse(us float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulses = append(s.pulses, us)
	return nil
}

// Pulses returns the pulse widths set so far.
func (s *TestServo) Pulses() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.pulses...)
}

// TestPin is a settable input.
type TestPin struct {
	mu    sync.Mutex
	value bool
}

// Set changes the pin level.
func (p *TestPin) Set(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
}

// Read implements Pin.
func (p *TestPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, nil
}

// TestPower logs instead of powering off.
type TestPower struct {
	Logger *slog.Logger

	mu    sync.Mutex
	calls []string
}

// Shutdown implements PowerController.
func (p *TestPower) Shutdown(ctx context.Context) error { return p.record(ctx, CmdShutdown) }

// Reboot implements PowerController.
func (p *TestPower) Reboot(ctx context.Context) error { return p.record(ctx, CmdReboot) }

func (p *TestPower) record(ctx context.Context, op string) error {
	orDefault(p.Logger).Info("test mode: power action skipped", slog.String("op", op))
	p.mu.Lock()
	p.calls = append(p.calls, op)
	p.mu.Unlock()
	return ctx.Err()
}

// Calls returns the power actions requested.
func (p *TestPower) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// TestLEDStrip keeps the frame in memory.
type TestLEDStrip struct {
	mu     sync.Mutex
	colors []Color
	shown  []Color
	shows  int
}

// NewTestLEDStrip creates a strip of n LEDs.
func NewTestLEDStrip(n int) *TestLEDStrip {
	return &TestLEDStrip{colors: make([]Color, n)}
}

// Len implements LEDStrip.
func (s *TestLEDStrip) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.colors)
}

// Set implements LEDStrip.
func (s *TestLEDStrip) Set(i int, c Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.colors) {
		s.colors[i] = c
	}
}

// Show implements LEDStrip.
func (s *TestLEDStrip) Show() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown[:0], s.colors...)
	s.shows++
	return nil
}

// Clear implements LEDStrip.
func (s *TestLEDStrip) Clear() error {
	s.mu.Lock()
	for i := range s.colors {
		s.colors[i] = Color{}
	}
	s.mu.Unlock()
	return s.Show()
}

// Shown returns the last frame shown.
func (s *TestLEDStrip) Shown() []Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Color(nil), s.shown...)
}

// Shows returns how many frames were shown.
func (s *TestLEDStrip) Shows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shows
}
