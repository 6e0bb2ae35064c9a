package skull

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/eventhive/config"
	"github.com/randalmurphal/eventhive/pkg/eventhive/observability"
	"github.com/randalmurphal/eventhive/pkg/skull/history"
	"github.com/randalmurphal/eventhive/pkg/skull/openai"
)

// testModeDelay is how long test collaborators pretend to play or record.
const testModeDelay = 200 * time.Millisecond

// Deps carries observability and optional collaborator overrides for
// Build. Nil collaborators are constructed from settings.
type Deps struct {
	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager

	// HTTPClient replaces the instrumented client of the HTTP backends.
	HTTPClient *http.Client

	Synthesizer Synthesizer
	Transcriber Transcriber
	Responder   Responder
	History     HistoryStore
	Player      Player
	Recorder    Recorder
	DetectorMic Microphone
	JawMic      Microphone
	Servo       Servo
	Pin         Pin
	Power       PowerController
	LEDs        LEDStrip
	Sampler     Sampler
}

// System is the assembled skull: every actor, subscribed and ready to
// start, plus the resource monitor.
type System struct {
	Engine       *AudioEngine
	Conversation *ConversationEngine
	Detector     *AudioDetector
	// Exchanges is nil in demo mode.
	Exchanges *ExchangeCounter
	Actors    []*eventhive.Actor
	// Monitor is nil when the LED monitor is disabled.
	Monitor *ResourceMonitor

	queue   *eventhive.Queue
	closers []func() error
}

// Build validates settings and wires the skull onto queue. Backend modes
// are checked before anything is constructed; an unknown mode is reported
// as a *config.ModeError.
//
// In demo mode only the greeting path is built: detection, speech, jaw and
// the conversation engine.
func Build(s config.Settings, queue *eventhive.Queue, deps Deps) (sys *System, err error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NoopMetrics{}
	}
	if deps.Spans == nil {
		deps.Spans = observability.NoopSpanManager{}
	}

	b := &builder{s: s, deps: deps, logger: deps.Logger}
	sys = &System{queue: queue}
	defer func() {
		if err != nil {
			for _, a := range sys.Actors {
				a.Stop()
			}
			_ = sys.Close()
			sys = nil
		}
	}()

	synth, err := b.synthesizer()
	if err != nil {
		return sys, err
	}
	sys.Engine = NewAudioEngine(b.player(), b.recorder(), deps.Logger)

	addActor := func(name string, behavior eventhive.Behavior) error {
		a, err := eventhive.NewActor(queue, behavior,
			eventhive.WithName(name),
			eventhive.WithLogger(deps.Logger),
			eventhive.WithMetrics(deps.Metrics),
			eventhive.WithSpanManager(deps.Spans),
		)
		if err != nil {
			return err
		}
		sys.Actors = append(sys.Actors, a)
		return nil
	}

	if s.Monitor.Enabled {
		sys.Monitor = NewResourceMonitor(b.sampler(), b.leds(), MonitorConfig{
			Rate:          s.Monitor.Rate,
			Interpolation: s.Monitor.Interpolation,
			Brightness:    s.Monitor.Brightness,
		}, WithMonitorMetrics(deps.Metrics), WithMonitorLogger(deps.Logger))
	}

	sys.Detector = NewAudioDetector(queue, b.detectorMic(), s.Audio.DetectionThreshold, b.named("AudioDetector"))
	if err := addActor("AudioDetector", sys.Detector); err != nil {
		return sys, err
	}

	if s.Sensor.Enabled {
		if err := addActor("MotionSensor", NewMotionSensor(b.pin(), s.Sensor.PollInterval, b.named("MotionSensor"))); err != nil {
			return sys, err
		}
	}

	if err := addActor("TTS", NewTTS(queue, synth, s.Audio.SpeechPath, b.named("TTS"))); err != nil {
		return sys, err
	}

	if !s.DemoMode {
		transcriber, err := b.transcriber()
		if err != nil {
			return sys, err
		}
		stt := NewSTT(queue, sys.Engine, transcriber, STTConfig{
			RecordingPath:  s.Audio.RecordingPath,
			RecordDuration: s.Audio.RecordDuration,
			Censor:         s.STT.Censor,
		}, b.named("STT"))
		if err := addActor("STT", stt); err != nil {
			return sys, err
		}

		responder, err := b.responder()
		if err != nil {
			return sys, err
		}
		store, err := b.historyStore(sys)
		if err != nil {
			return sys, err
		}
		bot := NewChatbot(queue, responder, store, ChatbotConfig{
			Role:         s.Chat.Role,
			HistoryLimit: s.Chat.HistoryLimit,
		}, b.named("Chatbot"))
		if err := addActor("Chatbot", bot); err != nil {
			return sys, err
		}

		matcher := NewCommandMatcher(CommandPhrases{
			Override: s.Commands.OverrideWord,
			Shutdown: s.Commands.Shutdown,
			Reboot:   s.Commands.Reboot,
			Test:     s.Commands.Test,
		})
		if err := addActor("CommandChecker", NewCommandChecker(queue, matcher, b.named("CommandChecker"))); err != nil {
			return sys, err
		}

		if err := addActor("PowerControl", NewPowerControl(queue, b.power(), b.named("PowerControl"))); err != nil {
			return sys, err
		}

		if sys.Exchanges, err = NewExchangeCounter(b.named("Exchanges")); err != nil {
			return sys, err
		}
		if err := addActor("Exchanges", sys.Exchanges.Behavior()); err != nil {
			return sys, err
		}
	}

	jaw := NewJaw(queue, sys.Engine, b.jawMic(), b.servo(), JawCalibration{
		OpenPulse:  s.Jaw.OpenPulse,
		ClosePulse: s.Jaw.ClosePulse,
		MinRMS:     s.Jaw.MinRMS,
		MaxRMS:     s.Jaw.MaxRMS,
	}, s.Jaw.ListenDuration, b.named("Jaw"))
	if err := addActor("Jaw", jaw); err != nil {
		return sys, err
	}

	sys.Conversation = NewConversationEngine(queue, ConversationConfig{
		Demo:              s.DemoMode,
		Greeting:          s.Greeting,
		ShutdownText:      s.ShutdownText,
		RebootText:        s.RebootText,
		TestText:          s.TestText,
		SpeechPath:        s.Audio.SpeechPath,
		MaxSilentRestarts: s.MaxSilentRestarts,
	}, b.named("ConversationEngine"))
	if err := addActor("ConversationEngine", sys.Conversation); err != nil {
		return sys, err
	}

	return sys, nil
}

// Register adds the system's services to h in boot order: the monitor first
// (never joined), then every actor.
func (sys *System) Register(h *eventhive.Hive) {
	if sys.Monitor != nil {
		h.Add(sys.Monitor, false)
	}
	for _, a := range sys.Actors {
		h.Add(a, true)
	}
}

// Arm turns on audio detection. The request is queued, so Arm may be
// called before the hive starts.
func (sys *System) Arm() error {
	return emit(sys.queue, nil, KindAudioDetectController, eventhive.PriorityHigh, CmdScanModeOn)
}

// Actor returns the actor with the given name.
func (sys *System) Actor(name string) (*eventhive.Actor, bool) {
	for _, a := range sys.Actors {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Close releases resources owned by the system, such as the history
// database. Actors are stopped by the hive, not here.
func (sys *System) Close() error {
	var errs []error
	for i := len(sys.closers) - 1; i >= 0; i-- {
		errs = append(errs, sys.closers[i]())
	}
	sys.closers = nil
	return errors.Join(errs...)
}

// builder selects real or test collaborators.
type builder struct {
	s      config.Settings
	deps   Deps
	logger *slog.Logger
	client *openai.Client
}

func (b *builder) named(component string) *slog.Logger {
	return b.logger.With(slog.String("component", component))
}

// test reports whether the test implementation should be used for a
// backend whose configured mode is mode.
func (b *builder) test(mode string) bool {
	return b.s.TestMode || mode == config.ModeTest
}

func (b *builder) openAIClient() (*openai.Client, error) {
	if b.client != nil {
		return b.client, nil
	}
	if b.s.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("openai backend selected but %s is not set", config.EnvOpenAIKey)
	}
	opts := []openai.Option{
		openai.WithBaseURL(b.s.OpenAI.BaseURL),
		openai.WithLogger(b.named("openai")),
		openai.WithSpeech(b.s.TTS.Model, b.s.TTS.Voice),
		openai.WithTranscription(b.s.STT.Model, b.s.STT.Language),
		openai.WithChatModel(b.s.Chat.Model),
	}
	if b.deps.HTTPClient != nil {
		opts = append(opts, openai.WithHTTPClient(b.deps.HTTPClient))
	} else if b.s.OpenAI.Timeout > 0 {
		opts = append(opts, openai.WithTimeout(b.s.OpenAI.Timeout))
	}
	b.client = openai.New(b.s.OpenAI.APIKey, opts...)
	return b.client, nil
}

func (b *builder) synthesizer() (Synthesizer, error) {
	if b.deps.Synthesizer != nil {
		return b.deps.Synthesizer, nil
	}
	if b.test(b.s.TTS.Mode) {
		return &TestSynthesizer{Logger: b.named("TTS")}, nil
	}
	switch b.s.TTS.Mode {
	case config.ModeOpenAI:
		c, err := b.openAIClient()
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ModeCommand:
		return CommandSynthesizer{Argv: b.s.TTS.Command}, nil
	}
	return nil, &config.ModeError{Setting: "tts.mode", Value: b.s.TTS.Mode,
		Allowed: []string{config.ModeTest, config.ModeOpenAI, config.ModeCommand}}
}

func (b *builder) transcriber() (Transcriber, error) {
	if b.deps.Transcriber != nil {
		return b.deps.Transcriber, nil
	}
	if b.test(b.s.STT.Mode) {
		return NewTestTranscriber(), nil
	}
	if b.s.STT.Mode == config.ModeOpenAI {
		c, err := b.openAIClient()
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, &config.ModeError{Setting: "stt.mode", Value: b.s.STT.Mode,
		Allowed: []string{config.ModeTest, config.ModeOpenAI}}
}

func (b *builder) responder() (Responder, error) {
	if b.deps.Responder != nil {
		return b.deps.Responder, nil
	}
	if b.test(b.s.Chat.Backend) {
		return &TestResponder{}, nil
	}
	switch b.s.Chat.Backend {
	case config.ModeOpenAI:
		c, err := b.openAIClient()
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ModeOllama:
		return openai.NewOllama(b.s.Chat.OllamaURL, b.s.Chat.OllamaModel,
			openai.WithOllamaLogger(b.named("ollama"))), nil
	}
	return nil, &config.ModeError{Setting: "chat.backend", Value: b.s.Chat.Backend,
		Allowed: []string{config.ModeTest, config.ModeOpenAI, config.ModeOllama}}
}

func (b *builder) historyStore(sys *System) (HistoryStore, error) {
	if b.deps.History != nil {
		return b.deps.History, nil
	}
	if !b.s.Chat.UseHistory {
		return nil, nil
	}
	path := b.s.Chat.HistoryPath
	if b.s.TestMode {
		path = ":memory:"
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	sys.closers = append(sys.closers, store.Close)
	return store, nil
}

func (b *builder) player() Player {
	if b.deps.Player != nil {
		return b.deps.Player
	}
	if b.s.TestMode {
		return &TestPlayer{Delay: testModeDelay, Logger: b.named("audio")}
	}
	return CommandPlayer{Command: b.s.Audio.PlayCommand, Device: b.s.Audio.Device}
}

func (b *builder) recorder() Recorder {
	if b.deps.Recorder != nil {
		return b.deps.Recorder
	}
	if b.s.TestMode {
		return &TestRecorder{Delay: testModeDelay, Logger: b.named("audio")}
	}
	return CommandRecorder{Command: b.s.Audio.RecordCommand, Device: b.s.Audio.Device, SampleRate: b.s.Audio.SampleRate}
}

func (b *builder) mic(device string) Microphone {
	if b.s.TestMode {
		return &TestMicrophone{FrameSamples: b.s.Audio.FrameSamples}
	}
	return &CommandMicrophone{
		Command:      b.s.Audio.RecordCommand,
		Device:       device,
		SampleRate:   b.s.Audio.SampleRate,
		FrameSamples: b.s.Audio.FrameSamples,
	}
}

func (b *builder) detectorMic() Microphone {
	if b.deps.DetectorMic != nil {
		return b.deps.DetectorMic
	}
	return b.mic(b.s.Audio.Device)
}

func (b *builder) jawMic() Microphone {
	if b.deps.JawMic != nil {
		return b.deps.JawMic
	}
	device := b.s.Audio.LoopbackDevice
	if device == "" {
		device = b.s.Audio.Device
	}
	return b.mic(device)
}

func (b *builder) servo() Servo {
	if b.deps.Servo != nil {
		return b.deps.Servo
	}
	if b.s.TestMode || b.s.Jaw.ServoDevice == "" {
		return &TestServo{}
	}
	return FileServo{Path: b.s.Jaw.ServoDevice}
}

func (b *builder) pin() Pin {
	if b.deps.Pin != nil {
		return b.deps.Pin
	}
	if b.s.TestMode || b.s.Sensor.GPIOPath == "" {
		return &TestPin{}
	}
	return SysfsPin{Path: b.s.Sensor.GPIOPath}
}

func (b *builder) power() PowerController {
	if b.deps.Power != nil {
		return b.deps.Power
	}
	if b.s.TestMode {
		return &TestPower{Logger: b.named("PowerControl")}
	}
	return CommandPower{
		Wait:            b.s.Power.Wait,
		ShutdownCommand: b.s.Power.ShutdownCommand,
		RebootCommand:   b.s.Power.RebootCommand,
		Logger:          b.named("PowerControl"),
	}
}

func (b *builder) leds() LEDStrip {
	if b.deps.LEDs != nil {
		return b.deps.LEDs
	}
	if b.s.TestMode || b.s.Monitor.LEDDevice == "" {
		return NewTestLEDStrip(b.s.Monitor.LEDs)
	}
	return NewFileLEDStrip(b.s.Monitor.LEDDevice, b.s.Monitor.LEDs)
}

func (b *builder) sampler() Sampler {
	if b.deps.Sampler != nil {
		return b.deps.Sampler
	}
	if b.s.TestMode {
		return RuntimeSampler{}
	}
	return &ProcSampler{}
}
