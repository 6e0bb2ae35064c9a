package config

import (
	"errors"
	"fmt"
	"time"
)

// Backend modes.
const (
	ModeTest    = "test"
	ModeOpenAI  = "openai"
	ModeCommand = "command"
	ModeOllama  = "ollama"
)

// Settings is the typed configuration of the skull process.
type Settings struct {
	Log           LogSettings
	BootSplitWait time.Duration
	// ShutdownTimeout bounds each service join on exit.
	ShutdownTimeout time.Duration

	// TestMode swaps every collaborator for its test implementation.
	TestMode bool
	// DemoMode runs only the greeting cycle on each detection.
	DemoMode bool

	Greeting     string
	ShutdownText string
	RebootText   string
	TestText     string
	// MaxSilentRestarts ends a conversation after this many empty
	// transcriptions in a row.
	MaxSilentRestarts int

	Audio    AudioSettings
	Jaw      JawSettings
	TTS      TTSSettings
	STT      STTSettings
	Chat     ChatSettings
	OpenAI   OpenAISettings
	Commands CommandSettings
	Power    PowerSettings
	Monitor  MonitorSettings
	Sensor   SensorSettings
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level      string
	Format     string
	OTelBridge bool
}

// AudioSettings configures capture and playback.
type AudioSettings struct {
	PlayCommand    string
	RecordCommand  string
	Device         string
	LoopbackDevice string // capture side of the speaker loopback, for jaw sync
	SampleRate     int
	FrameSamples   int
	SpeechPath     string // synthesized speech output
	RecordingPath  string // captured user speech
	RecordDuration time.Duration
	// DetectionThreshold is the peak int16 amplitude that counts as a visitor.
	DetectionThreshold int
}

// JawSettings maps audio loudness to servo pulse widths.
type JawSettings struct {
	OpenPulse  float64 // microseconds
	ClosePulse float64
	// MinRMS and MaxRMS are in percent of int16 full scale.
	MinRMS         float64
	MaxRMS         float64
	ListenDuration time.Duration
	ServoDevice    string
}

// TTSSettings selects the speech synthesizer.
type TTSSettings struct {
	Mode    string
	Model   string
	Voice   string
	Command []string // argv for command mode; the text is appended
}

// STTSettings selects the transcriber.
type STTSettings struct {
	Mode     string
	Model    string
	Censor   bool
	Language string
}

// ChatSettings selects the chatbot backend.
type ChatSettings struct {
	Backend      string
	Model        string
	OllamaURL    string
	OllamaModel  string
	Role         string
	UseHistory   bool
	HistoryPath  string
	HistoryLimit int
}

// OpenAISettings configures the OpenAI HTTP client.
type OpenAISettings struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CommandSettings lists the spoken phrases that trigger commands.
type CommandSettings struct {
	OverrideWord string
	Shutdown     []string
	Reboot       []string
	Test         []string
}

// PowerSettings configures the OS power commands.
type PowerSettings struct {
	Wait            time.Duration
	ShutdownCommand []string
	RebootCommand   []string
}

// MonitorSettings configures the LED resource monitor.
type MonitorSettings struct {
	Enabled       bool
	Rate          time.Duration
	Interpolation float64
	Brightness    float64
	LEDs          int
	LEDDevice     string
}

// SensorSettings configures the motion sensor.
type SensorSettings struct {
	Enabled      bool
	PollInterval time.Duration
	GPIOPath     string
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Log:               LogSettings{Level: "info", Format: "text"},
		BootSplitWait:     5 * time.Second,
		ShutdownTimeout:   2 * time.Second,
		Greeting:          "Hello there. Who dares disturb my slumber?",
		ShutdownText:      "Shutting down. Farewell, mortal.",
		RebootText:        "Rebooting. I shall return.",
		TestText:          "Test command received. All systems nominal.",
		MaxSilentRestarts: 3,
		Audio: AudioSettings{
			PlayCommand:        "aplay",
			RecordCommand:      "arecord",
			SampleRate:         16000,
			FrameSamples:       1024,
			SpeechPath:         "audio/tts_output.wav",
			RecordingPath:      "audio/recording.wav",
			RecordDuration:     8 * time.Second,
			DetectionThreshold: 3000,
		},
		Jaw: JawSettings{
			OpenPulse:      2000,
			ClosePulse:     1000,
			MinRMS:         15,
			MaxRMS:         50,
			ListenDuration: 30 * time.Second,
		},
		TTS: TTSSettings{
			Mode:    ModeOpenAI,
			Model:   "tts-1",
			Voice:   "onyx",
			Command: []string{"espeak", "-w"},
		},
		STT: STTSettings{
			Mode:     ModeOpenAI,
			Model:    "whisper-1",
			Language: "en",
		},
		Chat: ChatSettings{
			Backend:      ModeOpenAI,
			Model:        "gpt-4o-mini",
			OllamaURL:    "http://localhost:11434",
			OllamaModel:  "llama3",
			Role:         "You are a sarcastic animatronic skull. Keep answers short.",
			UseHistory:   true,
			HistoryPath:  "skull_history.db",
			HistoryLimit: 20,
		},
		OpenAI: OpenAISettings{
			BaseURL: "https://api.openai.com/v1",
			Timeout: 60 * time.Second,
		},
		Commands: CommandSettings{
			OverrideWord: "override",
			Shutdown:     []string{"shutdown", "shut down"},
			Reboot:       []string{"reboot"},
			Test:         []string{"test command"},
		},
		Power: PowerSettings{
			Wait:            5 * time.Second,
			ShutdownCommand: []string{"sudo", "shutdown", "now"},
			RebootCommand:   []string{"sudo", "reboot", "now"},
		},
		Monitor: MonitorSettings{
			Enabled:       true,
			Rate:          20 * time.Millisecond,
			Interpolation: 0.1,
			Brightness:    1.0,
			LEDs:          8,
		},
		Sensor: SensorSettings{
			PollInterval: 50 * time.Millisecond,
		},
	}
}

// Apply overlays values present in cfg onto s.
func (s *Settings) Apply(cfg Config) {
	s.Log.Level = cfg.String("log.level", s.Log.Level)
	s.Log.Format = cfg.String("log.format", s.Log.Format)
	s.Log.OTelBridge = cfg.Bool("log.otel_bridge", s.Log.OTelBridge)
	s.BootSplitWait = cfg.Duration("boot_split_wait", s.BootSplitWait)
	s.ShutdownTimeout = cfg.Duration("shutdown_timeout", s.ShutdownTimeout)
	s.TestMode = cfg.Bool("test_mode", s.TestMode)
	s.DemoMode = cfg.Bool("demo_mode", s.DemoMode)
	s.Greeting = cfg.String("greeting", s.Greeting)
	s.ShutdownText = cfg.String("shutdown_text", s.ShutdownText)
	s.RebootText = cfg.String("reboot_text", s.RebootText)
	s.TestText = cfg.String("test_text", s.TestText)
	s.MaxSilentRestarts = cfg.Int("max_silent_restarts", s.MaxSilentRestarts)

	audio := cfg.Section("audio")
	s.Audio.PlayCommand = audio.String("play_command", s.Audio.PlayCommand)
	s.Audio.RecordCommand = audio.String("record_command", s.Audio.RecordCommand)
	s.Audio.Device = audio.String("device", s.Audio.Device)
	s.Audio.LoopbackDevice = audio.String("loopback_device", s.Audio.LoopbackDevice)
	s.Audio.SampleRate = audio.Int("sample_rate", s.Audio.SampleRate)
	s.Audio.FrameSamples = audio.Int("frame_samples", s.Audio.FrameSamples)
	s.Audio.SpeechPath = audio.String("speech_path", s.Audio.SpeechPath)
	s.Audio.RecordingPath = audio.String("recording_path", s.Audio.RecordingPath)
	s.Audio.RecordDuration = audio.Duration("record_duration", s.Audio.RecordDuration)
	s.Audio.DetectionThreshold = audio.Int("detection_threshold", s.Audio.DetectionThreshold)

	jaw := cfg.Section("jaw")
	s.Jaw.OpenPulse = jaw.Float("open_pulse", s.Jaw.OpenPulse)
	s.Jaw.ClosePulse = jaw.Float("close_pulse", s.Jaw.ClosePulse)
	s.Jaw.MinRMS = jaw.Float("min_rms", s.Jaw.MinRMS)
	s.Jaw.MaxRMS = jaw.Float("max_rms", s.Jaw.MaxRMS)
	s.Jaw.ListenDuration = jaw.Duration("listen_duration", s.Jaw.ListenDuration)
	s.Jaw.ServoDevice = jaw.String("servo_device", s.Jaw.ServoDevice)

	tts := cfg.Section("tts")
	s.TTS.Mode = tts.String("mode", s.TTS.Mode)
	s.TTS.Model = tts.String("model", s.TTS.Model)
	s.TTS.Voice = tts.String("voice", s.TTS.Voice)
	s.TTS.Command = tts.StringSlice("command", s.TTS.Command)

	stt := cfg.Section("stt")
	s.STT.Mode = stt.String("mode", s.STT.Mode)
	s.STT.Model = stt.String("model", s.STT.Model)
	s.STT.Censor = stt.Bool("censor", s.STT.Censor)
	s.STT.Language = stt.String("language", s.STT.Language)

	chat := cfg.Section("chat")
	s.Chat.Backend = chat.String("backend", s.Chat.Backend)
	s.Chat.Model = chat.String("model", s.Chat.Model)
	s.Chat.OllamaURL = chat.String("ollama_url", s.Chat.OllamaURL)
	s.Chat.OllamaModel = chat.String("ollama_model", s.Chat.OllamaModel)
	s.Chat.Role = chat.String("role", s.Chat.Role)
	s.Chat.UseHistory = chat.Bool("use_history", s.Chat.UseHistory)
	s.Chat.HistoryPath = chat.String("history_path", s.Chat.HistoryPath)
	s.Chat.HistoryLimit = chat.Int("history_limit", s.Chat.HistoryLimit)

	openai := cfg.Section("openai")
	s.OpenAI.BaseURL = openai.String("base_url", s.OpenAI.BaseURL)
	s.OpenAI.APIKey = openai.String("api_key", s.OpenAI.APIKey)
	s.OpenAI.Timeout = openai.Duration("timeout", s.OpenAI.Timeout)

	cmds := cfg.Section("commands")
	s.Commands.OverrideWord = cmds.String("override_word", s.Commands.OverrideWord)
	s.Commands.Shutdown = cmds.StringSlice("shutdown", s.Commands.Shutdown)
	s.Commands.Reboot = cmds.StringSlice("reboot", s.Commands.Reboot)
	s.Commands.Test = cmds.StringSlice("test", s.Commands.Test)

	power := cfg.Section("power")
	s.Power.Wait = power.Duration("wait", s.Power.Wait)
	s.Power.ShutdownCommand = power.StringSlice("shutdown_command", s.Power.ShutdownCommand)
	s.Power.RebootCommand = power.StringSlice("reboot_command", s.Power.RebootCommand)

	mon := cfg.Section("monitor")
	s.Monitor.Enabled = mon.Bool("enabled", s.Monitor.Enabled)
	s.Monitor.Rate = mon.Duration("rate", s.Monitor.Rate)
	s.Monitor.Interpolation = mon.Float("interpolation", s.Monitor.Interpolation)
	s.Monitor.Brightness = mon.Float("brightness", s.Monitor.Brightness)
	s.Monitor.LEDs = mon.Int("leds", s.Monitor.LEDs)
	s.Monitor.LEDDevice = mon.String("led_device", s.Monitor.LEDDevice)

	sensor := cfg.Section("sensor")
	s.Sensor.Enabled = sensor.Bool("enabled", s.Sensor.Enabled)
	s.Sensor.PollInterval = sensor.Duration("poll_interval", s.Sensor.PollInterval)
	s.Sensor.GPIOPath = sensor.String("gpio_path", s.Sensor.GPIOPath)
}

// Validate checks backend modes and numeric ranges. Mode problems are
// reported as *ModeError.
func (s Settings) Validate() error {
	var errs []error

	if err := CheckMode("tts.mode", s.TTS.Mode, ModeTest, ModeOpenAI, ModeCommand); err != nil {
		errs = append(errs, err)
	}
	if err := CheckMode("stt.mode", s.STT.Mode, ModeTest, ModeOpenAI); err != nil {
		errs = append(errs, err)
	}
	if err := CheckMode("chat.backend", s.Chat.Backend, ModeTest, ModeOpenAI, ModeOllama); err != nil {
		errs = append(errs, err)
	}
	if err := CheckMode("log.format", s.Log.Format, "text", "json"); err != nil {
		errs = append(errs, err)
	}

	if s.Jaw.MaxRMS <= 0 {
		errs = append(errs, fmt.Errorf("jaw.max_rms must be positive, got %v", s.Jaw.MaxRMS))
	}
	if s.Jaw.MinRMS < 0 || s.Jaw.MinRMS > s.Jaw.MaxRMS {
		errs = append(errs, fmt.Errorf("jaw.min_rms must be in [0, max_rms], got %v", s.Jaw.MinRMS))
	}
	if s.Monitor.Interpolation <= 0 || s.Monitor.Interpolation > 1 {
		errs = append(errs, fmt.Errorf("monitor.interpolation must be in (0, 1], got %v", s.Monitor.Interpolation))
	}
	if s.Monitor.Rate <= 0 {
		errs = append(errs, fmt.Errorf("monitor.rate must be positive, got %v", s.Monitor.Rate))
	}
	if s.BootSplitWait < 0 {
		errs = append(errs, fmt.Errorf("boot_split_wait must not be negative, got %v", s.BootSplitWait))
	}

	return errors.Join(errs...)
}
