package skull

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/eventhive/config"
)

func testSettings() config.Settings {
	s := config.Default()
	s.TestMode = true
	s.BootSplitWait = 0
	s.Monitor.Enabled = false
	s.Chat.UseHistory = false
	return s
}

func actorNames(sys *System) []string {
	names := make([]string, 0, len(sys.Actors))
	for _, a := range sys.Actors {
		names = append(names, a.Name())
	}
	return names
}

func TestBuild_RejectsUnknownMode(t *testing.T) {
	s := testSettings()
	s.TTS.Mode = "carrier-pigeon"

	sys, err := Build(s, eventhive.NewQueue(), Deps{Logger: discardLogger()})
	require.Error(t, err)
	assert.Nil(t, sys)

	var modeErr *config.ModeError
	require.True(t, errors.As(err, &modeErr))
	assert.Equal(t, "tts.mode", modeErr.Setting)
	assert.Equal(t, "carrier-pigeon", modeErr.Value)
}

func TestBuild_OpenAIWithoutKey(t *testing.T) {
	s := config.Default()
	s.Monitor.Enabled = false
	s.OpenAI.APIKey = ""
	q := eventhive.NewQueue()

	sys, err := Build(s, q, Deps{Logger: discardLogger()})
	require.Error(t, err)
	assert.Nil(t, sys)
	assert.ErrorContains(t, err, config.EnvOpenAIKey)
	assert.Zero(t, q.Subscribers(), "partially built actors are released")
}

func TestBuild_DemoSubset(t *testing.T) {
	s := testSettings()
	s.DemoMode = true

	sys, err := Build(s, eventhive.NewQueue(), Deps{Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })

	assert.Equal(t, []string{"AudioDetector", "TTS", "Jaw", "ConversationEngine"}, actorNames(sys))
	assert.Nil(t, sys.Monitor)
	assert.Nil(t, sys.Exchanges)
	_, ok := sys.Actor("Chatbot")
	assert.False(t, ok)
}

func TestBuild_FullSystem(t *testing.T) {
	s := testSettings()
	s.Sensor.Enabled = true
	s.Monitor.Enabled = true
	s.Chat.UseHistory = true

	sys, err := Build(s, eventhive.NewQueue(), Deps{Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })

	assert.Equal(t, []string{
		"AudioDetector", "MotionSensor", "TTS", "STT", "Chatbot",
		"CommandChecker", "PowerControl", "Exchanges", "Jaw", "ConversationEngine",
	}, actorNames(sys))
	require.NotNil(t, sys.Monitor)

	a, ok := sys.Actor("Jaw")
	require.True(t, ok)
	assert.Equal(t, "Jaw", a.Name())

	h := eventhive.NewHive(eventhive.NewQueue())
	sys.Register(h)
	services := h.Services()
	require.Len(t, services, 11)
	assert.Equal(t, "ResourceMonitor", services[0])
}

func TestBuild_ConversationEndToEnd(t *testing.T) {
	s := testSettings()
	s.Chat.UseHistory = true

	q := eventhive.NewQueue()
	mic := &TestMicrophone{}
	synth := &TestSynthesizer{}
	power := &TestPower{}
	sys, err := Build(s, q, Deps{
		Logger:      discardLogger(),
		DetectorMic: mic,
		Synthesizer: synth,
		Transcriber: NewTestTranscriber("what is your name"),
		Player:      &TestPlayer{Delay: 10 * time.Millisecond},
		Recorder:    &TestRecorder{Delay: 10 * time.Millisecond},
		Power:       power,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })

	h := eventhive.NewHive(q, eventhive.WithHiveLogger(discardLogger()))
	sys.Register(h)
	require.NoError(t, sys.Arm())
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Shutdown(2 * time.Second) })

	require.Eventually(t, mic.IsOpen, 2*time.Second, 5*time.Millisecond)
	mic.Push(loudFrame(256, 20000))

	require.Eventually(t, func() bool { return sys.Conversation.Completed() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{s.Greeting, "You said: what is your name"}, synth.Texts())
	assert.Equal(t, "what is your name", sys.Conversation.Transcript())
	assert.Empty(t, power.Calls())
	require.Eventually(t, func() bool { return sys.Exchanges.Count() == 1 }, time.Second, 5*time.Millisecond)

	// The conversation re-arms detection on its way out.
	require.Eventually(t, sys.Detector.Scanning, time.Second, 5*time.Millisecond)
	assert.False(t, sys.Conversation.Running())
}

func TestBuild_VoiceCommandEndToEnd(t *testing.T) {
	s := testSettings()

	q := eventhive.NewQueue()
	mic := &TestMicrophone{}
	synth := &TestSynthesizer{}
	power := &TestPower{}
	sys, err := Build(s, q, Deps{
		Logger:      discardLogger(),
		DetectorMic: mic,
		Synthesizer: synth,
		Transcriber: NewTestTranscriber("Shut down!"),
		Player:      &TestPlayer{},
		Recorder:    &TestRecorder{},
		Power:       power,
	})
	require.NoError(t, err)

	h := eventhive.NewHive(q, eventhive.WithHiveLogger(discardLogger()))
	sys.Register(h)
	require.NoError(t, sys.Arm())
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Shutdown(2 * time.Second) })

	require.Eventually(t, mic.IsOpen, 2*time.Second, 5*time.Millisecond)
	mic.Push(loudFrame(256, 20000))

	require.Eventually(t, func() bool { return sys.Conversation.Completed() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{CmdShutdown}, power.Calls())
	assert.Equal(t, []string{s.Greeting, s.ShutdownText}, synth.Texts())
}
