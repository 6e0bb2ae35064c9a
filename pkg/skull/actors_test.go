package skull

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/skull/history"
	"github.com/randalmurphal/eventhive/pkg/skull/openai"
)

func TestTTS_Generate(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindConversationDone)
	synth := &TestSynthesizer{}
	tts := NewTTS(q, synth, "speech.wav", discardLogger())

	evt := eventhive.MustNew(KindTTS, eventhive.PriorityHigh, CmdGenerateTTS, "Greetings, mortal.")
	require.NoError(t, call(t, tts, evt))

	assert.Equal(t, []string{"Greetings, mortal."}, synth.Texts())
	done := expect(t, out, KindConversationDone, CmdActionFinished)
	assert.Equal(t, eventhive.PriorityHigh, done.Priority())
	assert.Equal(t, evt.CorrelationID(), done.CorrelationID())
}

func TestTTS_FailuresStillComplete(t *testing.T) {
	tests := []struct {
		name  string
		text  any
		synth error
	}{
		{"blank text", "   ", nil},
		{"missing text", nil, nil},
		{"synthesis error", "hello", errors.New("quota exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := eventhive.NewQueue()
			out := tap(t, q, KindConversationDone)
			tts := NewTTS(q, &TestSynthesizer{Err: tt.synth}, "speech.wav", discardLogger())

			labels := []any{CmdGenerateTTS}
			if tt.text != nil {
				labels = append(labels, tt.text)
			}
			err := call(t, tts, eventhive.MustNew(KindTTS, eventhive.PriorityHigh, labels...))
			require.Error(t, err)
			if tt.synth != nil {
				assert.ErrorIs(t, err, tt.synth)
			}
			expect(t, out, KindConversationDone, CmdActionFinished)
		})
	}
}

func newTestSTT(q *eventhive.Queue, transcriber Transcriber, censor bool) (*STT, *TestRecorder) {
	rec := &TestRecorder{}
	engine := NewAudioEngine(&TestPlayer{}, rec, discardLogger())
	stt := NewSTT(q, engine, transcriber, STTConfig{
		RecordingPath:  "recording.wav",
		RecordDuration: 5 * time.Second,
		Censor:         censor,
	}, discardLogger())
	return stt, rec
}

func TestSTT_RecordsAndTranscribes(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindSTTDone, KindConversationDone)
	transcriber := NewTestTranscriber("well damn, a talking skull")
	stt, rec := newTestSTT(q, transcriber, true)

	require.NoError(t, call(t, stt, eventhive.MustNew(KindSTT, eventhive.PriorityHigh, CmdRecordInferSpeech)))

	assert.Equal(t, []string{"recording.wav"}, rec.Recorded())
	assert.Equal(t, 1, transcriber.Calls())

	heard := expect(t, out, KindSTTDone, CmdSTTFinished)
	assert.Equal(t, "well ***** a talking skull", argOf(t, heard))
	done := expect(t, out, KindConversationDone, CmdActionFinished)
	assert.Equal(t, eventhive.PriorityHigh, done.Priority())
}

func TestSTT_FailureReportsEmptyTranscript(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindSTTDone, KindConversationDone)
	transcriber := NewTestTranscriber()
	boom := errors.New("service unavailable")
	transcriber.FailNext(boom)
	stt, _ := newTestSTT(q, transcriber, false)

	err := call(t, stt, eventhive.MustNew(KindSTT, eventhive.PriorityHigh, CmdRecordInferSpeech))
	assert.ErrorIs(t, err, boom)

	heard := expect(t, out, KindSTTDone, CmdSTTFinished)
	assert.Equal(t, "", argOf(t, heard))
	expect(t, out, KindConversationDone, CmdActionFinished)

	// The next attempt falls back to the default transcript.
	require.NoError(t, call(t, stt, eventhive.MustNew(KindSTT, eventhive.PriorityHigh, CmdRecordInferSpeech)))
	assert.Equal(t, DefaultTestTranscript, argOf(t, expect(t, out, KindSTTDone, CmdSTTFinished)))
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func askBot(t *testing.T, bot *Chatbot, prompt string) error {
	t.Helper()
	return call(t, bot, eventhive.MustNew(KindBot, eventhive.PriorityHigh, CmdGetBotResponse, prompt))
}

func TestChatbot_RespondsWithHistory(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindBotDone, KindConversationDone)
	responder := &TestResponder{}
	store := openHistory(t)
	bot := NewChatbot(q, responder, store, ChatbotConfig{Role: "You are a skull.", HistoryLimit: 10}, discardLogger())

	require.NoError(t, askBot(t, bot, "hello"))
	reply := expect(t, out, KindBotDone, CmdBotFinished)
	assert.Equal(t, "You said: hello", argOf(t, reply))
	done := expect(t, out, KindConversationDone, CmdActionFinished)
	assert.Equal(t, eventhive.PriorityNormal, done.Priority())

	require.NoError(t, askBot(t, bot, "who are you"))
	expect(t, out, KindBotDone, CmdBotFinished)
	expect(t, out, KindConversationDone, CmdActionFinished)

	requests := responder.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, []openai.Message{
		{Role: history.RoleSystem, Content: "You are a skull."},
		{Role: history.RoleUser, Content: "hello"},
	}, requests[0])
	assert.Equal(t, []openai.Message{
		{Role: history.RoleSystem, Content: "You are a skull."},
		{Role: history.RoleUser, Content: "hello"},
		{Role: history.RoleAssistant, Content: "You said: hello"},
		{Role: history.RoleUser, Content: "who are you"},
	}, requests[1])

	n, err := store.Count(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestChatbot_HistoryLimit(t *testing.T) {
	q := eventhive.NewQueue()
	responder := &TestResponder{}
	bot := NewChatbot(q, responder, openHistory(t), ChatbotConfig{HistoryLimit: 2}, discardLogger())

	for _, prompt := range []string{"one", "two", "three"} {
		require.NoError(t, askBot(t, bot, prompt))
	}

	requests := responder.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, []openai.Message{
		{Role: history.RoleUser, Content: "two"},
		{Role: history.RoleAssistant, Content: "You said: two"},
		{Role: history.RoleUser, Content: "three"},
	}, requests[2])
}

func TestChatbot_Failures(t *testing.T) {
	t.Run("empty prompt", func(t *testing.T) {
		q := eventhive.NewQueue()
		out := tap(t, q, KindBotDone, KindConversationDone)
		responder := &TestResponder{}
		bot := NewChatbot(q, responder, nil, ChatbotConfig{}, discardLogger())

		require.Error(t, askBot(t, bot, "  "))
		assert.Empty(t, responder.Requests())
		assert.Equal(t, "", argOf(t, expect(t, out, KindBotDone, CmdBotFinished)))
		expect(t, out, KindConversationDone, CmdActionFinished)
	})

	t.Run("responder error", func(t *testing.T) {
		q := eventhive.NewQueue()
		out := tap(t, q, KindBotDone, KindConversationDone)
		boom := errors.New("model overloaded")
		store := openHistory(t)
		bot := NewChatbot(q, &TestResponder{Err: boom}, store, ChatbotConfig{}, discardLogger())

		assert.ErrorIs(t, askBot(t, bot, "hi"), boom)
		assert.Equal(t, "", argOf(t, expect(t, out, KindBotDone, CmdBotFinished)))
		expect(t, out, KindConversationDone, CmdActionFinished)

		n, err := store.Count(testCtx(t))
		require.NoError(t, err)
		assert.Zero(t, n, "failed exchanges are not remembered")
	})
}

func TestPowerControl(t *testing.T) {
	tests := []struct {
		cmd string
	}{
		{CmdShutdown},
		{CmdReboot},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			q := eventhive.NewQueue()
			out := tap(t, q, KindConversationDone)
			power := &TestPower{}
			pc := NewPowerControl(q, power, discardLogger())

			require.NoError(t, call(t, pc, eventhive.MustNew(KindHardware, eventhive.PriorityHigh, tt.cmd)))
			assert.Equal(t, []string{tt.cmd}, power.Calls())

			done := expect(t, out, KindConversationDone, CmdActionFinished)
			assert.Equal(t, eventhive.PriorityNormal, done.Priority())
		})
	}
}

func TestAudioEngine_SerializesOperations(t *testing.T) {
	player := &TestPlayer{Delay: 50 * time.Millisecond}
	engine := NewAudioEngine(player, &TestRecorder{}, discardLogger())
	ctx := testCtx(t)

	started := make(chan struct{})
	go func() {
		close(started)
		_ = engine.Play(ctx, "a.wav")
	}()
	<-started
	require.Eventually(t, engine.Playing, time.Second, time.Millisecond)

	var ranAlone bool
	require.NoError(t, engine.Exclusive(ctx, func(context.Context) error {
		ranAlone = len(player.Played()) == 1
		return nil
	}))
	assert.True(t, ranAlone)
	assert.False(t, engine.Playing())
}
