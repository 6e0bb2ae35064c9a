package skull

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

var testCalibration = JawCalibration{OpenPulse: 2000, ClosePulse: 1000, MinRMS: 15, MaxRMS: 50}

func TestJawCalibration_Pulse(t *testing.T) {
	tests := []struct {
		name string
		rms  float64
		want float64
	}{
		{"silence", 0, 1000},
		{"negative clamps", -5, 1000},
		{"at floor", 15, 1000},
		{"half way", 25, 1500},
		{"at ceiling", 50, 2000},
		{"above ceiling clamps", 100, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, testCalibration.Pulse(tt.rms), 1e-9)
		})
	}
}

func TestJawCalibration_ZeroCeilingStaysClosed(t *testing.T) {
	c := JawCalibration{OpenPulse: 2000, ClosePulse: 1000}
	assert.Equal(t, 1000.0, c.Pulse(40))
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS(make([]int16, 32)))
	assert.InDelta(t, 50, RMS(loudFrame(64, 16384)), 1e-9)
	assert.InDelta(t, 100, RMS([]int16{-32768, -32768}), 1e-9)
}

func TestPeak(t *testing.T) {
	assert.Zero(t, Peak(nil))
	assert.Equal(t, 1000, Peak(loudFrame(8, 1000)))
	assert.Equal(t, 32768, Peak([]int16{3, -32768, 12}))
}

type failingMic struct{ err error }

func (m failingMic) Open(context.Context) error { return m.err }
func (m failingMic) ReadFrame(context.Context) ([]int16, error) { return nil, m.err }
func (m failingMic) Close() error { return nil }

func TestJaw_SpeakFollowsPlayback(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindConversationDone)

	player := &TestPlayer{Delay: 60 * time.Millisecond}
	engine := NewAudioEngine(player, &TestRecorder{}, discardLogger())
	mic := &TestMicrophone{}
	mic.Push(loudFrame(64, 16384), loudFrame(64, 16384))
	servo := &TestServo{}
	jaw := NewJaw(q, engine, mic, servo, testCalibration, time.Second, discardLogger())

	evt := eventhive.MustNew(KindMovement, eventhive.PriorityHigh, CmdJawTTSAudio, "speech.wav")
	require.NoError(t, call(t, jaw, evt))

	assert.Equal(t, []string{"speech.wav"}, player.Played())
	pulses := servo.Pulses()
	require.NotEmpty(t, pulses)
	assert.Contains(t, pulses, 2000.0)
	assert.Equal(t, 1000.0, pulses[len(pulses)-1], "jaw closes at the end")
	assert.False(t, mic.IsOpen())

	done := expect(t, out, KindConversationDone, CmdActionFinished)
	assert.Equal(t, eventhive.PriorityHigh, done.Priority())
	assert.Equal(t, evt.ID(), done.CausationID())
}

func TestJaw_ListenWithoutPath(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindConversationDone)

	player := &TestPlayer{}
	mic := &TestMicrophone{}
	servo := &TestServo{}
	jaw := NewJaw(q, NewAudioEngine(player, &TestRecorder{}, nil), mic, servo, testCalibration, 30*time.Millisecond, nil)

	start := time.Now()
	require.NoError(t, call(t, jaw, eventhive.MustNew(KindMovement, eventhive.PriorityHigh, CmdJawTTSAudio)))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	assert.Empty(t, player.Played())
	assert.Equal(t, 1, mic.Opens())
	assert.False(t, mic.IsOpen())
	expect(t, out, KindConversationDone, CmdActionFinished)
}

func TestJaw_MicFailureStillCompletes(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindConversationDone)

	boom := errors.New("no capture device")
	player := &TestPlayer{}
	jaw := NewJaw(q, NewAudioEngine(player, &TestRecorder{}, nil), failingMic{err: boom}, &TestServo{}, testCalibration, time.Second, nil)

	err := call(t, jaw, eventhive.MustNew(KindMovement, eventhive.PriorityHigh, CmdJawTTSAudio, "speech.wav"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"speech.wav"}, player.Played())
	expect(t, out, KindConversationDone, CmdActionFinished)
}
