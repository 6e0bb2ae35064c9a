package skull

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

func TestMotionSensor_PublishesOnRisingEdge(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindDetect)
	pin := &TestPin{}
	sensor := NewMotionSensor(pin, 5*time.Millisecond, discardLogger())

	assert.Empty(t, sensor.ConsumableKinds())
	assert.Empty(t, sensor.Handlers())

	startActor(t, q, "MotionSensor", sensor)
	expectQuiet(t, out)

	pin.Set(true)
	evt := expect(t, out, KindDetect, CmdHumanDetected)
	assert.Equal(t, eventhive.PriorityHigh, evt.Priority())

	// Holding high is one detection.
	expectQuiet(t, out)

	pin.Set(false)
	time.Sleep(30 * time.Millisecond)
	pin.Set(true)
	expect(t, out, KindDetect, CmdHumanDetected)
}

type brokenPin struct{}

func (brokenPin) Read() (bool, error) { return false, errors.New("gpio unavailable") }

func TestMotionSensor_ReadErrorsPublishNothing(t *testing.T) {
	q := eventhive.NewQueue()
	out := tap(t, q, KindDetect)
	startActor(t, q, "MotionSensor", NewMotionSensor(brokenPin{}, 5*time.Millisecond, discardLogger()))
	expectQuiet(t, out)
}

func TestNewMotionSensor_DefaultInterval(t *testing.T) {
	s := NewMotionSensor(&TestPin{}, 0, nil)
	require.NotNil(t, s)
	assert.Equal(t, 50*time.Millisecond, s.interval)
}
