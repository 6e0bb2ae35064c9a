package skull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// JawCalibration maps loudness to servo pulse widths (microseconds).
// RMS values are in percent of int16 full scale.
type JawCalibration struct {
	OpenPulse  float64
	ClosePulse float64
	MinRMS     float64
	MaxRMS     float64
}

// Pulse returns the pulse width for rms. Loudness is clamped to
// [0, MaxRMS]; at or below MinRMS the jaw closes.
func (c JawCalibration) Pulse(rms float64) float64 {
	rms = math.Max(0, math.Min(rms, c.MaxRMS))
	if rms <= c.MinRMS || c.MaxRMS <= 0 {
		return c.ClosePulse
	}
	return rms/c.MaxRMS*(c.OpenPulse-c.ClosePulse) + c.ClosePulse
}

// RMS returns the root mean square of frame in percent of full scale.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(frame))) / 32768 * 100
}

// Peak returns the largest absolute sample in frame.
func Peak(frame []int16) int {
	peak := 0
	for _, s := range frame {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Jaw moves the skull's jaw in time with speech.
//
// With a file path, the file is played through the audio engine while the
// loopback capture of the speaker drives the servo. Without a path the jaw
// follows the microphone for the listen duration.
type Jaw struct {
	out       eventhive.Producer
	engine    *AudioEngine
	mic       Microphone
	servo     Servo
	cal       JawCalibration
	listenFor time.Duration
	logger    *slog.Logger
}

// NewJaw creates the jaw actor behavior.
func NewJaw(out eventhive.Producer, engine *AudioEngine, mic Microphone, servo Servo, cal JawCalibration, listenFor time.Duration, logger *slog.Logger) *Jaw {
	return &Jaw{
		out:       out,
		engine:    engine,
		mic:       mic,
		servo:     servo,
		cal:       cal,
		listenFor: listenFor,
		logger:    orDefault(logger),
	}
}

// ConsumableKinds implements eventhive.Behavior.
func (j *Jaw) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{KindMovement}
}

// Handlers implements eventhive.Behavior.
func (j *Jaw) Handlers() eventhive.Handlers {
	return eventhive.Handlers{CmdJawTTSAudio: j.move}
}

func (j *Jaw) move(ctx context.Context, evt *eventhive.Event) error {
	path, _ := evt.StringArg()

	var err error
	if path != "" {
		err = j.speak(ctx, path)
	} else {
		err = j.listen(ctx)
	}
	return errors.Join(err, finished(j.out, evt, eventhive.PriorityHigh))
}

func (j *Jaw) speak(ctx context.Context, path string) error {
	trackCtx, stop := context.WithCancel(ctx)
	tracked := make(chan error, 1)
	go func() { tracked <- j.track(trackCtx) }()

	playErr := j.engine.Play(ctx, path)
	stop()
	if playErr != nil {
		playErr = fmt.Errorf("play: %w", playErr)
	}
	return errors.Join(playErr, <-tracked)
}

func (j *Jaw) listen(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.listenFor)
	defer cancel()
	return j.track(ctx)
}

// track drives the servo from microphone loudness until ctx ends, then
// closes the jaw.
func (j *Jaw) track(ctx context.Context) (err error) {
	if err := j.mic.Open(ctx); err != nil {
		return fmt.Errorf("open jaw mic: %w", err)
	}
	defer func() {
		closeErr := j.servo.SetPulse(j.cal.ClosePulse)
		err = errors.Join(err, closeErr, j.mic.Close())
	}()

	for ctx.Err() == nil {
		frame, err := j.mic.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read jaw mic: %w", err)
		}
		rms := RMS(frame)
		pulse := j.cal.Pulse(rms)
		j.logger.Debug("jaw", slog.Float64("rms", rms), slog.Float64("pulse", pulse))
		if err := j.servo.SetPulse(pulse); err != nil {
			return fmt.Errorf("servo: %w", err)
		}
	}
	return nil
}
