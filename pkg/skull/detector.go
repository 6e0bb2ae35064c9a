package skull

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// micRetryDelay is the pause before reopening a failed detection mic.
const micRetryDelay = time.Second

// AudioDetector listens for a visitor while scan mode is on. A frame whose
// peak amplitude exceeds the threshold publishes HUMAN_DETECTED and turns
// scan mode off until the next SCAN_MODE_ON.
type AudioDetector struct {
	out       eventhive.Producer
	mic       Microphone
	threshold int
	logger    *slog.Logger

	scanning atomic.Bool
	wake     chan struct{}
}

// NewAudioDetector creates the detector behavior. Scanning starts off.
func NewAudioDetector(out eventhive.Producer, mic Microphone, threshold int, logger *slog.Logger) *AudioDetector {
	return &AudioDetector{
		out:       out,
		mic:       mic,
		threshold: threshold,
		logger:    orDefault(logger),
		wake:      make(chan struct{}, 1),
	}
}

// ConsumableKinds implements eventhive.Behavior.
func (d *AudioDetector) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{KindAudioDetectController}
}

// Handlers implements eventhive.Behavior.
func (d *AudioDetector) Handlers() eventhive.Handlers {
	return eventhive.Handlers{
		CmdScanModeOn:  d.scanOn,
		CmdScanModeOff: d.scanOff,
	}
}

// Scanning reports whether scan mode is on.
func (d *AudioDetector) Scanning() bool {
	return d.scanning.Load()
}

// scanOn arms detection and acknowledges with a completion, so a
// conversation waiting on the re-arm can finish.
func (d *AudioDetector) scanOn(_ context.Context, evt *eventhive.Event) error {
	d.logger.Debug("scan mode on")
	d.scanning.Store(true)
	d.poke()
	return finished(d.out, evt, eventhive.PriorityHigh)
}

func (d *AudioDetector) scanOff(context.Context, *eventhive.Event) error {
	d.logger.Debug("scan mode off")
	d.scanning.Store(false)
	d.poke()
	return nil
}

func (d *AudioDetector) poke() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run implements eventhive.Source. The microphone is owned by this
// goroutine: it is opened while scanning and closed otherwise.
func (d *AudioDetector) Run(ctx context.Context, p eventhive.Producer) error {
	open := false
	defer func() {
		if open {
			_ = d.mic.Close()
		}
	}()

	for ctx.Err() == nil {
		if !d.scanning.Load() {
			if open {
				_ = d.mic.Close()
				open = false
			}
			select {
			case <-ctx.Done():
			case <-d.wake:
			}
			continue
		}

		if !open {
			if err := d.mic.Open(ctx); err != nil {
				d.logger.Warn("detection mic unavailable", slog.String("error", err.Error()))
				_ = sleepCtx(ctx, micRetryDelay)
				continue
			}
			open = true
		}

		frame, err := d.mic.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			d.logger.Warn("detection mic read failed", slog.String("error", err.Error()))
			_ = d.mic.Close()
			open = false
			_ = sleepCtx(ctx, micRetryDelay)
			continue
		}

		peak := Peak(frame)
		if peak > d.threshold && d.scanning.CompareAndSwap(true, false) {
			d.logger.Info("sound detected", slog.Int("peak", peak), slog.Int("threshold", d.threshold))
			if err := emit(p, nil, KindDetect, eventhive.PriorityHigh, CmdHumanDetected); err != nil {
				return err
			}
		}
	}
	return nil
}
