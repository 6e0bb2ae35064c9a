package skull

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// MotionSensor polls a presence detector (the microwave radar board) and
// publishes HUMAN_DETECTED on each rising edge. It consumes nothing.
type MotionSensor struct {
	pin      Pin
	interval time.Duration
	logger   *slog.Logger
}

// NewMotionSensor creates the sensor behavior.
func NewMotionSensor(pin Pin, interval time.Duration, logger *slog.Logger) *MotionSensor {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &MotionSensor{pin: pin, interval: interval, logger: orDefault(logger)}
}

// ConsumableKinds implements eventhive.Behavior.
func (s *MotionSensor) ConsumableKinds() []eventhive.Kind { return nil }

// Handlers implements eventhive.Behavior.
func (s *MotionSensor) Handlers() eventhive.Handlers { return nil }

// Run implements eventhive.Source.
func (s *MotionSensor) Run(ctx context.Context, p eventhive.Producer) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := false
	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		high, err := s.pin.Read()
		if err != nil {
			// Log once per failure streak, not every poll.
			if !failing {
				s.logger.Warn("motion sensor read failed", slog.String("error", err.Error()))
				failing = true
			}
			continue
		}
		failing = false

		if high && !last {
			s.logger.Info("motion detected")
			if err := emit(p, nil, KindDetect, eventhive.PriorityHigh, CmdHumanDetected); err != nil {
				return err
			}
		}
		last = high
	}
}
