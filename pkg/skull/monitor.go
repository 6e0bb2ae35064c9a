package skull

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/eventhive/observability"
)

// MonitorConfig configures the resource monitor.
type MonitorConfig struct {
	// Rate is the interval between LED updates.
	Rate time.Duration
	// Interpolation is the fraction of the gap to a new sample covered per
	// update; smaller is smoother.
	Interpolation float64
	// Brightness scales the LED value channel.
	Brightness float64
}

// ResourceMonitor shows host load on the LED bar: the number of lit LEDs
// follows memory use and the hue slides from green to red with CPU load.
//
// It is a hive service but not an actor: it reads no events, runs until
// stopped, and is never joined by the hive's Wait.
type ResourceMonitor struct {
	sampler Sampler
	strip   LEDStrip
	cfg     MonitorConfig
	metrics observability.MetricsRecorder
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	shown   Usage
}

// MonitorOption configures a ResourceMonitor.
type MonitorOption func(*ResourceMonitor)

// WithMonitorMetrics records the smoothed usage as gauges.
func WithMonitorMetrics(m observability.MetricsRecorder) MonitorOption {
	return func(r *ResourceMonitor) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithMonitorLogger sets the logger.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(r *ResourceMonitor) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResourceMonitor creates a stopped monitor.
func NewResourceMonitor(sampler Sampler, strip LEDStrip, cfg MonitorConfig, opts ...MonitorOption) *ResourceMonitor {
	if cfg.Rate <= 0 {
		cfg.Rate = 20 * time.Millisecond
	}
	if cfg.Interpolation <= 0 || cfg.Interpolation > 1 {
		cfg.Interpolation = 0.1
	}
	r := &ResourceMonitor{
		sampler: sampler,
		strip:   strip,
		cfg:     cfg,
		metrics: observability.NoopMetrics{},
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = observability.EnrichLogger(r.logger, r.Name())
	return r
}

// Name implements eventhive.Service.
func (r *ResourceMonitor) Name() string { return "ResourceMonitor" }

// Start implements eventhive.Service.
func (r *ResourceMonitor) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("monitor: %w", eventhive.ErrAlreadyStarted)
	}
	if r.stopped {
		return fmt.Errorf("monitor: %w", eventhive.ErrStopped)
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
	return nil
}

// Stop implements eventhive.Service. The LEDs are cleared on the way out.
func (r *ResourceMonitor) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	if r.started {
		r.cancel()
		return
	}
	close(r.done)
}

// Join implements eventhive.Service.
func (r *ResourceMonitor) Join() { <-r.done }

// JoinTimeout waits up to d for the monitor to exit.
func (r *ResourceMonitor) JoinTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.done:
		return true
	case <-timer.C:
		return false
	}
}

// Shown returns the smoothed usage currently displayed.
func (r *ResourceMonitor) Shown() Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown
}

func (r *ResourceMonitor) run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		if err := r.strip.Clear(); err != nil {
			r.logger.Warn("clear LEDs failed", slog.String("error", err.Error()))
		}
	}()

	ticker := time.NewTicker(r.cfg.Rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		r.update(ctx)
	}
}

func (r *ResourceMonitor) update(ctx context.Context) {
	u, err := r.sampler.Sample(ctx)
	if err != nil {
		r.logger.Debug("resource sample failed", slog.String("error", err.Error()))
		return
	}

	r.mu.Lock()
	r.shown = Interpolate(r.shown, u, r.cfg.Interpolation)
	shown := r.shown
	r.mu.Unlock()

	if err := Render(r.strip, shown, r.cfg.Brightness); err != nil {
		r.logger.Debug("LED update failed", slog.String("error", err.Error()))
	}
	r.metrics.RecordResources(ctx, shown.Memory, shown.CPU)
}

// Interpolate moves from toward to by the fraction t.
func Interpolate(from, to Usage, t float64) Usage {
	return Usage{
		Memory: from.Memory + (to.Memory-from.Memory)*t,
		CPU:    from.CPU + (to.CPU-from.CPU)*t,
	}
}

// Render draws u on strip. LED i is lit when i/n <= memory use; lit LEDs
// share a hue of 0.33*(1-cpu), green when idle and red at full load.
func Render(strip LEDStrip, u Usage, brightness float64) error {
	n := strip.Len()
	if n == 0 {
		return nil
	}
	hue := 0.33 * (1 - clamp01(u.CPU))
	for i := range n {
		if float64(i)/float64(n) <= u.Memory {
			strip.Set(i, Color{H: hue, S: 1, V: brightness})
		} else {
			strip.Set(i, Color{})
		}
	}
	return strip.Show()
}
