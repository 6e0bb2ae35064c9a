package skull

import (
	"context"
	"errors"
	"log/slog"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// PowerControl shuts down or reboots the host on Hardware_Event commands.
type PowerControl struct {
	out    eventhive.Producer
	power  PowerController
	logger *slog.Logger
}

// NewPowerControl creates the power actor behavior.
func NewPowerControl(out eventhive.Producer, power PowerController, logger *slog.Logger) *PowerControl {
	return &PowerControl{out: out, power: power, logger: orDefault(logger)}
}

// ConsumableKinds implements eventhive.Behavior.
func (p *PowerControl) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{KindHardware}
}

// Handlers implements eventhive.Behavior.
func (p *PowerControl) Handlers() eventhive.Handlers {
	return eventhive.Handlers{
		CmdShutdown: p.shutdown,
		CmdReboot:   p.reboot,
	}
}

func (p *PowerControl) shutdown(ctx context.Context, evt *eventhive.Event) error {
	p.logger.Warn("shutting down host")
	err := p.power.Shutdown(ctx)
	return errors.Join(err, finished(p.out, evt, eventhive.PriorityNormal))
}

func (p *PowerControl) reboot(ctx context.Context, evt *eventhive.Event) error {
	p.logger.Warn("rebooting host")
	err := p.power.Reboot(ctx)
	return errors.Join(err, finished(p.out, evt, eventhive.PriorityNormal))
}
