package skull

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/eventhive/barrier"
)

// ExchangeCounter counts completed exchanges. An exchange is one
// transcription and one chatbot reply, observed in either order.
type ExchangeCounter struct {
	registry *barrier.Registry
	count    atomic.Int64
	logger   *slog.Logger
}

// NewExchangeCounter creates the counter.
func NewExchangeCounter(logger *slog.Logger) (*ExchangeCounter, error) {
	c := &ExchangeCounter{registry: barrier.NewRegistry(), logger: orDefault(logger)}
	err := c.registry.Register("exchange", c.completed,
		barrier.Condition{Kind: KindSTTDone, Label: CmdSTTFinished},
		barrier.Condition{Kind: KindBotDone, Label: CmdBotFinished},
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Behavior returns the actor behavior that feeds the counter.
func (c *ExchangeCounter) Behavior() eventhive.Behavior {
	return c.registry.Behavior()
}

// Count returns the number of exchanges seen.
func (c *ExchangeCounter) Count() int64 {
	return c.count.Load()
}

func (c *ExchangeCounter) completed(context.Context) error {
	n := c.count.Add(1)
	c.logger.Debug("exchange completed", slog.Int64("total", n))
	return nil
}
