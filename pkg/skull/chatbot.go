package skull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/skull/history"
	"github.com/randalmurphal/eventhive/pkg/skull/openai"
)

// Chatbot answers GET_BOT_RESPONSE prompts.
type Chatbot struct {
	out       eventhive.Producer
	responder Responder
	history   HistoryStore
	role      string
	limit     int
	logger    *slog.Logger
}

// ChatbotConfig configures the chatbot actor.
type ChatbotConfig struct {
	// Role is the system prompt.
	Role string
	// HistoryLimit caps how many past turns are replayed to the model.
	HistoryLimit int
}

// NewChatbot creates the chatbot actor behavior. store may be nil to run
// without memory.
func NewChatbot(out eventhive.Producer, responder Responder, store HistoryStore, cfg ChatbotConfig, logger *slog.Logger) *Chatbot {
	return &Chatbot{
		out:       out,
		responder: responder,
		history:   store,
		role:      cfg.Role,
		limit:     cfg.HistoryLimit,
		logger:    orDefault(logger),
	}
}

// ConsumableKinds implements eventhive.Behavior.
func (c *Chatbot) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{KindBot}
}

// Handlers implements eventhive.Behavior.
func (c *Chatbot) Handlers() eventhive.Handlers {
	return eventhive.Handlers{CmdGetBotResponse: c.respond}
}

func (c *Chatbot) respond(ctx context.Context, evt *eventhive.Event) error {
	prompt, _ := evt.StringArg()
	prompt = strings.TrimSpace(prompt)

	var reply string
	var err error
	if prompt == "" {
		err = errors.New("empty prompt")
	} else {
		reply, err = c.ask(ctx, prompt)
	}

	pubErr := errors.Join(
		emit(c.out, evt, KindBotDone, eventhive.PriorityHigh, CmdBotFinished, reply),
		finished(c.out, evt, eventhive.PriorityNormal),
	)
	return errors.Join(err, pubErr)
}

func (c *Chatbot) ask(ctx context.Context, prompt string) (string, error) {
	messages := c.messages(ctx, prompt)

	reply, err := c.responder.Respond(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}
	c.logger.Info("bot replied", slog.String("reply", reply))

	if c.history != nil {
		if err := c.history.Append(ctx, history.RoleUser, prompt); err != nil {
			c.logger.Warn("history append failed", slog.String("error", err.Error()))
		} else if err := c.history.Append(ctx, history.RoleAssistant, reply); err != nil {
			c.logger.Warn("history append failed", slog.String("error", err.Error()))
		}
	}
	return reply, nil
}

// messages builds the system prompt, replayed history and the new prompt.
// A history read failure degrades to a conversation without memory.
func (c *Chatbot) messages(ctx context.Context, prompt string) []openai.Message {
	var messages []openai.Message
	if c.role != "" {
		messages = append(messages, openai.Message{Role: history.RoleSystem, Content: c.role})
	}
	if c.history != nil {
		turns, err := c.history.Recent(ctx, c.limit)
		if err != nil {
			c.logger.Warn("history read failed", slog.String("error", err.Error()))
		}
		for _, t := range turns {
			messages = append(messages, openai.Message{Role: t.Role, Content: t.Content})
		}
	}
	return append(messages, openai.Message{Role: history.RoleUser, Content: prompt})
}
