package skull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
	"github.com/randalmurphal/eventhive/pkg/eventhive/sequencer"
)

// Action is one step of a conversation.
type Action int

// Conversation steps. Each publishes one request and waits for the
// matching CONVERSATION_ACTION_FINISHED.
const (
	ActionGreet Action = iota
	ActionRecordSpeech
	ActionCheckCommands
	ActionGetBotResponse
	ActionGenerateTTS
	ActionMoveJaw
	ActionRearmDetection
	ActionShutdown
	ActionReboot
)

var actionNames = [...]string{
	ActionGreet:          "Greet",
	ActionRecordSpeech:   "RecordSpeech",
	ActionCheckCommands:  "CheckCommands",
	ActionGetBotResponse: "GetBotResponse",
	ActionGenerateTTS:    "GenerateTTS",
	ActionMoveJaw:        "MoveJaw",
	ActionRearmDetection: "RearmDetection",
	ActionShutdown:       "Shutdown",
	ActionReboot:         "Reboot",
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

var (
	// greetingCycle is the demo-mode response to a visitor.
	greetingCycle = []Action{ActionGreet, ActionMoveJaw, ActionRearmDetection}

	// conversationCycle is the full exchange. Restarts return to
	// RecordSpeech, the first step after the greeting.
	conversationCycle = []Action{
		ActionGreet, ActionMoveJaw,
		ActionRecordSpeech, ActionCheckCommands, ActionGetBotResponse,
		ActionGenerateTTS, ActionMoveJaw, ActionRearmDetection,
	}
	conversationPhaseStart = 2
)

// ConversationConfig configures the conversation engine.
type ConversationConfig struct {
	// Demo limits each detection to the greeting cycle.
	Demo bool

	Greeting     string
	ShutdownText string
	RebootText   string
	TestText     string

	// SpeechPath is the file the TTS actor writes and the jaw plays.
	SpeechPath string

	// MaxSilentRestarts ends the conversation after this many empty
	// transcriptions in a row. Zero means listen forever.
	MaxSilentRestarts int
}

// ConversationEngine drives a conversation with no central controller:
// each step publishes a request, and the completion event published by
// whichever actor served it advances the list.
type ConversationEngine struct {
	out    eventhive.Producer
	cfg    ConversationConfig
	seq    *sequencer.Sequencer[Action]
	logger *slog.Logger

	mu         sync.Mutex
	cause      *eventhive.Event
	transcript string
	reply      string
	command    string
	silent     int
	completed  int
}

// NewConversationEngine creates the conversation actor behavior.
func NewConversationEngine(out eventhive.Producer, cfg ConversationConfig, logger *slog.Logger) *ConversationEngine {
	c := &ConversationEngine{out: out, cfg: cfg, logger: orDefault(logger)}
	c.seq = sequencer.New(map[Action]sequencer.Step{
		ActionGreet:          c.greet,
		ActionRecordSpeech:   c.recordSpeech,
		ActionCheckCommands:  c.checkCommands,
		ActionGetBotResponse: c.getBotResponse,
		ActionGenerateTTS:    c.generateTTS,
		ActionMoveJaw:        c.moveJaw,
		ActionRearmDetection: c.rearmDetection,
		ActionShutdown:       c.powerStep(CmdShutdown),
		ActionReboot:         c.powerStep(CmdReboot),
	})
	c.seq.OnIdle(func(context.Context) {
		c.mu.Lock()
		c.completed++
		c.mu.Unlock()
		c.logger.Info("conversation finished")
	})
	return c
}

// ConsumableKinds implements eventhive.Behavior.
func (c *ConversationEngine) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{
		KindDetect,
		KindListen,
		KindSTTDone,
		KindBotDone,
		KindCommandCheckDone,
		KindConversationDone,
	}
}

// Handlers implements eventhive.Behavior.
func (c *ConversationEngine) Handlers() eventhive.Handlers {
	return eventhive.Handlers{
		CmdHumanDetected:  c.onHumanDetected,
		CmdConverse:       c.onConverse,
		CmdSTTFinished:    c.onTranscript,
		CmdBotFinished:    c.onReply,
		CmdCommandFound:   c.onCommand,
		CmdActionFinished: c.onActionFinished,
	}
}

// Running reports whether a conversation is in progress.
func (c *ConversationEngine) Running() bool { return c.seq.Running() }

// Current returns the step in progress.
func (c *ConversationEngine) Current() (Action, bool) { return c.seq.Current() }

// Completed returns how many conversations have run to the end.
func (c *ConversationEngine) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Transcript returns the last captured transcription.
func (c *ConversationEngine) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Reply returns the text most recently queued for speech after a prompt.
func (c *ConversationEngine) Reply() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply
}

func (c *ConversationEngine) onHumanDetected(ctx context.Context, evt *eventhive.Event) error {
	if c.seq.Running() {
		c.logger.Debug("visitor detected mid-conversation, ignoring")
		return nil
	}
	c.reset(evt)

	// The greeting is only the first step: SCAN_MODE_ON follows once the
	// greeting and jaw steps report CONVERSATION_ACTION_FINISHED.
	if c.cfg.Demo {
		c.logger.Info("visitor detected, greeting")
		if err := c.seq.Begin(ctx, greetingCycle...); err != nil {
			return c.abandon(ctx, err)
		}
		return nil
	}

	c.logger.Info("visitor detected, starting conversation")
	if err := c.seq.Begin(ctx, conversationCycle...); err != nil {
		return c.abandon(ctx, err)
	}
	if err := c.seq.SetPhaseStart(conversationPhaseStart); err != nil {
		return c.abandon(ctx, err)
	}
	return nil
}

// onConverse starts a conversation without the greeting.
func (c *ConversationEngine) onConverse(ctx context.Context, evt *eventhive.Event) error {
	if c.seq.Running() {
		return fmt.Errorf("converse: %w", sequencer.ErrBusy)
	}
	c.reset(evt)
	if err := c.seq.Begin(ctx, conversationCycle[conversationPhaseStart:]...); err != nil {
		return c.abandon(ctx, err)
	}
	return nil
}

func (c *ConversationEngine) onTranscript(_ context.Context, evt *eventhive.Event) error {
	text, _ := evt.StringArg()
	c.mu.Lock()
	c.transcript = strings.TrimSpace(text)
	c.mu.Unlock()
	return nil
}

func (c *ConversationEngine) onReply(_ context.Context, evt *eventhive.Event) error {
	text, _ := evt.StringArg()
	c.mu.Lock()
	c.reply = strings.TrimSpace(text)
	c.mu.Unlock()
	return nil
}

func (c *ConversationEngine) onCommand(_ context.Context, evt *eventhive.Event) error {
	cmd, _ := evt.StringArg()
	c.mu.Lock()
	c.command = cmd
	c.mu.Unlock()
	return nil
}

func (c *ConversationEngine) onActionFinished(ctx context.Context, evt *eventhive.Event) error {
	current, ok := c.seq.Current()
	if !ok {
		// Completions outside a conversation (the boot-time re-arm ack).
		return nil
	}
	c.setCause(evt)

	if err := c.step(ctx, current); err != nil {
		return c.abandon(ctx, err)
	}
	return nil
}

// abandon drops a conversation whose step failed to publish. Nothing would
// ever complete it, so detection is re-armed directly.
func (c *ConversationEngine) abandon(ctx context.Context, err error) error {
	c.logger.Warn("conversation step failed, re-arming detection", slog.Any("error", err))
	c.seq.Reset()
	if rerr := c.rearmDetection(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return nil
}

// step handles the completion of current and moves the list on.
func (c *ConversationEngine) step(ctx context.Context, current Action) error {
	c.mu.Lock()
	transcript, reply, command := c.transcript, c.reply, c.command
	c.mu.Unlock()

	switch current {
	case ActionRecordSpeech:
		if transcript == "" {
			return c.heardNothing(ctx)
		}
		c.mu.Lock()
		c.silent = 0
		c.mu.Unlock()

	case ActionCheckCommands:
		if err := c.applyCommand(command); err != nil {
			return err
		}

	case ActionGetBotResponse:
		if reply == "" {
			c.logger.Warn("no reply from chatbot, ending conversation")
			if err := c.seq.ReplaceRemaining(ActionRearmDetection); err != nil {
				return err
			}
		}
	}

	return c.seq.Advance(ctx)
}

// heardNothing restarts the recording phase, or gives up after too many
// silent attempts.
func (c *ConversationEngine) heardNothing(ctx context.Context) error {
	c.mu.Lock()
	c.silent++
	silent := c.silent
	c.mu.Unlock()

	if c.cfg.MaxSilentRestarts > 0 && silent >= c.cfg.MaxSilentRestarts {
		c.logger.Info("nobody is talking, ending conversation", slog.Int("attempts", silent))
		if err := c.seq.ReplaceRemaining(ActionRearmDetection); err != nil {
			return err
		}
		return c.seq.Advance(ctx)
	}

	c.logger.Info("heard nothing, listening again", slog.Int("attempt", silent))
	return c.seq.Restart(ctx)
}

func (c *ConversationEngine) applyCommand(command string) error {
	var say string
	var then []Action

	switch command {
	case CommandShutdown:
		say, then = c.cfg.ShutdownText, []Action{ActionShutdown, ActionRearmDetection}
	case CommandReboot:
		say, then = c.cfg.RebootText, []Action{ActionReboot, ActionRearmDetection}
	case CommandTest:
		say, then = c.cfg.TestText, []Action{ActionRearmDetection}
	case CommandOverride:
		c.logger.Info("override spoken, ending conversation")
		return c.seq.ReplaceRemaining(ActionRearmDetection)
	default:
		return nil
	}

	c.logger.Info("voice command", slog.String("command", command))
	if say == "" {
		return c.seq.ReplaceRemaining(then...)
	}
	c.mu.Lock()
	c.reply = say
	c.mu.Unlock()
	return c.seq.ReplaceRemaining(append([]Action{ActionGenerateTTS, ActionMoveJaw}, then...)...)
}

func (c *ConversationEngine) reset(cause *eventhive.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cause = cause
	c.transcript, c.reply, c.command = "", "", ""
	c.silent = 0
}

func (c *ConversationEngine) setCause(evt *eventhive.Event) {
	c.mu.Lock()
	c.cause = evt
	c.mu.Unlock()
}

// publish emits an event caused by the event that triggered the current
// step, so the whole conversation shares one correlation ID.
func (c *ConversationEngine) publish(kind eventhive.Kind, labels ...any) error {
	c.mu.Lock()
	cause := c.cause
	c.mu.Unlock()
	return emit(c.out, cause, kind, eventhive.PriorityHigh, labels...)
}

func (c *ConversationEngine) greet(context.Context) error {
	return c.publish(KindTTS, CmdGenerateTTS, c.cfg.Greeting)
}

func (c *ConversationEngine) recordSpeech(context.Context) error {
	c.mu.Lock()
	c.transcript = ""
	c.mu.Unlock()
	return c.publish(KindSTT, CmdRecordInferSpeech)
}

func (c *ConversationEngine) checkCommands(context.Context) error {
	c.mu.Lock()
	c.command = ""
	text := c.transcript
	c.mu.Unlock()
	return c.publish(KindCommandCheck, CmdCheckVoiceCommands, text)
}

func (c *ConversationEngine) getBotResponse(context.Context) error {
	c.mu.Lock()
	c.reply = ""
	text := c.transcript
	c.mu.Unlock()
	return c.publish(KindBot, CmdGetBotResponse, text)
}

func (c *ConversationEngine) generateTTS(context.Context) error {
	c.mu.Lock()
	text := c.reply
	c.mu.Unlock()
	if text == "" {
		return errors.New("generate speech: no reply")
	}
	return c.publish(KindTTS, CmdGenerateTTS, text)
}

func (c *ConversationEngine) moveJaw(context.Context) error {
	return c.publish(KindMovement, CmdJawTTSAudio, c.cfg.SpeechPath)
}

func (c *ConversationEngine) rearmDetection(context.Context) error {
	return c.publish(KindAudioDetectController, CmdScanModeOn)
}

func (c *ConversationEngine) powerStep(cmd string) sequencer.Step {
	return func(context.Context) error {
		return c.publish(KindHardware, cmd)
	}
}
