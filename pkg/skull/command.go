package skull

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// Normalize prepares spoken text for matching: accents and punctuation are
// removed, case is folded and runs of whitespace become one space.
func Normalize(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.In(unicode.P)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(out)), " ")
}

// CommandMatcher maps normalized utterances to voice command results.
type CommandMatcher struct {
	phrases map[string]string
}

// CommandPhrases lists the utterances for each command.
type CommandPhrases struct {
	Override string
	Shutdown []string
	Reboot   []string
	Test     []string
}

// NewCommandMatcher builds a matcher. When a phrase is listed for two
// commands, override wins, then shutdown, reboot and test.
func NewCommandMatcher(p CommandPhrases) *CommandMatcher {
	m := &CommandMatcher{phrases: make(map[string]string)}
	add := func(cmd string, phrases ...string) {
		for _, ph := range phrases {
			key := Normalize(ph)
			if key == "" {
				continue
			}
			if _, taken := m.phrases[key]; !taken {
				m.phrases[key] = cmd
			}
		}
	}
	add(CommandOverride, p.Override)
	add(CommandShutdown, p.Shutdown...)
	add(CommandReboot, p.Reboot...)
	add(CommandTest, p.Test...)
	return m
}

// Match returns the command for text, or CommandNone.
func (m *CommandMatcher) Match(text string) string {
	if cmd, ok := m.phrases[Normalize(text)]; ok {
		return cmd
	}
	return CommandNone
}

// CommandChecker looks for voice commands in transcribed speech.
type CommandChecker struct {
	out     eventhive.Producer
	matcher *CommandMatcher
	logger  *slog.Logger
}

// NewCommandChecker creates the command checking actor behavior.
func NewCommandChecker(out eventhive.Producer, matcher *CommandMatcher, logger *slog.Logger) *CommandChecker {
	return &CommandChecker{out: out, matcher: matcher, logger: orDefault(logger)}
}

// ConsumableKinds implements eventhive.Behavior.
func (c *CommandChecker) ConsumableKinds() []eventhive.Kind {
	return []eventhive.Kind{KindCommandCheck}
}

// Handlers implements eventhive.Behavior.
func (c *CommandChecker) Handlers() eventhive.Handlers {
	return eventhive.Handlers{CmdCheckVoiceCommands: c.check}
}

func (c *CommandChecker) check(_ context.Context, evt *eventhive.Event) error {
	text, _ := evt.StringArg()
	cmd := c.matcher.Match(text)
	c.logger.Debug("command check", slog.String("text", text), slog.String("result", cmd))

	return errors.Join(
		emit(c.out, evt, KindCommandCheckDone, eventhive.PriorityHigh, CmdCommandFound, cmd),
		finished(c.out, evt, eventhive.PriorityNormal),
	)
}

var profanity = map[string]struct{}{
	"damn": {}, "hell": {}, "shit": {}, "fuck": {}, "fucking": {},
	"bitch": {}, "bastard": {}, "crap": {}, "ass": {}, "asshole": {},
}

// Censor masks profane words with asterisks, keeping the rest of the text
// untouched.
func Censor(text string) string {
	words := strings.Fields(text)
	changed := false
	for i, w := range words {
		if _, bad := profanity[Normalize(w)]; bad {
			words[i] = strings.Repeat("*", len([]rune(w)))
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(words, " ")
}
