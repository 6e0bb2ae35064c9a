package config

import (
	"fmt"
	"strings"
)

// ModeError reports an unknown backend selection. It is fatal at startup.
type ModeError struct {
	Setting string   // e.g. "tts.mode"
	Value   string   // the rejected value
	Allowed []string // accepted values
}

// Error implements the error interface.
func (e *ModeError) Error() string {
	return fmt.Sprintf("invalid %s %q (want one of: %s)", e.Setting, e.Value, strings.Join(e.Allowed, ", "))
}

// CheckMode returns a *ModeError unless value is one of allowed.
func CheckMode(setting, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ModeError{Setting: setting, Value: value, Allowed: allowed}
}
