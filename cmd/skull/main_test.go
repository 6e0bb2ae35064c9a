package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhive/pkg/eventhive/config"
)

func TestExitCode(t *testing.T) {
	modeErr := &config.ModeError{Setting: "tts.mode", Value: "x", Allowed: []string{config.ModeTest}}

	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
	assert.Equal(t, exitConfig, exitCode(modeErr))
	assert.Equal(t, exitConfig, exitCode(fmt.Errorf("build: %w", errors.Join(modeErr))))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skull.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCheckCommand(t *testing.T) {
	t.Setenv(config.EnvOpenAIKey, "")
	t.Setenv(config.EnvConfig, "")
	path := writeConfig(t, "test_mode: true\nchat:\n  backend: ollama\n")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--config", path, "--demo"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "test mode:  true")
	assert.Contains(t, out.String(), "demo mode:  true")
	assert.Contains(t, out.String(), "chat:       ollama")
	assert.Contains(t, out.String(), "api key:    false")
}

func TestCheckCommand_BadMode(t *testing.T) {
	t.Setenv(config.EnvConfig, "")
	path := writeConfig(t, "tts:\n  mode: smoke-signals\n")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "--config", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestCheckCommand_BadLogFlag(t *testing.T) {
	t.Setenv(config.EnvConfig, "")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "--log-format", "xml"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}
