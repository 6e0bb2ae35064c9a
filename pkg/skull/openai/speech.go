package openai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	hiveerrors "github.com/randalmurphal/eventhive/pkg/eventhive/errors"
)

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text to a WAV file at path.
func (c *Client) Synthesize(ctx context.Context, text, path string) error {
	audio, err := hiveerrors.Retry(ctx, c.policy("openai.speech"), "openai.speech",
		func(ctx context.Context) ([]byte, error) {
			return c.postJSON(ctx, "/audio/speech", speechRequest{
				Model:          c.speechModel,
				Voice:          c.voice,
				Input:          text,
				ResponseFormat: "wav",
			})
		})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create speech dir: %w", err)
		}
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("write speech: %w", err)
	}
	return nil
}
