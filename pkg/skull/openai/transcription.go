package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	hiveerrors "github.com/randalmurphal/eventhive/pkg/eventhive/errors"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio file at path and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	body, contentType, err := c.transcriptionForm(path)
	if err != nil {
		return "", err
	}

	data, err := hiveerrors.Retry(ctx, c.policy("openai.transcription"), "openai.transcription",
		func(ctx context.Context) ([]byte, error) {
			return c.post(ctx, "/audio/transcriptions", contentType, body)
		})
	if err != nil {
		return "", err
	}

	var resp transcriptionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// transcriptionForm builds the multipart body once so retries resend the
// same bytes.
func (c *Client) transcriptionForm(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy recording: %w", err)
	}
	if err := w.WriteField("model", c.sttModel); err != nil {
		return nil, "", fmt.Errorf("write model field: %w", err)
	}
	if c.language != "" {
		if err := w.WriteField("language", c.language); err != nil {
			return nil, "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
