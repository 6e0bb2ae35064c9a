package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	hiveerrors "github.com/randalmurphal/eventhive/pkg/eventhive/errors"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama is a chat client for a local Ollama server.
type Ollama struct {
	baseURL string
	model   string
	http    *http.Client
	retry   hiveerrors.RetryPolicy
	logger  *slog.Logger
}

// OllamaOption configures an Ollama client.
type OllamaOption func(*Ollama)

// WithOllamaLogger sets the logger used for retry warnings.
func WithOllamaLogger(logger *slog.Logger) OllamaOption {
	return func(o *Ollama) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOllamaRetryPolicy sets the retry policy.
func WithOllamaRetryPolicy(p hiveerrors.RetryPolicy) OllamaOption {
	return func(o *Ollama) {
		o.retry = p
	}
}

// NewOllama creates an Ollama chat client. An empty baseURL uses
// DefaultOllamaURL.
func NewOllama(baseURL, model string, opts ...OllamaOption) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	o := &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			// Local models on a Pi are slow to answer.
			Timeout: 2 * time.Minute,
		},
		retry:  hiveerrors.DefaultPolicy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaResponse struct {
	Message Message `json:"message"`
}

// Respond sends the conversation to /api/chat and returns the reply.
func (o *Ollama) Respond(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(ollamaRequest{Model: o.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	p := o.retry
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		o.logger.Warn("retrying request",
			slog.String("op", "ollama.chat"),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	data, err := hiveerrors.Retry(ctx, p, "ollama.chat", func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return do(o.http, req)
	})
	if err != nil {
		return "", err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
