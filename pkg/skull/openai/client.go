// Package openai talks to OpenAI-compatible HTTP APIs for speech synthesis,
// transcription and chat, and to a local Ollama server for chat.
//
// Requests go through an otelhttp transport so each call shows up as a
// client span, and transient failures (429, 5xx, timeouts) are retried with
// the hive's errors.Retry policy.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	hiveerrors "github.com/randalmurphal/eventhive/pkg/eventhive/errors"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// maxErrorBody caps how much of an error response is kept in HTTPError.
const maxErrorBody = 4096

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is an OpenAI API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   hiveerrors.RetryPolicy
	logger  *slog.Logger

	speechModel string
	voice       string
	sttModel    string
	language    string
	chatModel   string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. for a proxy or a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithRetryPolicy sets the retry policy for every call.
func WithRetryPolicy(p hiveerrors.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSpeech sets the TTS model and voice.
func WithSpeech(model, voice string) Option {
	return func(c *Client) {
		c.speechModel = model
		c.voice = voice
	}
}

// WithTranscription sets the STT model and spoken language.
func WithTranscription(model, language string) Option {
	return func(c *Client) {
		c.sttModel = model
		c.language = language
	}
}

// WithChatModel sets the chat completion model.
func WithChatModel(model string) Option {
	return func(c *Client) {
		c.chatModel = model
	}
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "openai " + r.URL.Path
				}),
			),
			Timeout: 60 * time.Second,
		},
		retry:       hiveerrors.DefaultPolicy,
		logger:      slog.Default(),
		speechModel: "tts-1",
		voice:       "onyx",
		sttModel:    "whisper-1",
		language:    "en",
		chatModel:   "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// policy returns the retry policy with a logging hook for op.
func (c *Client) policy(op string) hiveerrors.RetryPolicy {
	p := c.retry
	if p.OnRetry == nil {
		p.OnRetry = func(attempt int, err error, wait time.Duration) {
			c.logger.Warn("retrying request",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		}
	}
	return p
}

// postJSON sends body to path and returns the raw response body.
func (c *Client) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.post(ctx, path, "application/json", payload)
}

func (c *Client) post(ctx context.Context, path, contentType string, payload []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return do(c.http, req)
}

// do sends req and converts non-2xx responses to *errors.HTTPError.
func do(hc *http.Client, req *http.Request) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &hiveerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(msg),
			Endpoint:   req.URL.Path,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// apiErrorMessage extracts error.message from an OpenAI error body, falling
// back to the raw text.
func apiErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}
