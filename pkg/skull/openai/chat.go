package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	hiveerrors "github.com/randalmurphal/eventhive/pkg/eventhive/errors"
)

// ErrEmptyReply indicates a chat response without choices.
var ErrEmptyReply = errors.New("empty chat reply")

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Respond sends the conversation to the chat completions endpoint and
// returns the assistant's reply.
func (c *Client) Respond(ctx context.Context, messages []Message) (string, error) {
	data, err := hiveerrors.Retry(ctx, c.policy("openai.chat"), "openai.chat",
		func(ctx context.Context) ([]byte, error) {
			return c.postJSON(ctx, "/chat/completions", chatRequest{
				Model:    c.chatModel,
				Messages: messages,
			})
		})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
