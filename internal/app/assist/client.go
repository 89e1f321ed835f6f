// Package assist calls the external generative-text collaborator. It is
// the one slow, cancellable external call in the system and always runs
// outside any room lock.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/parlor-chat/parlor/internal/domain"
)

// FallbackReply replaces the assistant's answer when the collaborator
// fails; the failure stays private to the requester.
const FallbackReply = "Sorry, I'm having trouble thinking right now. Please try again later."

const systemPrompt = "You are a helpful assistant in a chat room. Keep responses concise and relevant to the conversation."

type Client struct {
	URL     string
	Model   string
	Timeout time.Duration

	httpClient *http.Client
}

func NewClient(url, model string, timeout time.Duration) *Client {
	return &Client{
		URL:        url,
		Model:      model,
		Timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateResponse issues a single attempt against the OpenAI-compatible
// endpoint; no automatic retry. The history is a snapshot captured by
// the caller, not a live ledger view.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, history []domain.Message) (string, error) {
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		role := "user"
		if m.Username == domain.AssistantUsername {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Text})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    msgs,
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("assistant service error: %s", resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
