// Package chat relays board questions to a hosted LLM messages API. The
// relay carries no conversation state; each request is one prompt, one
// reply.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/krn-labs/gripeboard/src/webclient"
)

const (
	defaultModel    = "claude-sonnet-4-5"
	messagesURL     = "https://api.anthropic.com/v1/messages"
	defaultMaxToks  = 1024
	requestTimeout  = 90 * time.Second
	apiVersionValue = "2023-06-01"
)

const systemPrompt = "You are the help desk for a public complaint board " +
	"where starring and flagging posts costs KRN paid on chain. Answer " +
	"briefly and factually; refuse to speculate about other users."

type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		httpClient: webclient.NewDefault(requestTimeout),
	}
}

func (c *Client) Reply(ctx context.Context, message string) (string, error) {
	body := map[string]interface{}{
		"model":      c.model,
		"system":     systemPrompt,
		"max_tokens": defaultMaxToks,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]string{
					{"type": "text", "text": message},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", messagesURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersionValue)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay upstream status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("relay upstream decode: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("relay upstream returned no text")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
