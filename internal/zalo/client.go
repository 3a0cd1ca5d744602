package zalo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL     = "https://bot-api.zapps.vn"
	DefaultPollTimeout = 30 * time.Second

	sendTimeout = 15 * time.Second
	// The client waits a little longer than the server holds a poll open.
	defaultPollGrace = 5 * time.Second
)

type Client struct {
	httpClient  *http.Client
	baseURL     string
	pollTimeout time.Duration
	pollGrace   time.Duration
}

func NewClient(baseURL, token string, pollTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     fmt.Sprintf("%s/bot%s", strings.TrimRight(baseURL, "/"), token),
		pollTimeout: pollTimeout,
		pollGrace:   defaultPollGrace,
	}
}

// envelope is shared by every endpoint.
type envelope struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type SendResult struct {
	MessageID string `json:"message_id"`
	Date      int64  `json:"date"`
}

// GetUpdates long-polls for new messages. The result field may hold one
// update, a list of updates, or something else entirely; all three come back
// as a possibly empty slice.
func (c *Client) GetUpdates(ctx context.Context) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout+c.pollGrace)
	defer cancel()

	payload := map[string]any{
		"timeout": int(c.pollTimeout / time.Second),
	}
	result, err := c.postJSON(ctx, "/getUpdates", payload)
	if err != nil {
		return nil, err
	}
	return decodeUpdates(result), nil
}

func (c *Client) SendMessage(ctx context.Context, chatID, text string) (SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return c.send(ctx, "/sendMessage", payload)
}

// SendPhoto sends an image by public URL.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string) (SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	payload := map[string]any{
		"chat_id": chatID,
		"photo":   photoURL,
		"caption": caption,
	}
	return c.send(ctx, "/sendPhoto", payload)
}

func (c *Client) send(ctx context.Context, path string, payload any) (SendResult, error) {
	result, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return SendResult{}, err
	}
	var out SendResult
	if len(result) > 0 {
		// Informational only; the send already succeeded.
		_ = json.Unmarshal(result, &out)
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zalo request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read zalo response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out envelope
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal zalo response: %w", err)
	}
	if !out.OK {
		return nil, &APIError{ErrorCode: out.ErrorCode, Description: out.Description}
	}

	return out.Result, nil
}

func decodeUpdates(raw json.RawMessage) []Message {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []Message{}
	}

	var updates []Update
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &updates); err != nil {
			return []Message{}
		}
	case '{':
		var single Update
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return []Message{}
		}
		updates = []Update{single}
	default:
		return []Message{}
	}

	messages := make([]Message, 0, len(updates))
	for _, u := range updates {
		if u.Message != nil {
			messages = append(messages, *u.Message)
		}
	}
	return messages
}
