package zalo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Zalo update models.
type Update struct {
	EventName string   `json:"event_name"`
	Message   *Message `json:"message"`
}

type Message struct {
	MessageID string `json:"message_id"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	PhotoURL  string `json:"photo_url"`
	Caption   string `json:"caption"`
	Sender    Sender `json:"sender"`
	Chat      Chat   `json:"chat"`
}

type Sender struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsBot       bool   `json:"is_bot"`
}

type Chat struct {
	ID       string `json:"id"`
	ChatType string `json:"chat_type"`
}

// StatusError is a non-2xx HTTP answer; Body is the raw response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zalo status %d: %s", e.StatusCode, e.Body)
}

// APIError is a well-formed response with ok=false.
type APIError struct {
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	if e.ErrorCode != 0 {
		return fmt.Sprintf("zalo api error %d: %s", e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("zalo api error: %s", e.Description)
}

// IsPollTimeout reports whether err means a long poll ended without data.
func IsPollTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == 408 || strings.Contains(strings.ToLower(apiErr.Description), "timeout")
	}
	return false
}

// IsChatGone reports whether err means the chat no longer accepts messages
// from the bot.
func IsChatGone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return apiErr.ErrorCode == 403 || strings.Contains(desc, "chat not found") || strings.Contains(desc, "blocked")
}
