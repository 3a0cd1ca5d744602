package commands

import (
	"context"

	"gmat-zalo-bot/internal/catalog"
)

type Kind int

const (
	ShowHelp Kind = iota
	RequestByCategory
	RequestByID
	// RequestRandom asks for a question from the configured default pool.
	RequestRandom
)

func (k Kind) String() string {
	switch k {
	case ShowHelp:
		return "show_help"
	case RequestByCategory:
		return "request_by_category"
	case RequestByID:
		return "request_by_id"
	case RequestRandom:
		return "request_random"
	default:
		return "unknown"
	}
}

// Command is what a message asks for. Category is set only for
// RequestByCategory and ID only for RequestByID.
type Command struct {
	Kind     Kind
	Category catalog.Category
	ID       string
}

type Dependencies interface {
	SendMessage(ctx context.Context, chatID, text string) error
	DeliverCategory(ctx context.Context, chatID string, category catalog.Category) error
	DeliverByID(ctx context.Context, chatID, id string) error
	DefaultCategory() catalog.Category
}
