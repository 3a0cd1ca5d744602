package commands

import (
	"context"
)

type Handler struct {
	deps Dependencies
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) Handle(ctx context.Context, chatID string, text string) error {
	cmd := Parse(text)

	switch cmd.Kind {
	case RequestByID:
		return h.deps.DeliverByID(ctx, chatID, cmd.ID)
	case RequestByCategory:
		return h.deps.DeliverCategory(ctx, chatID, cmd.Category)
	case RequestRandom:
		return h.deps.DeliverCategory(ctx, chatID, h.deps.DefaultCategory())
	default:
		return h.cmdHelp(ctx, chatID)
	}
}
