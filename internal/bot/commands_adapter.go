package bot

import (
	"context"

	"gmat-zalo-bot/internal/bot/commands"
	"gmat-zalo-bot/internal/catalog"
)

type commandDeps struct {
	service *Service
}

func newCommandHandler(service *Service) *commands.Handler {
	return commands.NewHandler(&commandDeps{service: service})
}

func (d *commandDeps) SendMessage(ctx context.Context, chatID, text string) error {
	return d.service.chat.SendMessage(ctx, chatID, text)
}

func (d *commandDeps) DeliverCategory(ctx context.Context, chatID string, category catalog.Category) error {
	return d.service.deliverCategory(ctx, chatID, category)
}

func (d *commandDeps) DeliverByID(ctx context.Context, chatID, id string) error {
	return d.service.deliverByID(ctx, chatID, id)
}

func (d *commandDeps) DefaultCategory() catalog.Category {
	return d.service.defaultCategory
}
