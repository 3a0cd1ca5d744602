package adapters

import (
	"context"
	"errors"
	"fmt"

	"gmat-zalo-bot/internal/bot"
	"gmat-zalo-bot/internal/catalog"
	"gmat-zalo-bot/internal/gmat"
	"gmat-zalo-bot/internal/hosting"
	"gmat-zalo-bot/internal/render"
	"gmat-zalo-bot/internal/storage"
	"gmat-zalo-bot/internal/zalo"
)

const previewLength = 100

func NewContentFetcher(client *gmat.Client) bot.ContentFetcher {
	return &contentFetcher{client: client}
}

type contentFetcher struct {
	client *gmat.Client
}

func (f *contentFetcher) FetchQuestion(ctx context.Context, id string) (bot.QuestionContent, error) {
	q, err := f.client.FetchQuestion(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, gmat.ErrQuestionNotFound):
			return bot.QuestionContent{}, fmt.Errorf("%w: %v", bot.ErrQuestionNotFound, err)
		case errors.Is(err, gmat.ErrMalformedContent):
			return bot.QuestionContent{}, fmt.Errorf("%w: %v", bot.ErrMalformedContent, err)
		}
		return bot.QuestionContent{}, err
	}
	return bot.QuestionContent{
		ID:           q.ID,
		Source:       q.Source,
		Body:         q.Body,
		Answers:      q.Answers,
		Explanations: q.Explanations,
		TypeTag:      q.TypeTag,
		Preview:      q.Preview(previewLength),
	}, nil
}

func NewImageRenderer(r *render.Renderer) bot.ImageRenderer {
	return &imageRenderer{renderer: r}
}

type imageRenderer struct {
	renderer *render.Renderer
}

func (r *imageRenderer) Render(ctx context.Context, content bot.QuestionContent, category catalog.Category, includeExplanations bool) (string, error) {
	return r.renderer.Render(ctx, render.Document{
		ID:                  content.ID,
		CategoryName:        category.Label(),
		Source:              content.Source,
		Body:                content.Body,
		Answers:             content.Answers,
		Explanations:        content.Explanations,
		IncludeExplanations: includeExplanations,
	})
}

// NewArtifactHoster accepts a nil client for modes that never host.
func NewArtifactHoster(client *hosting.Client) bot.ArtifactHoster {
	return &artifactHoster{client: client}
}

type artifactHoster struct {
	client *hosting.Client
}

func (h *artifactHoster) Upload(ctx context.Context, path string) (string, error) {
	if h.client == nil {
		return "", fmt.Errorf("image hosting is not configured")
	}
	return h.client.Upload(ctx, path)
}

func NewChatClient(client *zalo.Client) bot.ChatClient {
	return &chatClient{client: client}
}

type chatClient struct {
	client *zalo.Client
}

func (c *chatClient) GetUpdates(ctx context.Context) ([]bot.Message, error) {
	messages, err := c.client.GetUpdates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bot.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, mapMessage(m))
	}
	return out, nil
}

func (c *chatClient) SendMessage(ctx context.Context, chatID, text string) error {
	_, err := c.client.SendMessage(ctx, chatID, text)
	return mapSendError(err)
}

func (c *chatClient) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	_, err := c.client.SendPhoto(ctx, chatID, photoURL, caption)
	return mapSendError(err)
}

func mapSendError(err error) error {
	if zalo.IsChatGone(err) {
		return fmt.Errorf("%w: %v", bot.ErrChatUnreachable, err)
	}
	return err
}

func (c *chatClient) IsPollTimeout(err error) bool {
	return zalo.IsPollTimeout(err)
}

func mapMessage(m zalo.Message) bot.Message {
	return bot.Message{
		MessageID:   m.MessageID,
		Date:        m.Date,
		ChatID:      m.Chat.ID,
		SenderID:    m.Sender.ID,
		SenderIsBot: m.Sender.IsBot,
		Text:        m.Text,
	}
}

func NewChatRegistry(store *storage.Store) bot.ChatRegistry {
	return &chatRegistry{store: store}
}

type chatRegistry struct {
	store *storage.Store
}

func (r *chatRegistry) RememberChat(ctx context.Context, chatID, senderID string) error {
	return r.store.RememberChat(ctx, chatID, senderID)
}

func (r *chatRegistry) ForgetChat(ctx context.Context, chatID string) error {
	return r.store.ForgetChat(ctx, chatID)
}
