package bot

import (
	"context"
	"errors"

	"gmat-zalo-bot/internal/catalog"
)

var (
	ErrQuestionNotFound    = errors.New("question not found")
	ErrMalformedContent    = errors.New("malformed question content")
	ErrChatUnreachable     = errors.New("chat unreachable")
	ErrUnsupportedCategory = catalog.ErrUnsupportedCategory
)

type QuestionContent struct {
	ID           string
	Source       string
	Body         string
	Answers      []string
	Explanations []string
	// TypeTag is what the content record claims; the catalog category wins.
	TypeTag string
	// Preview is a short plain-text rendition of Body for logs.
	Preview string
}

type Message struct {
	MessageID   string
	Date        int64
	ChatID      string
	SenderID    string
	SenderIsBot bool
	Text        string
}

type ContentFetcher interface {
	FetchQuestion(ctx context.Context, id string) (QuestionContent, error)
}

type ImageRenderer interface {
	Render(ctx context.Context, content QuestionContent, category catalog.Category, includeExplanations bool) (string, error)
}

type ArtifactHoster interface {
	Upload(ctx context.Context, path string) (string, error)
}

type PhotoSender interface {
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) error
}

type ChatClient interface {
	PhotoSender
	GetUpdates(ctx context.Context) ([]Message, error)
	SendMessage(ctx context.Context, chatID, text string) error
	IsPollTimeout(err error) bool
}

// ChatRegistry remembers chats that have talked to the bot and drops the
// ones that became unreachable.
type ChatRegistry interface {
	RememberChat(ctx context.Context, chatID, senderID string) error
	ForgetChat(ctx context.Context, chatID string) error
}

type QuestionSelector interface {
	Select(c catalog.Catalog, filter catalog.Category, count int) ([]catalog.QuestionRef, error)
}
