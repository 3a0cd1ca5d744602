package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const chatsCollectionName = "chats"

// Store keeps a registry of chats that have talked to the bot so one-shot
// runs can deliver without an explicit recipient list.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

type ChatRecord struct {
	ChatID       string    `firestore:"chat_id"`
	SenderID     string    `firestore:"sender_id"`
	MessageCount int64     `firestore:"message_count"`
	FirstSeenAt  time.Time `firestore:"first_seen_at"`
	LastSeenAt   time.Time `firestore:"last_seen_at"`
}

func (s *Store) RememberChat(ctx context.Context, chatID, senderID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return fmt.Errorf("remember chat: chat id is empty")
	}

	ref := s.chatDoc(chatID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Set(ref, map[string]any{
				"chat_id":       chatID,
				"sender_id":     senderID,
				"message_count": 1,
				"first_seen_at": firestore.ServerTimestamp,
				"last_seen_at":  firestore.ServerTimestamp,
			})
		}
		if err != nil {
			return err
		}

		return tx.Set(ref, map[string]any{
			"chat_id":       chatID,
			"sender_id":     senderID,
			"message_count": firestore.Increment(int64(1)),
			"last_seen_at":  firestore.ServerTimestamp,
		}, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("remember chat: %w", err)
	}
	return nil
}

// ListChatIDs returns every registered chat ID, sorted.
func (s *Store) ListChatIDs(ctx context.Context) ([]string, error) {
	iter := s.client.Collection(chatsCollectionName).Documents(ctx)
	defer iter.Stop()

	out := make([]string, 0, 32)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list chats: %w", err)
		}

		var rec ChatRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode chat: %w", err)
		}
		if rec.ChatID == "" {
			rec.ChatID = doc.Ref.ID
		}
		out = append(out, rec.ChatID)
	}

	sort.Strings(out)
	return out, nil
}

// ForgetChat removes a chat from the registry. Unknown chats are ignored.
func (s *Store) ForgetChat(ctx context.Context, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return fmt.Errorf("forget chat: chat id is empty")
	}
	_, err := s.chatDoc(chatID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("forget chat: %w", err)
	}
	return nil
}

func (s *Store) chatDoc(chatID string) *firestore.DocumentRef {
	return s.client.Collection(chatsCollectionName).Doc(chatID)
}
