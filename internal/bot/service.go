package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gmat-zalo-bot/internal/bot/commands"
	"gmat-zalo-bot/internal/catalog"
)

const defaultPollBackoff = 5 * time.Second

type Service struct {
	logger          *log.Logger
	chat            ChatClient
	registry        ChatRegistry
	selector        QuestionSelector
	catalog         catalog.Catalog
	pipeline        *Pipeline
	commandHandler  *commands.Handler
	defaultCategory catalog.Category
	pollBackoff     time.Duration
	sleep           sleepFunc
}

// NewService wires the poll loop. registry may be nil.
func NewService(
	logger *log.Logger,
	chat ChatClient,
	registry ChatRegistry,
	selector QuestionSelector,
	questions catalog.Catalog,
	pipeline *Pipeline,
	defaultCategory catalog.Category,
) *Service {
	svc := &Service{
		logger:          logger,
		chat:            chat,
		registry:        registry,
		selector:        selector,
		catalog:         questions,
		pipeline:        pipeline,
		defaultCategory: defaultCategory,
		pollBackoff:     defaultPollBackoff,
		sleep:           sleepContext,
	}
	svc.commandHandler = newCommandHandler(svc)
	return svc
}

// Run polls until ctx is cancelled. Messages in a batch are handled one by
// one, in order. Handling is detached from ctx so a delivery that has started
// is allowed to finish after shutdown is requested.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Printf("bot is listening for messages; send any message to get a GMAT question")

	for {
		if ctx.Err() != nil {
			s.logger.Printf("shutdown requested; polling stopped")
			return nil
		}

		messages, err := s.chat.GetUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if s.chat.IsPollTimeout(err) {
				continue
			}
			s.logger.Printf("get updates failed, retrying in %s: %v", s.pollBackoff, err)
			_ = s.sleep(ctx, s.pollBackoff)
			continue
		}
		if len(messages) == 0 {
			continue
		}

		s.logger.Printf("received %d message(s)", len(messages))
		handleCtx := context.WithoutCancel(ctx)
		for _, msg := range messages {
			if err := s.HandleMessage(handleCtx, msg); err != nil {
				s.logger.Printf("handle message failed for chat=%s: %v", msg.ChatID, err)
			}
		}
	}
}

func (s *Service) HandleMessage(ctx context.Context, msg Message) error {
	if msg.SenderIsBot {
		return nil
	}
	if msg.ChatID == "" {
		return fmt.Errorf("message %s has no chat id", msg.MessageID)
	}
	s.logger.Printf("processing message from user=%s in chat=%s", msg.SenderID, msg.ChatID)

	if s.registry != nil {
		if err := s.registry.RememberChat(ctx, msg.ChatID, msg.SenderID); err != nil {
			s.logger.Printf("remember chat=%s failed: %v", msg.ChatID, err)
		}
	}

	return s.commandHandler.Handle(ctx, msg.ChatID, msg.Text)
}

func (s *Service) deliverCategory(ctx context.Context, chatID string, category catalog.Category) error {
	refs, err := s.selector.Select(s.catalog, category, 1)
	if errors.Is(err, ErrUnsupportedCategory) {
		return s.chat.SendMessage(ctx, chatID, unsupportedCategoryText(category))
	}
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return s.chat.SendMessage(ctx, chatID, fmt.Sprintf("No %s questions are available right now.", poolName(category)))
	}

	ref := refs[0]
	s.logger.Printf("selected question %s (%s) for chat=%s", ref.ID, ref.Category, chatID)
	return s.reportOutcome(ctx, chatID, s.pipeline.DeliverToChat(ctx, chatID, ref, false))
}

func (s *Service) deliverByID(ctx context.Context, chatID, id string) error {
	ref := catalog.QuestionRef{ID: id}
	if category, ok := s.catalog.Find(id); ok {
		ref.Category = category
	}
	if ref.Category == catalog.Excluded {
		return s.chat.SendMessage(ctx, chatID, unsupportedCategoryText(ref.Category))
	}
	return s.reportOutcome(ctx, chatID, s.pipeline.DeliverToChat(ctx, chatID, ref, true))
}

// reportOutcome tells the chat when a question could not be produced. A
// failed send is only logged, since the chat is unreachable.
func (s *Service) reportOutcome(ctx context.Context, chatID string, out Outcome) error {
	switch {
	case out.Succeeded():
		return nil
	case out.Partial():
		s.forgetUnreachable(ctx, out.Failed)
		return out.Err
	case errors.Is(out.Err, ErrQuestionNotFound):
		return s.chat.SendMessage(ctx, chatID, fmt.Sprintf("Question %s was not found.", out.Ref.ID))
	}

	if err := s.chat.SendMessage(ctx, chatID, "Sorry, I couldn't prepare that question. Please try again in a moment."); err != nil {
		s.logger.Printf("send apology to chat=%s failed: %v", chatID, err)
	}
	return out.Err
}

// forgetUnreachable drops chats the platform refused from the registry so
// later broadcasts skip them.
func (s *Service) forgetUnreachable(ctx context.Context, failed []RecipientFailure) {
	if s.registry == nil {
		return
	}
	for _, f := range failed {
		if !errors.Is(f.Err, ErrChatUnreachable) {
			continue
		}
		if err := s.registry.ForgetChat(ctx, f.ChatID); err != nil {
			s.logger.Printf("forget chat=%s failed: %v", f.ChatID, err)
			continue
		}
		s.logger.Printf("chat=%s is unreachable; removed from registry", f.ChatID)
	}
}

func unsupportedCategoryText(category catalog.Category) string {
	return fmt.Sprintf("Sorry, %s questions are not supported yet. Send \"help\" to see what is available.", category)
}

func poolName(category catalog.Category) string {
	if category == catalog.Any {
		return "GMAT"
	}
	return category.String()
}
