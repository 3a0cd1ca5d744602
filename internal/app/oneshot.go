package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"gmat-zalo-bot/internal/bot"
	"gmat-zalo-bot/internal/catalog"
	"gmat-zalo-bot/internal/config"
)

type chatDirectory interface {
	ListChatIDs(ctx context.Context) ([]string, error)
	ForgetChat(ctx context.Context, chatID string) error
}

type updateSource interface {
	GetUpdates(ctx context.Context) ([]bot.Message, error)
	IsPollTimeout(err error) bool
}

// oneShot selects questions once, then renders or delivers them.
type oneShot struct {
	logger    *log.Logger
	selector  bot.QuestionSelector
	questions catalog.Catalog
	pipeline  *bot.Pipeline
	registry  chatDirectory
	updates   updateSource
}

const recipientLookupTimeout = 45 * time.Second

func (o *oneShot) run(ctx context.Context, cfg config.Config) error {
	refs, err := o.selector.Select(o.questions, cfg.Category, cfg.Count)
	if err != nil {
		if errors.Is(err, catalog.ErrUnsupportedCategory) {
			return fmt.Errorf("%s questions are not supported", cfg.Category)
		}
		return fmt.Errorf("select questions: %w", err)
	}
	if len(refs) == 0 {
		o.logger.Printf("no questions found matching category %s", cfg.Category)
		return nil
	}

	o.logger.Printf("selected %d random question(s):", len(refs))
	for i, ref := range refs {
		o.logger.Printf("%d. Question ID: %s (%s)", i+1, ref.ID, ref.Category)
	}

	switch {
	case cfg.Send:
		return o.deliver(ctx, refs, cfg.Recipients)
	case cfg.GenerateImages:
		return o.renderAll(ctx, refs)
	}
	return nil
}

func (o *oneShot) renderAll(ctx context.Context, refs []catalog.QuestionRef) error {
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		path, err := o.pipeline.RenderOnly(ctx, ref, false)
		if err != nil {
			o.logger.Printf("question %s: %v", ref.ID, err)
			continue
		}
		paths = append(paths, path)
	}

	o.logger.Printf("generated %d of %d image(s)", len(paths), len(refs))
	for _, path := range paths {
		o.logger.Printf("  %s", path)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images were generated")
	}
	return nil
}

func (o *oneShot) deliver(ctx context.Context, refs []catalog.QuestionRef, explicit []string) error {
	recipients, err := o.resolveRecipients(ctx, explicit)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		o.logger.Printf("no recipients found; make sure users have messaged the bot recently")
		return nil
	}
	o.logger.Printf("delivering to %d chat(s)", len(recipients))

	failedJobs := 0
	unreachable := make(map[string]struct{})
	for _, ref := range refs {
		out := o.pipeline.Run(ctx, o.pipeline.NewJob(ref, recipients, false))
		if !out.Succeeded() {
			failedJobs++
		}
		for _, f := range out.Failed {
			if errors.Is(f.Err, bot.ErrChatUnreachable) {
				unreachable[f.ChatID] = struct{}{}
			}
		}
	}
	o.forgetChats(ctx, unreachable)
	if failedJobs > 0 {
		return fmt.Errorf("%d of %d question deliveries did not fully succeed", failedJobs, len(refs))
	}
	o.logger.Printf("delivery completed")
	return nil
}

func (o *oneShot) forgetChats(ctx context.Context, chatIDs map[string]struct{}) {
	if o.registry == nil {
		return
	}
	for chatID := range chatIDs {
		if err := o.registry.ForgetChat(ctx, chatID); err != nil {
			o.logger.Printf("forget chat=%s failed: %v", chatID, err)
			continue
		}
		o.logger.Printf("chat=%s is unreachable; removed from registry", chatID)
	}
}

// resolveRecipients prefers the explicit list, then the chat registry, then
// the chats found in one batch of pending updates.
func (o *oneShot) resolveRecipients(ctx context.Context, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}

	if o.registry != nil {
		ids, err := o.registry.ListChatIDs(ctx)
		if err != nil {
			o.logger.Printf("chat registry lookup failed, falling back to recent messages: %v", err)
		} else if len(ids) > 0 {
			return ids, nil
		}
	}

	if o.updates == nil {
		return nil, fmt.Errorf("no chat client configured")
	}
	o.logger.Printf("reading recent messages to find recipients")
	lookupCtx, cancel := context.WithTimeout(ctx, recipientLookupTimeout)
	defer cancel()
	messages, err := o.updates.GetUpdates(lookupCtx)
	if err != nil {
		if o.updates.IsPollTimeout(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get recent messages: %w", err)
	}
	return uniqueChatIDs(messages), nil
}

func uniqueChatIDs(messages []bot.Message) []string {
	seen := make(map[string]struct{}, len(messages))
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.ChatID == "" || m.SenderIsBot {
			continue
		}
		if _, ok := seen[m.ChatID]; ok {
			continue
		}
		seen[m.ChatID] = struct{}{}
		out = append(out, m.ChatID)
	}
	sort.Strings(out)
	return out
}
