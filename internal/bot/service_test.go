package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"gmat-zalo-bot/internal/catalog"
)

type fakeRegistry struct {
	mu        sync.Mutex
	chats     []string
	forgotten []string
	err       error
}

func (f *fakeRegistry) RememberChat(_ context.Context, chatID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chatID)
	return f.err
}

func (f *fakeRegistry) ForgetChat(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, chatID)
	return nil
}

// countingSelector wraps the real selector and records calls.
type countingSelector struct {
	inner *catalog.Selector
	calls int
}

func (c *countingSelector) Select(cat catalog.Catalog, filter catalog.Category, count int) ([]catalog.QuestionRef, error) {
	c.calls++
	return c.inner.Select(cat, filter, count)
}

type serviceFixture struct {
	*pipelineFixture
	registry *fakeRegistry
	selector *countingSelector
	service  *Service
	logs     *bytes.Buffer
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	pf := newPipelineFixture(DefaultPipelineConfig())
	questions := catalog.New(map[catalog.Category][]string{
		catalog.ReadingComprehension: {"500"},
		catalog.ProblemSolving:       {"42"},
		catalog.DataSufficiency:      {"77"},
	})
	logs := &bytes.Buffer{}
	f := &serviceFixture{
		pipelineFixture: pf,
		registry:        &fakeRegistry{},
		selector:        &countingSelector{inner: catalog.NewSelector()},
		logs:            logs,
	}
	f.service = NewService(log.New(logs, "", 0), pf.chat, f.registry, f.selector, questions, pf.pipeline, catalog.Any)
	f.service.sleep = pf.sleeps.sleep
	return f
}

func msg(chatID, text string) Message {
	return Message{MessageID: "m-" + chatID, ChatID: chatID, SenderID: "u-" + chatID, Text: text}
}

func TestHandleMessageNumericIDBypassesSelector(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.service.HandleMessage(context.Background(), msg("c1", "42")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if f.selector.calls != 0 {
		t.Fatalf("selector should not be used for id requests")
	}
	if len(f.chat.photos) != 1 || !strings.Contains(f.chat.photos[0].caption, "Question ID: 42 (Problem Solving)") {
		t.Fatalf("unexpected photos %+v", f.chat.photos)
	}
	if !f.renderer.includeExplanations[0] {
		t.Fatalf("id requests include explanations")
	}
	if len(f.registry.chats) != 1 || f.registry.chats[0] != "c1" {
		t.Fatalf("chat not registered: %v", f.registry.chats)
	}
}

func TestHandleMessageCategoryRequest(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.service.HandleMessage(context.Background(), msg("c1", " ds ")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if f.selector.calls != 1 {
		t.Fatalf("selector calls = %d", f.selector.calls)
	}
	if len(f.chat.photos) != 1 || !strings.Contains(f.chat.photos[0].caption, "Question ID: 77 (Data Sufficiency)") {
		t.Fatalf("unexpected photos %+v", f.chat.photos)
	}
	if f.renderer.includeExplanations[0] {
		t.Fatalf("random questions suppress explanations")
	}
}

func TestHandleMessageUnsupportedCategoryApologises(t *testing.T) {
	f := newServiceFixture(t)

	for _, text := range []string{"RC", "500"} {
		if err := f.service.HandleMessage(context.Background(), msg("c1", text)); err != nil {
			t.Fatalf("HandleMessage(%q): %v", text, err)
		}
	}
	got := f.chat.messages["c1"]
	if len(got) != 2 {
		t.Fatalf("expected two apologies, got %v", got)
	}
	for _, m := range got {
		if !strings.Contains(m, "Reading Comprehension questions are not supported") {
			t.Fatalf("unexpected reply %q", m)
		}
	}
	if f.content.calls != 0 || len(f.chat.photos) != 0 {
		t.Fatalf("nothing should be fetched or sent for unsupported requests")
	}
	if strings.Contains(f.logs.String(), "failed") {
		t.Fatalf("unsupported category must not be logged as a failure: %s", f.logs.String())
	}
}

func TestHandleMessageHelpAndNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_ = f.service.HandleMessage(context.Background(), msg("c1", "xyz"))
	_ = f.service.HandleMessage(context.Background(), msg("c1", "12345"))

	got := f.chat.messages["c1"]
	if len(got) != 2 {
		t.Fatalf("expected 2 replies, got %v", got)
	}
	if !strings.Contains(got[0], "PS - a random Problem Solving question") {
		t.Fatalf("expected help text, got %q", got[0])
	}
	if got[1] != "Question 12345 was not found." {
		t.Fatalf("expected not found reply, got %q", got[1])
	}
}

func TestHandleMessageIgnoresBots(t *testing.T) {
	f := newServiceFixture(t)
	m := msg("c1", "ps")
	m.SenderIsBot = true

	if err := f.service.HandleMessage(context.Background(), m); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(f.chat.photos) != 0 || len(f.chat.messages) != 0 || len(f.registry.chats) != 0 {
		t.Fatalf("bot messages must be ignored")
	}
}

func TestHandleMessageRegistryFailureIsNotFatal(t *testing.T) {
	f := newServiceFixture(t)
	f.registry.err = errors.New("firestore unavailable")

	if err := f.service.HandleMessage(context.Background(), msg("c1", "ps")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(f.chat.photos) != 1 {
		t.Fatalf("delivery should continue when the registry fails")
	}
}

func TestHandleMessageForgetsUnreachableChat(t *testing.T) {
	f := newServiceFixture(t)
	f.chat.failFor["gone"] = fmt.Errorf("%w: zalo api error 400: chat not found", ErrChatUnreachable)
	f.chat.failFor["flaky"] = errors.New("zalo status 502")

	if err := f.service.HandleMessage(context.Background(), msg("gone", "ps")); err == nil {
		t.Fatalf("expected send failure")
	}
	if err := f.service.HandleMessage(context.Background(), msg("flaky", "ps")); err == nil {
		t.Fatalf("expected send failure")
	}
	if len(f.registry.forgotten) != 1 || f.registry.forgotten[0] != "gone" {
		t.Fatalf("forgotten = %v, want [gone]", f.registry.forgotten)
	}
}

func TestHandleMessageFetchFailureApologises(t *testing.T) {
	f := newServiceFixture(t)
	f.content.err = errors.New("connection refused")

	err := f.service.HandleMessage(context.Background(), msg("c1", "ps"))
	if FailedStage(err) != StageFetching {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	if got := f.chat.messages["c1"]; len(got) != 1 || !strings.Contains(got[0], "couldn't prepare") {
		t.Fatalf("expected apology, got %v", got)
	}
}

func TestRunProcessesBatchInOrderAndStopsOnCancel(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.chat.updates = [][]Message{
		{msg("c1", "42"), msg("c2", "xyz"), msg("c3", "ds")},
	}
	f.chat.onPoll = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	done := make(chan error, 1)
	go func() { done <- f.service.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}

	if len(f.registry.chats) != 3 || f.registry.chats[0] != "c1" || f.registry.chats[1] != "c2" || f.registry.chats[2] != "c3" {
		t.Fatalf("messages not handled in order: %v", f.registry.chats)
	}
	if len(f.chat.photos) != 2 || f.chat.photos[0].chatID != "c1" || f.chat.photos[1].chatID != "c3" {
		t.Fatalf("unexpected photos %+v", f.chat.photos)
	}
}

func TestRunBacksOffOnlyOnRealErrors(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.chat.updateErr = []error{
		context.DeadlineExceeded,
		errors.New("zalo status 502: bad gateway"),
		nil,
	}
	f.chat.onPoll = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	if err := f.service.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if f.chat.polls != 4 {
		t.Fatalf("polls = %d, want 4", f.chat.polls)
	}
	if len(f.sleeps.delays) != 1 || f.sleeps.delays[0] != 5*time.Second {
		t.Fatalf("expected a single 5s backoff, got %v", f.sleeps.delays)
	}
}

func TestRunEmptyBatchContinues(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.chat.updates = [][]Message{{}, {}}
	f.chat.onPoll = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	if err := f.service.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if f.chat.polls != 3 || len(f.sleeps.delays) != 0 {
		t.Fatalf("polls=%d sleeps=%v", f.chat.polls, f.sleeps.delays)
	}
}
