package commands

import (
	"context"
	"strings"
	"testing"

	"gmat-zalo-bot/internal/catalog"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{name: "upper abbreviation", input: "PS", want: Command{Kind: RequestByCategory, Category: catalog.ProblemSolving}},
		{name: "lower abbreviation", input: "ps", want: Command{Kind: RequestByCategory, Category: catalog.ProblemSolving}},
		{name: "padded mixed case", input: " Ps ", want: Command{Kind: RequestByCategory, Category: catalog.ProblemSolving}},
		{name: "full name", input: "data sufficiency", want: Command{Kind: RequestByCategory, Category: catalog.DataSufficiency}},
		{name: "slash abbreviation", input: "/cr", want: Command{Kind: RequestByCategory, Category: catalog.CriticalReasoning}},
		{name: "excluded category still matches", input: "RC", want: Command{Kind: RequestByCategory, Category: catalog.ReadingComprehension}},
		{name: "numeric id", input: "42", want: Command{Kind: RequestByID, ID: "42"}},
		{name: "padded numeric id", input: "\t1001\n", want: Command{Kind: RequestByID, ID: "1001"}},
		{name: "id wider than 64 bits", input: "123456789012345678901234567890", want: Command{Kind: RequestByID, ID: "123456789012345678901234567890"}},
		{name: "non-ascii digits", input: "４２", want: Command{Kind: ShowHelp}},
		{name: "negative number", input: "-4", want: Command{Kind: ShowHelp}},
		{name: "random", input: "Random", want: Command{Kind: RequestRandom}},
		{name: "empty", input: "", want: Command{Kind: ShowHelp}},
		{name: "whitespace", input: "   ", want: Command{Kind: ShowHelp}},
		{name: "unknown", input: "xyz", want: Command{Kind: ShowHelp}},
		{name: "help", input: "/start", want: Command{Kind: ShowHelp}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.input); got != tc.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

type recordingDeps struct {
	messages   []string
	categories []catalog.Category
	ids        []string
}

func (r *recordingDeps) SendMessage(_ context.Context, _ string, text string) error {
	r.messages = append(r.messages, text)
	return nil
}

func (r *recordingDeps) DeliverCategory(_ context.Context, _ string, category catalog.Category) error {
	r.categories = append(r.categories, category)
	return nil
}

func (r *recordingDeps) DeliverByID(_ context.Context, _ string, id string) error {
	r.ids = append(r.ids, id)
	return nil
}

func (r *recordingDeps) DefaultCategory() catalog.Category {
	return catalog.SentenceCorrection
}

func TestHandlerDispatch(t *testing.T) {
	deps := &recordingDeps{}
	h := NewHandler(deps)
	ctx := context.Background()

	for _, text := range []string{"hello", "ds", "42", "random"} {
		if err := h.Handle(ctx, "chat-1", text); err != nil {
			t.Fatalf("Handle(%q): %v", text, err)
		}
	}

	if len(deps.messages) != 1 || !strings.Contains(deps.messages[0], "PS - a random Problem Solving question") {
		t.Fatalf("expected one help message, got %v", deps.messages)
	}
	if strings.Contains(deps.messages[0], "RC - ") {
		t.Fatalf("help must not advertise the excluded category: %s", deps.messages[0])
	}
	want := []catalog.Category{catalog.DataSufficiency, catalog.SentenceCorrection}
	if len(deps.categories) != 2 || deps.categories[0] != want[0] || deps.categories[1] != want[1] {
		t.Fatalf("categories = %v, want %v", deps.categories, want)
	}
	if len(deps.ids) != 1 || deps.ids[0] != "42" {
		t.Fatalf("ids = %v", deps.ids)
	}
}
