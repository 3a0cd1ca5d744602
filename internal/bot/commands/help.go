package commands

import (
	"context"
	"fmt"
	"strings"

	"gmat-zalo-bot/internal/catalog"
)

func (h *Handler) cmdHelp(ctx context.Context, chatID string) error {
	return h.deps.SendMessage(ctx, chatID, HelpText())
}

func HelpText() string {
	var b strings.Builder
	b.WriteString("Send one of these to get a GMAT practice question:\n")
	for _, c := range catalog.All {
		if !c.Supported() {
			continue
		}
		fmt.Fprintf(&b, "%s - a random %s question\n", c.Code(), c.String())
	}
	b.WriteString("random - a random question from any category\n")
	b.WriteString("<number> - that exact question, with explanations\n")
	fmt.Fprintf(&b, "\n%s questions are not supported yet.", catalog.Excluded)
	return b.String()
}
