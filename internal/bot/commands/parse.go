package commands

import (
	"strings"

	"gmat-zalo-bot/internal/catalog"
)

// keywordTable holds every literal the bot understands, keyed in lower case.
var keywordTable = buildKeywordTable()

func buildKeywordTable() map[string]Command {
	table := map[string]Command{
		"help":    {Kind: ShowHelp},
		"/help":   {Kind: ShowHelp},
		"/start":  {Kind: ShowHelp},
		"random":  {Kind: RequestRandom},
		"/random": {Kind: RequestRandom},
		"any":     {Kind: RequestRandom},
		"gmat":    {Kind: RequestRandom},
	}
	for _, c := range catalog.All {
		for _, kw := range catalog.Keywords(c) {
			table[kw] = Command{Kind: RequestByCategory, Category: c}
			table["/"+kw] = Command{Kind: RequestByCategory, Category: c}
		}
	}
	return table
}

// Parse maps message text to a Command. A non-negative integer is a question
// id; anything unrecognised, including empty text, asks for help.
func Parse(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Kind: ShowHelp}
	}
	if isDigits(trimmed) {
		return Command{Kind: RequestByID, ID: trimmed}
	}
	if cmd, ok := keywordTable[strings.ToLower(trimmed)]; ok {
		return cmd
	}
	return Command{Kind: ShowHelp}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
