package telegram

import (
	"fmt"
	"strings"

	"github.com/user/gitcord/internal/chat"
)

// maxText is the Telegram message length limit.
const maxText = 4096

// RenderMarkdown converts a chat message to legacy Telegram Markdown.
// Description and field values are already Markdown and pass through.
func RenderMarkdown(msg chat.Message) string {
	var b strings.Builder
	if msg.Content != "" {
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}
	if msg.Title != "" {
		fmt.Fprintf(&b, "🔔 *%s*\n", escapeMarkdown(msg.Title))
	}
	if msg.AuthorName != "" {
		fmt.Fprintf(&b, "👤 %s\n", escapeMarkdown(msg.AuthorName))
	}
	if msg.Description != "" {
		b.WriteString("\n")
		b.WriteString(msg.Description)
		b.WriteString("\n")
	}
	if len(msg.Fields) > 0 {
		b.WriteString("\n")
		for _, f := range msg.Fields {
			fmt.Fprintf(&b, "*%s:* %s\n", escapeMarkdown(f.Name), f.Value)
		}
	}
	if msg.Footer != "" {
		fmt.Fprintf(&b, "\n_%s_\n", escapeMarkdown(msg.Footer))
	}
	if msg.URL != "" {
		fmt.Fprintf(&b, "\n[View on GitHub](%s)", msg.URL)
	}

	text := strings.TrimRight(b.String(), "\n")
	if r := []rune(text); len(r) > maxText {
		text = string(r[:maxText-3]) + "..."
	}
	return text
}

// escapeMarkdown escapes the characters legacy Markdown treats as entities.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"`", "\\`",
		"[", "\\[",
	)
	return replacer.Replace(s)
}
