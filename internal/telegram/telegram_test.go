package telegram

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/gitcord/internal/chat"
)

func TestRenderMarkdown(t *testing.T) {
	text := RenderMarkdown(chat.Message{
		Title:       "[o/r] Issue opened: #1 fix_me",
		URL:         "https://github.com/o/r/issues/1",
		Description: "[`abc1234`](https://x) change",
		AuthorName:  "some_user",
		Fields:      []chat.Field{{Name: "Labels", Value: "bug"}},
		Footer:      "zen",
	})

	for _, want := range []string{
		`🔔 *\[o/r] Issue opened: #1 fix\_me*`,
		`👤 some\_user`,
		"[`abc1234`](https://x) change",
		"*Labels:* bug",
		"_zen_",
		"[View on GitHub](https://github.com/o/r/issues/1)",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered text missing %q:\n%s", want, text)
		}
	}
}

func TestRenderMarkdown_Truncates(t *testing.T) {
	text := RenderMarkdown(chat.Message{Description: strings.Repeat("a", maxText+100)})
	if n := len([]rune(text)); n != maxText {
		t.Fatalf("length = %d, want %d", n, maxText)
	}
}

func TestIsChatNotFound(t *testing.T) {
	if !isChatNotFound(fmt.Errorf("wrapped: %w", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"})) {
		t.Fatal("expected chat not found")
	}
	if isChatNotFound(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was kicked"}) || isChatNotFound(errors.New("timeout")) {
		t.Fatal("unexpected match")
	}
}

func TestChatTitle(t *testing.T) {
	private := &tgbotapi.Chat{Type: "private", FirstName: "Ada", LastName: "Lovelace"}
	if got := chatTitle(private); got != "Ada Lovelace" {
		t.Fatalf("got %q", got)
	}
	group := &tgbotapi.Chat{Type: "supergroup", Title: "Dev"}
	if got := chatTitle(group); got != "Dev" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		5 * time.Second:               "5s",
		90 * time.Second:              "1m 30s",
		2*time.Hour + 5*time.Minute:   "2h 5m",
		49*time.Hour + 10*time.Minute: "2d 1h 10m",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Fatalf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
