package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/user/gitcord/internal/chat"
	"github.com/user/gitcord/internal/chat/chattest"
	"github.com/user/gitcord/internal/limits"
	"github.com/user/gitcord/internal/storage"
)

type memStore struct {
	sent     map[int64]int
	warned   map[string]bool
	countErr error
}

func newMemStore() *memStore {
	return &memStore{sent: map[int64]int{}, warned: map[string]bool{}}
}

func (m *memStore) IncrementMessagesSent(_ context.Context, serverID int64, n int) error {
	if m.countErr != nil {
		return m.countErr
	}
	m.sent[serverID] += n
	return nil
}

func (m *memStore) MarkLimitWarning(_ context.Context, _ int64, channelID string) (bool, error) {
	if m.warned[channelID] {
		return false, nil
	}
	m.warned[channelID] = true
	return true, nil
}

type fixedLimiter struct{ status limits.ChannelStatus }

func (f fixedLimiter) CheckChannelLimit(context.Context, int64, string, string) (limits.ChannelStatus, error) {
	return f.status, nil
}

func TestDeliver_SendsAndCounts(t *testing.T) {
	client := chattest.NewClient("c1")
	store := newMemStore()
	n := NewNotifier(client, store, fixedLimiter{})

	handle, err := n.Deliver(context.Background(), Target{ServerID: 7, ChannelID: "c1"}, chat.Message{Title: "hi"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if handle.ChannelID != "c1" || handle.ID == "" {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if store.sent[7] != 1 {
		t.Fatalf("counter = %d, want 1", store.sent[7])
	}
}

func TestDeliver_SkipsWithoutCounting(t *testing.T) {
	client := chattest.NewClient("c1")
	client.AddChannel("voice", false)
	client.FailSends("c1")
	store := newMemStore()
	n := NewNotifier(client, store, nil)
	ctx := context.Background()

	cases := []struct {
		channel string
		want    error
	}{
		{"", ErrNoChannel},
		{storage.ChannelPending, ErrNoChannel},
		{"missing", chat.ErrChannelNotFound},
		{"voice", ErrNotText},
		{"c1", nil},
	}
	for _, c := range cases {
		_, err := n.Deliver(ctx, Target{ServerID: 1, ChannelID: c.channel}, chat.Message{})
		if err == nil {
			t.Fatalf("channel %q: expected error", c.channel)
		}
		if c.want != nil && !errors.Is(err, c.want) {
			t.Fatalf("channel %q: got %v, want %v", c.channel, err, c.want)
		}
	}
	if store.sent[1] != 0 {
		t.Fatalf("failed deliveries must not count, got %d", store.sent[1])
	}
}

func TestDeliver_CounterFailureDoesNotFailSend(t *testing.T) {
	client := chattest.NewClient("c1")
	store := newMemStore()
	store.countErr = errors.New("locked")
	n := NewNotifier(client, store, nil)

	if _, err := n.Deliver(context.Background(), Target{ServerID: 1, ChannelID: "c1"}, chat.Message{}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(client.Sent()) != 1 {
		t.Fatalf("expected one message sent")
	}
}

func TestDeliver_LimitWarningOncePerChannel(t *testing.T) {
	client := chattest.NewClient("c1")
	store := newMemStore()
	limiter := fixedLimiter{status: limits.ChannelStatus{IsAtLimit: true, CurrentCount: 3, MaxAllowed: 2}}
	n := NewNotifier(client, store, limiter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := n.Deliver(ctx, Target{ServerID: 1, ChannelID: "c1"}, chat.Message{Title: "event"}); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	msgs := client.SentTo("c1")
	if len(msgs) != 4 {
		t.Fatalf("expected 1 warning + 3 events, got %d", len(msgs))
	}
	if msgs[0].Title != "Notification channel limit reached" {
		t.Fatalf("first message should be the warning, got %q", msgs[0].Title)
	}
	if store.sent[1] != 4 {
		t.Fatalf("counter = %d, want 4", store.sent[1])
	}
}

func TestDeliver_SkipLimitCheck(t *testing.T) {
	client := chattest.NewClient("c1")
	limiter := fixedLimiter{status: limits.ChannelStatus{IsAtLimit: true, CurrentCount: 3, MaxAllowed: 2}}
	n := NewNotifier(client, newMemStore(), limiter)

	if _, err := n.Deliver(context.Background(), Target{ServerID: 1, ChannelID: "c1", SkipLimitCheck: true}, chat.Message{}); err != nil {
		t.Fatal(err)
	}
	if len(client.Sent()) != 1 {
		t.Fatalf("expected no warning, got %d messages", len(client.Sent()))
	}
}

func newLimitedStore(t *testing.T) (*storage.Store, *storage.Server) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := storage.NewStore(db)
	ctx := context.Background()
	srv, err := store.UpsertServer(ctx, "g", "Guild")
	if err != nil {
		t.Fatal(err)
	}
	repo, err := store.UpsertRepository(ctx, srv.ID, "https://github.com/o/r", "default-ch", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range []string{"c1", "c2"} {
		if err := store.AddTrackedBranch(ctx, repo.ID, "main", ch); err != nil {
			t.Fatal(err)
		}
	}
	return store, srv
}

func TestDeliver_DefaultChannelDoesNotCountTowardLimit(t *testing.T) {
	ctx := context.Background()
	store, srv := newLimitedStore(t)
	client := chattest.NewClient("default-ch", "c1", "c2")
	n := NewNotifier(client, store, limits.NewGuard(store, 10, 2))

	for _, ch := range []string{"default-ch", "c1", "c2"} {
		if _, err := n.Deliver(ctx, Target{ServerID: srv.ID, ChannelID: ch}, chat.Message{Title: "PR opened"}); err != nil {
			t.Fatalf("Deliver to %s: %v", ch, err)
		}
	}

	for _, ch := range []string{"default-ch", "c1", "c2"} {
		msgs := client.SentTo(ch)
		if len(msgs) != 1 || msgs[0].Title != "PR opened" {
			t.Fatalf("channel %s: expected only the event, got %+v", ch, msgs)
		}
	}
	got, err := store.GetServerByGuild(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if got.MessagesSent != 3 {
		t.Fatalf("messages_sent = %d, want 3", got.MessagesSent)
	}
}

func TestDeliver_WarnsWhenExplicitChannelsExceedLimit(t *testing.T) {
	ctx := context.Background()
	store, srv := newLimitedStore(t)
	client := chattest.NewClient("default-ch")
	// The limit was lowered after two channels were already routed.
	n := NewNotifier(client, store, limits.NewGuard(store, 10, 1))

	for i := 0; i < 2; i++ {
		if _, err := n.Deliver(ctx, Target{ServerID: srv.ID, ChannelID: "default-ch"}, chat.Message{Title: "PR opened"}); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	msgs := client.SentTo("default-ch")
	if len(msgs) != 3 {
		t.Fatalf("expected 1 warning + 2 events, got %d", len(msgs))
	}
	if msgs[0].Title != "Notification channel limit reached" {
		t.Fatalf("first message should be the warning, got %q", msgs[0].Title)
	}
}
