package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/user/gitcord/internal/chat/chattest"
	"github.com/user/gitcord/internal/events"
	"github.com/user/gitcord/internal/limits"
	"github.com/user/gitcord/internal/notifier"
	"github.com/user/gitcord/internal/routing"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/internal/webhook"
	"github.com/user/gitcord/pkg/logger"
)

const (
	repoURL      = "https://github.com/o/r"
	repoSecret   = "repo-secret"
	globalSecret = "global-secret"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func payload(fields map[string]any) []byte {
	fields["repository"] = map[string]any{"html_url": repoURL, "full_name": "o/r"}
	body, err := json.Marshal(fields)
	Expect(err).NotTo(HaveOccurred())
	return body
}

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, *events.Event) events.Outcome {
	panic("handler exploded")
}

var _ = Describe("Webhook dispatcher", func() {
	var (
		ctx    context.Context
		store  *storage.Store
		client *chattest.Client
		server *storage.Server
		repo   *storage.Repository
		router http.Handler
		deliv  *notifier.Notifier
	)

	build := func(handler webhook.EventHandler) {
		wh := webhook.NewHandler(store, handler, deliv, webhook.Options{
			GlobalSecret: globalSecret,
			MaxBodyBytes: 1 << 20,
		})
		router = webhook.NewRouter(wh, store, time.Now())
	}

	BeforeEach(func() {
		ctx = context.Background()
		db, err := storage.NewDatabase(filepath.Join(GinkgoT().TempDir(), "bot.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)
		store = storage.NewStore(db)

		server, err = store.UpsertServer(ctx, "guild-1", "Guild")
		Expect(err).NotTo(HaveOccurred())
		repo, err = store.UpsertRepository(ctx, server.ID, repoURL+".git", "default-ch", repoSecret)
		Expect(err).NotTo(HaveOccurred())

		client = chattest.NewClient("default-ch", "c1", "c2", "other-ch")
		guard := limits.NewGuard(store, limits.Unlimited, limits.Unlimited)
		deliv = notifier.NewNotifier(client, store, guard)
		build(events.NewHandlers(store, routing.NewResolver(store), deliv))
	})

	send := func(eventType string, body []byte, signature, contentType string) (*httptest.ResponseRecorder, webhook.Response) {
		req := httptest.NewRequest(http.MethodPost, "/github-webhook", bytes.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if eventType != "" {
			req.Header.Set("X-GitHub-Event", eventType)
		}
		if signature != "" {
			req.Header.Set("X-Hub-Signature-256", signature)
		}
		req.Header.Set("X-GitHub-Delivery", "delivery-1")
		req.Header.Set("User-Agent", "GitHub-Hookshot/test")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var resp webhook.Response
		if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		}
		return rec, resp
	}

	post := func(eventType string, body []byte) (*httptest.ResponseRecorder, webhook.Response) {
		return send(eventType, body, sign(body, repoSecret), "application/json")
	}

	messagesSent := func() int64 {
		srv, err := store.GetServerByGuild(ctx, "guild-1")
		Expect(err).NotTo(HaveOccurred())
		return srv.MessagesSent
	}

	Describe("signature validation", func() {
		It("accepts the repository secret and rejects a modified body", func() {
			Expect(store.AddTrackedBranch(ctx, repo.ID, "main", "c1")).To(Succeed())
			body := payload(map[string]any{
				"ref":     "refs/heads/main",
				"commits": []map[string]any{{"id": "0123456789abcdef", "message": "first change"}},
			})
			signature := sign(body, repoSecret)

			rec, resp := send("push", body, signature, "application/json")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.ChannelID).NotTo(BeNil())
			Expect(*resp.ChannelID).To(Equal("c1"))
			Expect(resp.MessageID).NotTo(BeNil())

			flipped := bytes.Replace(body, []byte("first change"), []byte("first chbnge"), 1)
			rec, _ = send("push", flipped, signature, "application/json")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(client.SentTo("c1")).To(HaveLen(1))
		})

		It("falls back to the global secret for repositories without one", func() {
			other, err := store.UpsertServer(ctx, "guild-2", "Other")
			Expect(err).NotTo(HaveOccurred())
			otherRepo, err := store.UpsertRepository(ctx, other.ID, repoURL, "other-ch", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.AddTrackedBranch(ctx, otherRepo.ID, "*", "")).To(Succeed())

			body := payload(map[string]any{"ref": "refs/heads/dev", "commits": []map[string]any{{"id": "1"}}})
			rec, resp := send("push", body, sign(body, globalSecret), "application/json")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.ChannelID).NotTo(BeNil())
			Expect(*resp.ChannelID).To(Equal("other-ch"))
			Expect(client.SentTo("default-ch")).To(BeEmpty())
		})

		It("rejects a missing signature", func() {
			body := payload(map[string]any{"ref": "refs/heads/main"})
			rec, resp := send("push", body, "", "application/json")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(resp.ChannelID).To(BeNil())
		})

		It("logs the stage a rejected delivery reached", func() {
			var logs bytes.Buffer
			logger.SetOutput(&logs, zerolog.DebugLevel)
			DeferCleanup(logger.SetOutput, io.Discard, zerolog.Disabled)

			body := payload(map[string]any{"ref": "refs/heads/main"})
			rec, _ := send("push", body, sign(body, "guess"), "application/json")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))

			lines := bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n"))
			var line map[string]any
			Expect(json.Unmarshal(lines[len(lines)-1], &line)).To(Succeed())
			Expect(line).To(HaveKeyWithValue("level", "warn"))
			Expect(line).To(HaveKeyWithValue("state", "repository_matched"))
			Expect(line).To(HaveKeyWithValue("delivery_id", "delivery-1"))
			Expect(line).To(HaveKeyWithValue("event", "push"))
			Expect(line).To(HaveKeyWithValue("status", BeNumerically("==", http.StatusUnauthorized)))
		})

		It("rejects a signature made with an unknown secret", func() {
			body := payload(map[string]any{"ref": "refs/heads/main"})
			rec, _ := send("push", body, sign(body, "guess"), "application/json")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("request validation", func() {
		It("returns 404 for repositories nobody linked", func() {
			body := []byte(`{"repository":{"html_url":"https://github.com/o/unknown"}}`)
			rec, _ := send("push", body, sign(body, repoSecret), "application/json")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 without repository.html_url", func() {
			body := []byte(`{"zen":"hi"}`)
			rec, _ := send("ping", body, sign(body, repoSecret), "application/json")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 for malformed JSON", func() {
			body := []byte(`{"repository":`)
			rec, _ := send("push", body, sign(body, repoSecret), "application/json")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 without an event type", func() {
			body := payload(map[string]any{})
			rec, _ := post("", body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("accepts a JSON content type with parameters", func() {
			body := payload(map[string]any{"zen": "hi"})
			rec, _ := send("ping", body, sign(body, repoSecret), "application/json; charset=utf-8")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("rejects form payloads and tells the repository channel how to fix them", func() {
			body := []byte("payload=" + url.QueryEscape(string(payload(map[string]any{"zen": "hi"}))))
			rec, _ := send("ping", body, sign(body, repoSecret), "application/x-www-form-urlencoded")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			notices := client.SentTo("default-ch")
			Expect(notices).To(HaveLen(1))
			Expect(notices[0].Title).To(ContainSubstring("misconfigured"))
		})

		It("does not post a notice for unsigned form payloads", func() {
			body := []byte("payload=" + url.QueryEscape(string(payload(map[string]any{}))))
			rec, _ := send("ping", body, "", "application/x-www-form-urlencoded")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(client.Sent()).To(BeEmpty())
		})
	})

	Describe("dispatch", func() {
		It("fans a push out to every matching tracked branch", func() {
			Expect(store.AddTrackedBranch(ctx, repo.ID, "*", "c1")).To(Succeed())
			Expect(store.AddTrackedBranch(ctx, repo.ID, "release/*", "c2")).To(Succeed())

			body := payload(map[string]any{
				"ref":     "refs/heads/release/v2",
				"commits": []map[string]any{{"id": "abc", "message": "ship it"}},
			})
			rec, resp := post("push", body)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.Deliveries).To(HaveLen(2))
			Expect(client.SentTo("c1")).To(HaveLen(1))
			Expect(client.SentTo("c2")).To(HaveLen(1))
			Expect(messagesSent()).To(Equal(int64(2)))
		})

		It("acknowledges a review without comment routing and sends nothing", func() {
			body := payload(map[string]any{
				"action":       "submitted",
				"review":       map[string]any{"state": "commented", "body": "looks fine"},
				"pull_request": map[string]any{"number": 4, "title": "Tweak"},
			})
			rec, resp := post("pull_request_review", body)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.ChannelID).To(BeNil())
			Expect(resp.MessageID).To(BeNil())
			Expect(client.Sent()).To(BeEmpty())
		})

		It("acknowledges unknown event types and writes a system log", func() {
			body := payload(map[string]any{"deployment_status": map[string]any{"state": "success"}})
			rec, resp := post("deployment_status", body)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.ChannelID).To(BeNil())

			logs, err := store.ListSystemLogs(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].Message).To(ContainSubstring("deployment_status"))
			Expect(logs[0].RepositoryID).To(Equal(repo.ID))
		})

		It("confirms a ping with two messages", func() {
			body := payload(map[string]any{"zen": "Design for failure.", "hook_id": 42})
			rec, resp := post("ping", body)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.Deliveries).To(HaveLen(2))
			Expect(client.SentTo("default-ch")).To(HaveLen(2))
			Expect(messagesSent()).To(Equal(int64(2)))
		})

		It("answers 500 and records the failure when the payload cannot be decoded", func() {
			body := payload(map[string]any{"ref": 5})
			rec, _ := post("push", body)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))

			logs, err := store.ListErrorLogs(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].EventType).To(Equal("push"))
			Expect(logs[0].DeliveryID).To(Equal("delivery-1"))
			Expect(logs[0].UserAgent).To(Equal("GitHub-Hookshot/test"))
			Expect(logs[0].RepositoryID).To(Equal(repo.ID))
		})

		It("answers 500 once when a handler panics", func() {
			build(panickingHandler{})
			body := payload(map[string]any{"action": "opened", "issue": map[string]any{"number": 1}})
			rec, resp := post("issues", body)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(resp.Message).To(Equal("Internal server error"))

			logs, err := store.ListErrorLogs(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].Action).To(Equal("opened"))
			Expect(logs[0].Message).To(ContainSubstring("handler exploded"))
		})
	})

	Describe("operational endpoints", func() {
		It("reports health", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"status":"ok"`))
		})

		It("lists message counts per server", func() {
			Expect(store.IncrementMessagesSent(ctx, server.ID, 3)).To(Succeed())

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/message-counts", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var counts []storage.MessageCount
			Expect(json.Unmarshal(rec.Body.Bytes(), &counts)).To(Succeed())
			Expect(counts).To(ConsistOf(storage.MessageCount{GuildID: "guild-1", MessagesSent: 3}))
		})
	})
})
