// Package webhook authenticates GitHub webhook deliveries and dispatches
// them to the event handlers.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/user/gitcord/internal/chat"
	"github.com/user/gitcord/internal/events"
	"github.com/user/gitcord/internal/format"
	"github.com/user/gitcord/internal/notifier"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

const signatureHeader = "X-Hub-Signature-256"

// Store is the subset of the persistent store the dispatcher uses.
type Store interface {
	FindRepositoriesByURL(ctx context.Context, url string) ([]storage.RepositoryWithServer, error)
	InsertErrorLog(ctx context.Context, e storage.ErrorLog) error
	InsertSystemLog(ctx context.Context, l storage.SystemLog) error
	InsertPerformance(ctx context.Context, p storage.Performance) error
}

// EventHandler handles an authenticated event.
type EventHandler interface {
	Handle(ctx context.Context, ev *events.Event) events.Outcome
}

// Deliverer sends diagnostic notices to repository channels.
type Deliverer interface {
	Deliver(ctx context.Context, target notifier.Target, msg chat.Message) (*chat.MessageHandle, error)
}

// Options configures the webhook handler.
type Options struct {
	// GlobalSecret is used for repositories without their own secret.
	GlobalSecret string
	MaxBodyBytes int64
}

// Handler serves POST /github-webhook.
type Handler struct {
	store    Store
	events   EventHandler
	notifier Deliverer
	opts     Options
}

// NewHandler creates a new webhook handler.
func NewHandler(store Store, handler EventHandler, deliverer Deliverer, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	return &Handler{store: store, events: handler, notifier: deliverer, opts: opts}
}

// envelope holds the fields shared by every webhook payload.
type envelope struct {
	Action     string `json:"action"`
	Repository struct {
		HTMLURL  string `json:"html_url"`
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// delivery carries one request through the pipeline.
type delivery struct {
	state      State
	started    time.Time
	body       []byte
	eventType  string
	deliveryID string
	envelope   envelope
	candidates []storage.RepositoryWithServer
	repo       *storage.RepositoryWithServer
}

// Response is the JSON body written for every webhook request.
type Response struct {
	Message    string               `json:"message"`
	ChannelID  *string              `json:"channelId"`
	MessageID  *string              `json:"messageId"`
	Deliveries []chat.MessageHandle `json:"deliveries,omitempty"`
}

// responder writes at most one response.
type responder struct {
	once sync.Once
	w    http.ResponseWriter
}

func (r *responder) write(status int, body Response) {
	r.once.Do(func() {
		r.w.Header().Set("Content-Type", "application/json")
		r.w.WriteHeader(status)
		if err := json.NewEncoder(r.w).Encode(body); err != nil {
			logger.Debug().Err(err).Msg("Failed to write webhook response")
		}
	})
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d := &delivery{
		state:      StateReceived,
		started:    time.Now(),
		eventType:  github.WebHookType(r),
		deliveryID: github.DeliveryID(r),
	}
	resp := &responder{w: w}
	ctx := r.Context()
	log := logger.With("delivery_id", d.deliveryID, "event", d.eventType)

	defer h.recordPerformance(ctx, d)
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			h.recordError(ctx, r, d, err)
			resp.write(http.StatusInternalServerError, Response{Message: "Internal server error"})
			d.state = StateResponded
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read webhook body")
		resp.write(http.StatusBadRequest, Response{Message: "Failed to read body"})
		d.state = StateResponded
		return
	}
	d.body = body

	outcome, err := h.process(ctx, r, d)
	if err != nil {
		var rej *Rejection
		if !errors.As(err, &rej) {
			h.recordError(ctx, r, d, err)
			rej = reject(http.StatusInternalServerError, "Internal server error")
		}
		log.Warn().
			Str("state", d.state.String()).
			Int("status", rej.Status).
			Msg(rej.Reason)
		resp.write(rej.Status, Response{Message: rej.Reason})
		d.state = StateResponded
		return
	}

	log.Info().
		Str("action", d.envelope.Action).
		Str("repo", d.envelope.Repository.FullName).
		Int("deliveries", len(outcome.Deliveries)).
		Msg(outcome.Message)
	resp.write(outcome.StatusCode, Response{
		Message:    outcome.Message,
		ChannelID:  outcome.ChannelID(),
		MessageID:  outcome.MessageID(),
		Deliveries: outcome.Deliveries,
	})
	d.state = StateResponded
}

// process runs every stage in order. Each stage either advances d.state
// or returns a *Rejection.
func (h *Handler) process(ctx context.Context, r *http.Request, d *delivery) (events.Outcome, error) {
	stages := []func(context.Context, *http.Request, *delivery) error{
		h.checkContentType,
		h.parsePayload,
		h.matchRepository,
		h.validateSignature,
	}
	for _, stage := range stages {
		if err := stage(ctx, r, d); err != nil {
			return events.Outcome{}, err
		}
	}
	return h.dispatch(ctx, d)
}

func (h *Handler) checkContentType(ctx context.Context, r *http.Request, d *delivery) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		d.state = StateContentTypeChecked
		return nil
	case "application/x-www-form-urlencoded":
		h.noticeContentType(ctx, r, d)
	}
	return reject(http.StatusBadRequest, "Content-Type must be application/json")
}

// noticeContentType tells the repository channel to fix the webhook
// content type. It only posts when the form body carries a repository the
// request is signed for.
func (h *Handler) noticeContentType(ctx context.Context, r *http.Request, d *delivery) {
	form, err := url.ParseQuery(string(d.body))
	if err != nil {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(form.Get("payload")), &env); err != nil || env.Repository.HTMLURL == "" {
		return
	}
	candidates, err := h.store.FindRepositoriesByURL(ctx, env.Repository.HTMLURL)
	if err != nil || len(candidates) == 0 {
		return
	}
	repo, ok := matchSignature(candidates, h.opts.GlobalSecret, r.Header.Get(signatureHeader), d.body)
	if !ok {
		return
	}

	name := env.Repository.FullName
	if name == "" {
		name = repo.URL
	}
	if _, err := h.notifier.Deliver(ctx, notifier.Target{
		ServerID:  repo.ServerID,
		ChannelID: repo.ChannelID,
	}, format.ContentTypeNotice(name)); err != nil {
		logger.Debug().Err(err).Str("repo", name).Msg("Content type notice not delivered")
	}
}

func (h *Handler) parsePayload(_ context.Context, _ *http.Request, d *delivery) error {
	if err := json.Unmarshal(d.body, &d.envelope); err != nil {
		return reject(http.StatusBadRequest, "Invalid JSON payload")
	}
	if d.envelope.Repository.HTMLURL == "" {
		return reject(http.StatusBadRequest, "Missing repository.html_url")
	}
	d.state = StatePayloadParsed
	return nil
}

func (h *Handler) matchRepository(ctx context.Context, _ *http.Request, d *delivery) error {
	candidates, err := h.store.FindRepositoriesByURL(ctx, d.envelope.Repository.HTMLURL)
	if err != nil {
		return fmt.Errorf("failed to look up repository: %w", err)
	}
	if len(candidates) == 0 {
		return reject(http.StatusNotFound, "Repository not configured")
	}
	d.candidates = candidates
	d.state = StateRepositoryMatched
	return nil
}

func (h *Handler) validateSignature(_ context.Context, r *http.Request, d *delivery) error {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return reject(http.StatusUnauthorized, "Missing signature")
	}
	repo, ok := matchSignature(d.candidates, h.opts.GlobalSecret, signature, d.body)
	if !ok {
		return reject(http.StatusUnauthorized, "Invalid signature")
	}
	d.repo = repo
	d.state = StateSignatureValidated
	return nil
}

func (h *Handler) dispatch(ctx context.Context, d *delivery) (events.Outcome, error) {
	if d.eventType == "" {
		return events.Outcome{}, reject(http.StatusBadRequest, "Missing X-GitHub-Event header")
	}

	if !events.Supported(d.eventType) {
		if err := h.store.InsertSystemLog(ctx, storage.SystemLog{
			Level:        "info",
			Message:      fmt.Sprintf("Unhandled event type %s", d.eventType),
			ServerID:     d.repo.ServerID,
			RepositoryID: d.repo.ID,
			Details:      d.deliveryID,
		}); err != nil {
			logger.Warn().Err(err).Msg("Failed to write system log")
		}
		d.state = StateEventDispatched
		return events.Outcome{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("Event %s acknowledged", d.eventType),
		}, nil
	}

	payload, err := github.ParseWebHook(d.eventType, d.body)
	if err != nil {
		return events.Outcome{}, fmt.Errorf("failed to parse %s payload: %w", d.eventType, err)
	}

	name := d.envelope.Repository.FullName
	if name == "" {
		name = d.repo.URL
	}
	outcome := h.events.Handle(ctx, &events.Event{
		Type:       d.eventType,
		DeliveryID: d.deliveryID,
		Payload:    payload,
		RepoName:   name,
		Repository: *d.repo,
	})
	d.state = StateEventDispatched
	return outcome, nil
}

func (h *Handler) recordError(ctx context.Context, r *http.Request, d *delivery, err error) {
	entry := storage.ErrorLog{
		EventType:    d.eventType,
		Action:       d.envelope.Action,
		Message:      err.Error(),
		ProcessingMs: time.Since(d.started).Milliseconds(),
		UserAgent:    r.UserAgent(),
		SourceIP:     sourceIP(r),
		DeliveryID:   d.deliveryID,
	}
	if d.repo != nil {
		entry.ServerID = d.repo.ServerID
		entry.RepositoryID = d.repo.ID
	}

	logger.Error().
		Err(err).
		Str("state", d.state.String()).
		Str("event", entry.EventType).
		Str("action", entry.Action).
		Str("delivery_id", entry.DeliveryID).
		Str("source_ip", entry.SourceIP).
		Msg("Webhook processing failed")

	if err := h.store.InsertErrorLog(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to write error log")
	}
}

func (h *Handler) recordPerformance(ctx context.Context, d *delivery) {
	operation := "webhook.unknown"
	if d.eventType != "" {
		operation = "webhook." + d.eventType
	}
	p := storage.Performance{
		Operation:  operation,
		DurationMs: time.Since(d.started).Milliseconds(),
	}
	if d.repo != nil {
		p.ServerID = d.repo.ServerID
		p.RepositoryID = d.repo.ID
	}
	if err := h.store.InsertPerformance(context.WithoutCancel(ctx), p); err != nil {
		logger.Debug().Err(err).Msg("Failed to write performance record")
	}
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
