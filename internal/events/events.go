// Package events turns validated GitHub webhook events into chat deliveries.
package events

import (
	"context"
	"net/http"

	"github.com/user/gitcord/internal/chat"
	"github.com/user/gitcord/internal/notifier"
	"github.com/user/gitcord/internal/routing"
	"github.com/user/gitcord/internal/storage"
)

// supported lists the X-GitHub-Event values with a handler.
var supported = map[string]bool{
	"ping":                        true,
	"push":                        true,
	"pull_request":                true,
	"issues":                      true,
	"issue_comment":               true,
	"pull_request_review":         true,
	"pull_request_review_comment": true,
	"release":                     true,
	"star":                        true,
	"fork":                        true,
	"create":                      true,
	"delete":                      true,
	"milestone":                   true,
	"workflow_run":                true,
	"workflow_job":                true,
	"check_run":                   true,
	"check_suite":                 true,
}

// Supported reports whether eventType has a handler.
func Supported(eventType string) bool {
	return supported[eventType]
}

// Event is a parsed and authenticated webhook delivery.
type Event struct {
	Type       string
	DeliveryID string
	// Payload is the typed go-github event returned by github.ParseWebHook.
	Payload    any
	RepoName   string
	Repository storage.RepositoryWithServer
}

// Outcome is the result of handling one event.
type Outcome struct {
	StatusCode int
	Message    string
	Deliveries []chat.MessageHandle
}

// ChannelID returns the channel of the first delivery, or nil.
func (o Outcome) ChannelID() *string {
	if len(o.Deliveries) == 0 {
		return nil
	}
	return &o.Deliveries[0].ChannelID
}

// MessageID returns the message of the first delivery, or nil.
func (o Outcome) MessageID() *string {
	if len(o.Deliveries) == 0 {
		return nil
	}
	return &o.Deliveries[0].ID
}

func ack(message string) Outcome {
	return Outcome{StatusCode: http.StatusOK, Message: message}
}

// BranchStore lists tracked branches of a repository.
type BranchStore interface {
	ListTrackedBranches(ctx context.Context, repositoryID int64) ([]storage.TrackedBranch, error)
}

// Router resolves routing for non-branch events.
type Router interface {
	Resolve(ctx context.Context, repositoryID int64, eventType, fallbackChannelID string) routing.Routing
}

// Deliverer sends one message to one channel.
type Deliverer interface {
	Deliver(ctx context.Context, target notifier.Target, msg chat.Message) (*chat.MessageHandle, error)
}
