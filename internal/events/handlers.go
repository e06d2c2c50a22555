package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/user/gitcord/internal/branch"
	"github.com/user/gitcord/internal/chat"
	"github.com/user/gitcord/internal/format"
	"github.com/user/gitcord/internal/notifier"
	"github.com/user/gitcord/internal/routing"
	"github.com/user/gitcord/pkg/logger"
)

// Handlers dispatches events to their per-type handler.
type Handlers struct {
	branches BranchStore
	router   Router
	notifier Deliverer
}

// NewHandlers creates a new handler set.
func NewHandlers(branches BranchStore, router Router, deliverer Deliverer) *Handlers {
	return &Handlers{branches: branches, router: router, notifier: deliverer}
}

// Handle processes ev. It never fails: delivery problems yield a 200
// outcome without deliveries.
func (h *Handlers) Handle(ctx context.Context, ev *Event) Outcome {
	switch e := ev.Payload.(type) {
	case *github.PingEvent:
		return h.handlePing(ctx, ev, e)
	case *github.PushEvent:
		return h.handlePush(ctx, ev, e)
	case *github.PullRequestEvent:
		return h.routed(ctx, ev, "pull_request", e.GetAction(), format.PullRequest(ev.RepoName, e))
	case *github.IssuesEvent:
		return h.routed(ctx, ev, "issues", e.GetAction(), format.Issue(ev.RepoName, e))
	case *github.IssueCommentEvent:
		eventType := "issues"
		if e.GetIssue().IsPullRequest() {
			eventType = "pull_request"
		}
		return h.comment(ctx, ev, eventType, e.GetAction(), "created", format.IssueComment(ev.RepoName, e))
	case *github.PullRequestReviewEvent:
		return h.comment(ctx, ev, "pull_request", e.GetAction(), "submitted", format.Review(ev.RepoName, e))
	case *github.PullRequestReviewCommentEvent:
		return h.comment(ctx, ev, "pull_request", e.GetAction(), "created", format.ReviewComment(ev.RepoName, e))
	case *github.ReleaseEvent:
		action := e.GetAction()
		if action != "published" && action != "released" {
			return ack("Release action ignored")
		}
		return h.routed(ctx, ev, "release", "published", format.Release(ev.RepoName, e))
	case *github.StarEvent:
		if e.GetAction() != "created" {
			return ack("Star removal ignored")
		}
		return h.routed(ctx, ev, "star", "created", format.Star(ev.RepoName, e))
	case *github.ForkEvent:
		return h.routed(ctx, ev, "fork", "created", format.Fork(ev.RepoName, e))
	case *github.CreateEvent:
		return h.routed(ctx, ev, "create", "created", format.Create(ev.RepoName, e))
	case *github.DeleteEvent:
		return h.routed(ctx, ev, "delete", "deleted", format.Delete(ev.RepoName, e))
	case *github.MilestoneEvent:
		switch e.GetAction() {
		case "created", "opened", "closed":
			return h.routed(ctx, ev, "milestone", e.GetAction(), format.Milestone(ev.RepoName, e))
		}
		return ack("Milestone action ignored")
	case *github.WorkflowRunEvent:
		return h.branchRouted(ctx, ev, "workflow_run", e.GetAction(), e.GetWorkflowRun().GetHeadBranch(), format.WorkflowRun(ev.RepoName, e))
	case *github.WorkflowJobEvent:
		return h.routed(ctx, ev, "workflow_job", e.GetAction(), format.WorkflowJob(ev.RepoName, e))
	case *github.CheckRunEvent:
		return h.branchRouted(ctx, ev, "check_run", e.GetAction(), e.GetCheckRun().GetCheckSuite().GetHeadBranch(), format.CheckRun(ev.RepoName, e))
	case *github.CheckSuiteEvent:
		return h.routed(ctx, ev, "check_suite", e.GetAction(), format.CheckSuite(ev.RepoName, e))
	default:
		return ack(fmt.Sprintf("Event %s not handled", ev.Type))
	}
}

func (h *Handlers) handlePing(ctx context.Context, ev *Event, e *github.PingEvent) Outcome {
	r := h.router.Resolve(ctx, ev.Repository.ID, "ping", ev.Repository.ChannelID)
	if !r.Deliverable() {
		return ack("Webhook verified, no channel configured")
	}
	out := ack("Webhook verified")
	for _, msg := range []chat.Message{format.Ping(ev.RepoName, e), format.BranchGuide(ev.RepoName)} {
		h.deliver(ctx, ev, notifier.Target{
			ServerID:       ev.Repository.ServerID,
			ChannelID:      r.ChannelID,
			SkipLimitCheck: true,
		}, msg, &out)
	}
	return out
}

func (h *Handlers) handlePush(ctx context.Context, ev *Event, e *github.PushEvent) Outcome {
	name, ok := strings.CutPrefix(e.GetRef(), "refs/heads/")
	if !ok {
		return ack("Not a branch push")
	}
	if e.GetDeleted() {
		return ack("Branch deletion acknowledged")
	}

	tracked, err := h.branches.ListTrackedBranches(ctx, ev.Repository.ID)
	if err != nil {
		logger.Error().Err(err).Int64("repository_id", ev.Repository.ID).Msg("Failed to list tracked branches")
		return ack("Tracked branches unavailable")
	}
	matches := branch.FindMatching(tracked, name)
	if len(matches) == 0 {
		return ack(fmt.Sprintf("Branch %s is not tracked", name))
	}

	msg := format.Push(ev.RepoName, name, e)
	out := ack("Push processed")
	for _, tb := range matches {
		channel := tb.ChannelID
		if channel == "" {
			channel = ev.Repository.ChannelID
		}
		h.deliver(ctx, ev, notifier.Target{ServerID: ev.Repository.ServerID, ChannelID: channel}, msg, &out)
	}
	return out
}

// routed delivers msg to the routed channel of eventType when action is enabled.
func (h *Handlers) routed(ctx context.Context, ev *Event, eventType, action string, msg chat.Message) Outcome {
	r := h.router.Resolve(ctx, ev.Repository.ID, eventType, ev.Repository.ChannelID)
	if !r.Enabled(eventType, action) {
		return ack(fmt.Sprintf("Action %s disabled for %s", action, eventType))
	}
	out := ack(fmt.Sprintf("%s processed", eventType))
	h.deliver(ctx, ev, notifier.Target{ServerID: ev.Repository.ServerID, ChannelID: r.ChannelID}, msg, &out)
	return out
}

// comment delivers comment-like events. Comments are opt-in through the
// "comments" key of the parent event type.
func (h *Handlers) comment(ctx context.Context, ev *Event, eventType, action, want string, msg chat.Message) Outcome {
	if action != want {
		return ack(fmt.Sprintf("Comment action %s ignored", action))
	}
	return h.routed(ctx, ev, eventType, "comments", msg)
}

// branchRouted fans msg out to tracked branches matching headBranch and
// falls back to the routed channel when none match. A matched branch
// without its own channel uses the repository default, as pushes do.
func (h *Handlers) branchRouted(ctx context.Context, ev *Event, eventType, action, headBranch string, msg chat.Message) Outcome {
	r := h.router.Resolve(ctx, ev.Repository.ID, eventType, ev.Repository.ChannelID)
	if !r.Enabled(eventType, action) {
		return ack(fmt.Sprintf("Action %s disabled for %s", action, eventType))
	}

	var channels []string
	if headBranch != "" {
		tracked, err := h.branches.ListTrackedBranches(ctx, ev.Repository.ID)
		if err != nil {
			logger.Warn().Err(err).Int64("repository_id", ev.Repository.ID).Msg("Failed to list tracked branches")
		}
		for _, tb := range branch.FindMatching(tracked, headBranch) {
			channel := tb.ChannelID
			if channel == "" {
				channel = ev.Repository.ChannelID
			}
			channels = append(channels, channel)
		}
	}
	if len(channels) == 0 {
		channels = []string{r.ChannelID}
	}

	out := ack(fmt.Sprintf("%s processed", eventType))
	for _, channel := range channels {
		h.deliver(ctx, ev, notifier.Target{ServerID: ev.Repository.ServerID, ChannelID: channel}, msg, &out)
	}
	return out
}

func (h *Handlers) deliver(ctx context.Context, ev *Event, target notifier.Target, msg chat.Message, out *Outcome) {
	handle, err := h.notifier.Deliver(ctx, target, msg)
	if err != nil {
		logger.Debug().
			Err(err).
			Str("event", ev.Type).
			Str("delivery_id", ev.DeliveryID).
			Str("channel_id", target.ChannelID).
			Msg("Notification not delivered")
		return
	}
	out.Deliveries = append(out.Deliveries, *handle)
}

var _ Router = (*routing.Resolver)(nil)
