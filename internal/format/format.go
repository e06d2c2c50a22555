// Package format turns GitHub webhook events into chat messages.
package format

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/user/gitcord/internal/chat"
)

// MaxPushCommits is the number of commits listed in a push notification.
const MaxPushCommits = 5

const (
	maxBody   = 300
	maxCommit = 72
)

// Push formats a push to branch. The title depends on the push shape:
// branch creation without commits, force push, regular push or an empty push.
func Push(repo, branch string, e *github.PushEvent) chat.Message {
	msg := chat.Message{
		URL:   e.GetCompare(),
		Color: chat.ColorBlue,
	}
	withSender(&msg, e.GetSender())

	commits := e.Commits
	switch {
	case e.GetCreated() && len(commits) == 0:
		msg.Title = fmt.Sprintf("[%s] New branch created: %s", repo, branch)
		msg.Color = chat.ColorGreen
		if head := e.GetHeadCommit(); head != nil {
			msg.Description = fmt.Sprintf("Branch created at `%s`", shortSHA(head.GetID()))
		}
		return msg
	case e.GetForced():
		msg.Title = fmt.Sprintf("[%s:%s] Force pushed", repo, branch)
		msg.Color = chat.ColorRed
		msg.Description = fmt.Sprintf("`%s` → `%s`", shortSHA(e.GetBefore()), shortSHA(e.GetAfter()))
		if len(commits) > 0 {
			msg.Description += "\n" + commitList(commits)
		}
		return msg
	case len(commits) == 0:
		msg.Title = fmt.Sprintf("[%s:%s] Push without new commits", repo, branch)
		msg.Color = chat.ColorGray
		return msg
	}

	word := "commit"
	if len(commits) > 1 {
		word = "commits"
	}
	if e.GetCreated() {
		msg.Title = fmt.Sprintf("[%s] New branch %s with %d %s", repo, branch, len(commits), word)
	} else {
		msg.Title = fmt.Sprintf("[%s:%s] %d new %s", repo, branch, len(commits), word)
	}
	msg.Description = commitList(commits)
	return msg
}

func commitList(commits []*github.HeadCommit) string {
	var b strings.Builder
	shown := min(len(commits), MaxPushCommits)
	for _, c := range commits[:shown] {
		fmt.Fprintf(&b, "[`%s`](%s) %s - %s\n",
			shortSHA(c.GetID()), c.GetURL(),
			truncate(firstLine(c.GetMessage()), maxCommit),
			c.GetAuthor().GetName())
	}
	if extra := len(commits) - shown; extra > 0 {
		fmt.Fprintf(&b, "...and %d more %s", extra, plural(extra, "commit", "commits"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// PullRequest formats a pull request event.
func PullRequest(repo string, e *github.PullRequestEvent) chat.Message {
	pr := e.GetPullRequest()
	action := e.GetAction()
	msg := chat.Message{
		URL:   pr.GetHTMLURL(),
		Color: chat.ColorGreen,
	}
	withSender(&msg, e.GetSender())

	verb := strings.ReplaceAll(action, "_", " ")
	switch action {
	case "opened":
		msg.Description = truncate(pr.GetBody(), maxBody)
	case "closed":
		if pr.GetMerged() {
			verb = "merged"
			msg.Color = chat.ColorPurple
		} else {
			msg.Color = chat.ColorRed
		}
	case "reopened":
		msg.Color = chat.ColorGreen
	case "synchronize":
		verb = "updated"
		msg.Color = chat.ColorBlue
	case "labeled", "unlabeled":
		msg.Color = chat.ColorYellow
		msg.Fields = append(msg.Fields, chat.Field{Name: "Label", Value: e.GetLabel().GetName(), Inline: true})
	case "review_requested":
		msg.Color = chat.ColorYellow
		msg.Fields = append(msg.Fields, chat.Field{Name: "Reviewer", Value: e.GetRequestedReviewer().GetLogin(), Inline: true})
	case "assigned", "unassigned":
		msg.Color = chat.ColorYellow
		msg.Fields = append(msg.Fields, chat.Field{Name: "Assignee", Value: e.GetAssignee().GetLogin(), Inline: true})
	default:
		msg.Color = chat.ColorGray
	}

	msg.Title = fmt.Sprintf("[%s] Pull request %s: #%d %s", repo, verb, pr.GetNumber(), pr.GetTitle())
	msg.Fields = append(msg.Fields, chat.Field{
		Name:   "Branches",
		Value:  fmt.Sprintf("`%s` → `%s`", pr.GetHead().GetRef(), pr.GetBase().GetRef()),
		Inline: true,
	})
	if pr.GetCommits() > 0 {
		msg.Fields = append(msg.Fields, chat.Field{
			Name:   "Changes",
			Value:  fmt.Sprintf("%d %s, +%d/-%d", pr.GetCommits(), plural(pr.GetCommits(), "commit", "commits"), pr.GetAdditions(), pr.GetDeletions()),
			Inline: true,
		})
	}
	return msg
}

// Issue formats an issues event.
func Issue(repo string, e *github.IssuesEvent) chat.Message {
	issue := e.GetIssue()
	action := e.GetAction()
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] Issue %s: #%d %s", repo, strings.ReplaceAll(action, "_", " "), issue.GetNumber(), issue.GetTitle()),
		URL:   issue.GetHTMLURL(),
		Color: chat.ColorGray,
	}
	withSender(&msg, e.GetSender())

	switch action {
	case "opened":
		msg.Color = chat.ColorGreen
		msg.Description = truncate(issue.GetBody(), maxBody)
	case "closed":
		msg.Color = chat.ColorRed
	case "reopened":
		msg.Color = chat.ColorGreen
	case "labeled", "unlabeled":
		msg.Color = chat.ColorYellow
		msg.Fields = append(msg.Fields, chat.Field{Name: "Label", Value: e.GetLabel().GetName(), Inline: true})
	case "assigned", "unassigned":
		msg.Color = chat.ColorYellow
		msg.Fields = append(msg.Fields, chat.Field{Name: "Assignee", Value: e.GetAssignee().GetLogin(), Inline: true})
	}

	if labels := labelNames(issue.Labels); labels != "" && action == "opened" {
		msg.Fields = append(msg.Fields, chat.Field{Name: "Labels", Value: labels, Inline: true})
	}
	return msg
}

// IssueComment formats a comment on an issue or pull request.
func IssueComment(repo string, e *github.IssueCommentEvent) chat.Message {
	issue := e.GetIssue()
	kind := "issue"
	if issue.IsPullRequest() {
		kind = "pull request"
	}
	msg := chat.Message{
		Title:       fmt.Sprintf("[%s] New comment on %s #%d: %s", repo, kind, issue.GetNumber(), issue.GetTitle()),
		URL:         e.GetComment().GetHTMLURL(),
		Description: truncate(e.GetComment().GetBody(), maxBody),
		Color:       chat.ColorBlue,
	}
	withSender(&msg, e.GetComment().GetUser())
	return msg
}

// Review formats a submitted pull request review.
func Review(repo string, e *github.PullRequestReviewEvent) chat.Message {
	review := e.GetReview()
	pr := e.GetPullRequest()
	msg := chat.Message{
		URL:         review.GetHTMLURL(),
		Description: truncate(review.GetBody(), maxBody),
		Color:       chat.ColorBlue,
	}
	withSender(&msg, review.GetUser())

	state := strings.ToLower(review.GetState())
	switch state {
	case "approved":
		msg.Title = fmt.Sprintf("[%s] Pull request #%d approved: %s", repo, pr.GetNumber(), pr.GetTitle())
		msg.Color = chat.ColorGreen
	case "changes_requested":
		msg.Title = fmt.Sprintf("[%s] Changes requested on #%d: %s", repo, pr.GetNumber(), pr.GetTitle())
		msg.Color = chat.ColorRed
	default:
		msg.Title = fmt.Sprintf("[%s] Review on #%d: %s", repo, pr.GetNumber(), pr.GetTitle())
	}
	return msg
}

// ReviewComment formats an inline pull request review comment.
func ReviewComment(repo string, e *github.PullRequestReviewCommentEvent) chat.Message {
	comment := e.GetComment()
	pr := e.GetPullRequest()
	msg := chat.Message{
		Title:       fmt.Sprintf("[%s] New review comment on #%d: %s", repo, pr.GetNumber(), pr.GetTitle()),
		URL:         comment.GetHTMLURL(),
		Description: truncate(comment.GetBody(), maxBody),
		Color:       chat.ColorBlue,
	}
	if path := comment.GetPath(); path != "" {
		msg.Fields = append(msg.Fields, chat.Field{Name: "File", Value: "`" + path + "`"})
	}
	withSender(&msg, comment.GetUser())
	return msg
}

// Release formats a published release.
func Release(repo string, e *github.ReleaseEvent) chat.Message {
	rel := e.GetRelease()
	name := rel.GetName()
	if name == "" {
		name = rel.GetTagName()
	}
	msg := chat.Message{
		Title:       fmt.Sprintf("[%s] New release: %s", repo, name),
		URL:         rel.GetHTMLURL(),
		Description: truncate(rel.GetBody(), maxBody),
		Color:       chat.ColorGreen,
		Fields:      []chat.Field{{Name: "Tag", Value: "`" + rel.GetTagName() + "`", Inline: true}},
	}
	if rel.GetPrerelease() {
		msg.Title = fmt.Sprintf("[%s] New pre-release: %s", repo, name)
		msg.Color = chat.ColorOrange
	}
	withSender(&msg, rel.GetAuthor())
	return msg
}

// Star formats a new star.
func Star(repo string, e *github.StarEvent) chat.Message {
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] New star", repo),
		URL:   e.GetRepo().GetHTMLURL(),
		Color: chat.ColorYellow,
	}
	if count := e.GetRepo().GetStargazersCount(); count > 0 {
		msg.Description = fmt.Sprintf("The repository now has %d %s.", count, plural(count, "star", "stars"))
	}
	withSender(&msg, e.GetSender())
	return msg
}

// Fork formats a new fork.
func Fork(repo string, e *github.ForkEvent) chat.Message {
	forkee := e.GetForkee()
	msg := chat.Message{
		Title:       fmt.Sprintf("[%s] Forked to %s", repo, forkee.GetFullName()),
		URL:         forkee.GetHTMLURL(),
		Description: fmt.Sprintf("%s created a fork.", e.GetSender().GetLogin()),
		Color:       chat.ColorGray,
	}
	withSender(&msg, e.GetSender())
	return msg
}

// Create formats branch or tag creation.
func Create(repo string, e *github.CreateEvent) chat.Message {
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] New %s created: %s", repo, e.GetRefType(), e.GetRef()),
		Color: chat.ColorGreen,
	}
	withSender(&msg, e.GetSender())
	return msg
}

// Delete formats branch or tag deletion.
func Delete(repo string, e *github.DeleteEvent) chat.Message {
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] %s deleted: %s", repo, capitalize(e.GetRefType()), e.GetRef()),
		Color: chat.ColorRed,
	}
	withSender(&msg, e.GetSender())
	return msg
}

// MilestoneCompletion returns the percentage of closed issues, and false
// when the milestone has no issues.
func MilestoneCompletion(open, closed int) (int, bool) {
	total := open + closed
	if total <= 0 {
		return 0, false
	}
	return closed * 100 / total, true
}

// Milestone formats a milestone event.
func Milestone(repo string, e *github.MilestoneEvent) chat.Message {
	m := e.GetMilestone()
	msg := chat.Message{
		Title:       fmt.Sprintf("[%s] Milestone %s: %s", repo, e.GetAction(), m.GetTitle()),
		URL:         m.GetHTMLURL(),
		Description: truncate(m.GetDescription(), maxBody),
		Color:       chat.ColorBlue,
	}
	if e.GetAction() == "closed" {
		msg.Color = chat.ColorPurple
	}
	if pct, ok := MilestoneCompletion(m.GetOpenIssues(), m.GetClosedIssues()); ok {
		msg.Fields = append(msg.Fields, chat.Field{
			Name:   "Progress",
			Value:  fmt.Sprintf("%d%% complete (%d open, %d closed)", pct, m.GetOpenIssues(), m.GetClosedIssues()),
			Inline: true,
		})
	}
	withSender(&msg, e.GetSender())
	return msg
}

// WorkflowRun formats a workflow run.
func WorkflowRun(repo string, e *github.WorkflowRunEvent) chat.Message {
	run := e.GetWorkflowRun()
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] Workflow %s #%d %s", repo, run.GetName(), run.GetRunNumber(), statusWord(e.GetAction(), run.GetConclusion())),
		URL:   run.GetHTMLURL(),
		Color: conclusionColor(run.GetConclusion()),
		Fields: []chat.Field{
			{Name: "Branch", Value: "`" + run.GetHeadBranch() + "`", Inline: true},
			{Name: "Commit", Value: "`" + shortSHA(run.GetHeadSHA()) + "`", Inline: true},
		},
	}
	if ev := run.GetEvent(); ev != "" {
		msg.Fields = append(msg.Fields, chat.Field{Name: "Trigger", Value: ev, Inline: true})
	}
	withSender(&msg, e.GetSender())
	return msg
}

// WorkflowJob formats a workflow job.
func WorkflowJob(repo string, e *github.WorkflowJobEvent) chat.Message {
	job := e.GetWorkflowJob()
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] Job %s %s", repo, job.GetName(), statusWord(e.GetAction(), job.GetConclusion())),
		URL:   job.GetHTMLURL(),
		Color: conclusionColor(job.GetConclusion()),
		Fields: []chat.Field{
			{Name: "Commit", Value: "`" + shortSHA(job.GetHeadSHA()) + "`", Inline: true},
		},
	}
	withSender(&msg, e.GetSender())
	return msg
}

// CheckRun formats a check run.
func CheckRun(repo string, e *github.CheckRunEvent) chat.Message {
	run := e.GetCheckRun()
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] Check %s %s", repo, run.GetName(), statusWord(e.GetAction(), run.GetConclusion())),
		URL:   run.GetHTMLURL(),
		Color: conclusionColor(run.GetConclusion()),
	}
	if b := run.GetCheckSuite().GetHeadBranch(); b != "" {
		msg.Fields = append(msg.Fields, chat.Field{Name: "Branch", Value: "`" + b + "`", Inline: true})
	}
	msg.Fields = append(msg.Fields, chat.Field{Name: "Commit", Value: "`" + shortSHA(run.GetHeadSHA()) + "`", Inline: true})
	withSender(&msg, e.GetSender())
	return msg
}

// CheckSuite formats a check suite.
func CheckSuite(repo string, e *github.CheckSuiteEvent) chat.Message {
	suite := e.GetCheckSuite()
	name := suite.GetApp().GetName()
	if name == "" {
		name = "suite"
	}
	msg := chat.Message{
		Title: fmt.Sprintf("[%s] Check suite %s %s", repo, name, statusWord(e.GetAction(), suite.GetConclusion())),
		Color: conclusionColor(suite.GetConclusion()),
		Fields: []chat.Field{
			{Name: "Branch", Value: "`" + suite.GetHeadBranch() + "`", Inline: true},
			{Name: "Commit", Value: "`" + shortSHA(suite.GetHeadSHA()) + "`", Inline: true},
		},
	}
	withSender(&msg, e.GetSender())
	return msg
}

// Ping confirms a newly configured webhook.
func Ping(repo string, e *github.PingEvent) chat.Message {
	msg := chat.Message{
		Title:       fmt.Sprintf("[%s] Webhook connected", repo),
		Description: "GitHub can now deliver events for this repository.",
		Color:       chat.ColorGreen,
	}
	if zen := e.GetZen(); zen != "" {
		msg.Footer = zen
	}
	return msg
}

// BranchGuide explains how to start receiving push notifications.
func BranchGuide(repo string) chat.Message {
	return chat.Message{
		Title: "Next step: link branches",
		Description: fmt.Sprintf("Push notifications for %s are only sent for tracked branches. "+
			"Track `*` for every branch, an exact name such as `main`, a prefix such as `release/*`, "+
			"or exclude branches with `!` (for example `!dependabot/*`).", repo),
		Color: chat.ColorBlue,
	}
}

// ContentTypeNotice asks the repository owner to fix the webhook content type.
func ContentTypeNotice(repo string) chat.Message {
	return chat.Message{
		Title: fmt.Sprintf("[%s] Webhook misconfigured", repo),
		Description: "GitHub is sending `application/x-www-form-urlencoded` payloads. " +
			"Edit the webhook in the repository settings and set *Content type* to `application/json`.",
		Color: chat.ColorRed,
	}
}

func withSender(msg *chat.Message, u *github.User) {
	if u == nil {
		return
	}
	msg.AuthorName = u.GetLogin()
	msg.AuthorIcon = u.GetAvatarURL()
	msg.AuthorURL = u.GetHTMLURL()
}

func statusWord(action, conclusion string) string {
	if action == "completed" && conclusion != "" {
		return strings.ReplaceAll(conclusion, "_", " ")
	}
	return strings.ReplaceAll(action, "_", " ")
}

func conclusionColor(conclusion string) int {
	switch conclusion {
	case "success":
		return chat.ColorGreen
	case "failure", "timed_out", "startup_failure":
		return chat.ColorRed
	case "cancelled", "skipped", "neutral", "stale":
		return chat.ColorGray
	case "action_required":
		return chat.ColorOrange
	default:
		return chat.ColorYellow
	}
}

func labelNames(labels []*github.Label) string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return strings.Join(names, ", ")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
