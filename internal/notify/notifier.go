// Package notify fans issue events out to the operations channel. Delivery
// is best effort: a notification failure never fails the pipeline.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"civicpulse/internal/domain"
)

// Notifier receives pipeline events.
type Notifier interface {
	IssueCreated(issue *domain.Issue)
	IssueResolved(issue *domain.Issue)
}

// SlackNotifier posts issue events to a Slack channel.
type SlackNotifier struct {
	api     *slack.Client
	channel string
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{api: slack.New(token), channel: channel}
}

func (n *SlackNotifier) IssueCreated(issue *domain.Issue) {
	msg := fmt.Sprintf("New issue %s: %s (%s, %s) -> %s",
		issue.Ref(), issue.VerifiedCategory, issue.Severity, issue.Ward, issue.DepartmentCode)
	if issue.IsDuplicate {
		msg = fmt.Sprintf("Duplicate report %s linked to CIV-%d", issue.Ref(), issue.DuplicateOf)
	}
	n.post(msg)
}

func (n *SlackNotifier) IssueResolved(issue *domain.Issue) {
	n.post(fmt.Sprintf("Issue %s resolved (%s, %s)", issue.Ref(), issue.VerifiedCategory, issue.DepartmentCode))
}

func (n *SlackNotifier) post(msg string) {
	_, _, err := n.api.PostMessage(n.channel, slack.MsgOptionText(msg, false))
	if err != nil {
		log.Printf("notify post error: %v", err)
	}
}

// LogNotifier is the fallback when no Slack channel is configured.
type LogNotifier struct{}

func (LogNotifier) IssueCreated(issue *domain.Issue) {
	log.Printf("notify created issue=%s category=%s department=%s duplicate=%t",
		issue.Ref(), issue.VerifiedCategory, issue.DepartmentCode, issue.IsDuplicate)
}

func (LogNotifier) IssueResolved(issue *domain.Issue) {
	log.Printf("notify resolved issue=%s department=%s", issue.Ref(), issue.DepartmentCode)
}
