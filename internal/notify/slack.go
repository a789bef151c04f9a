package notify

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/utils"
)

// SlackNotifier posts a channel message whenever a guarantee changes
// workflow status. It implements services.EventSink; posting happens in
// a goroutine after the transaction committed, and failures only log so
// a Slack outage can never fail a mutation.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier, or nil when token/channel are not
// configured so callers can skip registering the sink.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	if token == "" || channel == "" {
		log.Printf("SlackNotifier: not configured, status notifications disabled")
		return nil
	}
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

// HistoryAppended posts status-change events to the configured channel
func (n *SlackNotifier) HistoryAppended(guarantee *database.Guarantee, event *database.GuaranteeEvent) {
	if event.Type != database.EventTypeStatusChange {
		return
	}

	message := FormatStatusChange(guarantee, event)
	go func() {
		_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(message, false))
		if err != nil {
			log.Printf("SlackNotifier: failed to post status change for guarantee %s: %v", guarantee.UUID, err)
		}
	}()
}

// FormatStatusChange renders one status-change event as a Slack message
func FormatStatusChange(guarantee *database.Guarantee, event *database.GuaranteeEvent) string {
	var sb strings.Builder

	oldStatus, newStatus := statusChange(event.Diff)
	sb.WriteString(fmt.Sprintf("%s *Guarantee %s*\n\n", statusEmoji(newStatus), statusTitle(newStatus)))
	sb.WriteString(fmt.Sprintf("*Contract*: %s\n", guarantee.ContractNumber))
	if guarantee.Amount > 0 {
		sb.WriteString(fmt.Sprintf("*Amount*: %s\n", utils.FormatAmount(guarantee.Amount)))
	}
	if oldStatus != "" {
		sb.WriteString(fmt.Sprintf("*Status*: %s → %s\n", oldStatus, newStatus))
	}
	if event.Actor != "" {
		sb.WriteString(fmt.Sprintf("*By*: %s\n", event.Actor))
	}
	if note, ok := event.Diff["note"].(string); ok && note != "" {
		sb.WriteString(fmt.Sprintf("\n*Note*\n%s\n", utils.TruncateText(note, 500)))
	}

	return sb.String()
}

func statusChange(diff database.JSONB) (string, string) {
	change, ok := diff["status"].(map[string]interface{})
	if !ok {
		return "", ""
	}
	oldStatus, _ := change["old"].(string)
	newStatus, _ := change["new"].(string)
	return oldStatus, newStatus
}

func statusTitle(status string) string {
	if status == "" {
		return "Updated"
	}
	return strings.ToUpper(status[:1]) + status[1:]
}

func statusEmoji(status string) string {
	switch status {
	case string(database.GuaranteeStatusReady):
		return "📋"
	case string(database.GuaranteeStatusApproved):
		return "✅"
	case string(database.GuaranteeStatusExtended):
		return "🔄"
	case string(database.GuaranteeStatusRejected):
		return "🔴"
	case string(database.GuaranteeStatusHeld):
		return "🟡"
	default:
		return "📋"
	}
}
