package notify

import (
	"strings"
	"testing"

	"github.com/daman-app/daman/internal/database"
)

func TestNewSlackNotifierDisabledWithoutConfig(t *testing.T) {
	if n := NewSlackNotifier("", "letters"); n != nil {
		t.Error("expected nil notifier without token")
	}
	if n := NewSlackNotifier("xoxb-token", ""); n != nil {
		t.Error("expected nil notifier without channel")
	}
	if n := NewSlackNotifier("xoxb-token", "letters"); n == nil {
		t.Error("expected notifier with full config")
	}
}

func TestFormatStatusChange(t *testing.T) {
	guarantee := &database.Guarantee{
		UUID:           "g-1",
		ContractNumber: "C-2026-104",
		Amount:         250000,
		Status:         database.GuaranteeStatusApproved,
	}
	event := &database.GuaranteeEvent{
		Type:  database.EventTypeStatusChange,
		Actor: "manager",
		Diff: database.JSONB{
			"status": map[string]interface{}{"old": "ready", "new": "approved"},
			"note":   "all documents verified",
		},
	}

	message := FormatStatusChange(guarantee, event)

	for _, want := range []string{"Approved", "C-2026-104", "250,000.00", "ready", "approved", "manager", "all documents verified"} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q:\n%s", want, message)
		}
	}
}

func TestFormatStatusChangeWithoutDiff(t *testing.T) {
	guarantee := &database.Guarantee{UUID: "g-2", ContractNumber: "C-1"}
	event := &database.GuaranteeEvent{Type: database.EventTypeStatusChange, Diff: database.JSONB{}}

	message := FormatStatusChange(guarantee, event)
	if !strings.Contains(message, "Updated") || !strings.Contains(message, "C-1") {
		t.Errorf("unexpected fallback message:\n%s", message)
	}
}
