package amqp

import "testing"

func TestLedgerEventMessageRoundTrip(t *testing.T) {
	msg := NewOperationAddedMessage("shift-1", "op-1", -300)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := LedgerEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Event != EventOperationAdded || got.ShiftID != "shift-1" || got.OperationID != "op-1" || got.Amount != -300 {
		t.Fatalf("round trip changed message: %+v", got)
	}
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name string
		msg  *LedgerEventMessage
		want string
	}{
		{"added", NewOperationAddedMessage("s", "o", 1), EventOperationAdded},
		{"deleted", NewOperationDeletedMessage("s", "o"), EventOperationDeleted},
		{"closed", NewShiftClosedMessage("s"), EventShiftClosed},
		{"reset", NewHistoryResetMessage(), EventHistoryReset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Event != tt.want {
				t.Fatalf("event = %q, want %q", tt.msg.Event, tt.want)
			}
			if tt.msg.Timestamp.IsZero() {
				t.Fatalf("constructor must stamp the message")
			}
		})
	}
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LedgerEventMessageFromJSON([]byte("{nope")); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}
