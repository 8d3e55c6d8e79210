package amqp

import (
	"encoding/json"
	"time"
)

const (
	EventOperationAdded   = "operation_added"
	EventOperationDeleted = "operation_deleted"
	EventShiftClosed      = "shift_closed"
	EventHistoryReset     = "history_reset"
)

// LedgerEventMessage notifies companion processes (overlay, hotkey listener)
// that the ledger changed. It carries ids only; consumers re-read state
// through the store, never from the message.
type LedgerEventMessage struct {
	Event       string    `json:"event"`
	ShiftID     string    `json:"shift_id,omitempty"`
	OperationID string    `json:"operation_id,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewOperationAddedMessage(shiftID, operationID string, amount int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:       EventOperationAdded,
		ShiftID:     shiftID,
		OperationID: operationID,
		Amount:      amount,
		Timestamp:   time.Now(),
	}
}

func NewOperationDeletedMessage(shiftID, operationID string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:       EventOperationDeleted,
		ShiftID:     shiftID,
		OperationID: operationID,
		Timestamp:   time.Now(),
	}
}

func NewShiftClosedMessage(newShiftID string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:     EventShiftClosed,
		ShiftID:   newShiftID,
		Timestamp: time.Now(),
	}
}

func NewHistoryResetMessage() *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:     EventHistoryReset,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
