// Package services orchestrates the ledger store with event publishing.
// The HTTP layer goes through LedgerService for every mutation; it never
// touches a store snapshot directly.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sethflower/smena/internal/amqp"
	"github.com/sethflower/smena/internal/core"
	"github.com/sethflower/smena/internal/ledger"
)

// ResetConfirmPhrase is the word the user has to type before the whole
// history is discarded. A yes/no dialog is not enough for an irreversible
// action that touches all data.
const ResetConfirmPhrase = "СБРОС"

// EventPublisher is the notification channel for companion processes.
// *amqp.Client satisfies it; a nil publisher disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher
	closer    func() error
}

func NewLedgerService(store ledger.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{store: store, publisher: publisher}
}

// WithCloser registers a cleanup hook run by Close (backend connections).
func (s *LedgerService) WithCloser(closer func() error) *LedgerService {
	s.closer = closer
	return s
}

// Store exposes the read side for the aggregation handlers.
func (s *LedgerService) Store() ledger.ShiftReader {
	return s.store
}

// Settings exposes the settings side.
func (s *LedgerService) SettingsStore() ledger.SettingsStore {
	return s.store
}

// AddOperation validates and appends an entry to the active shift, then
// notifies listeners. The store write decides success; a publish failure is
// logged and dropped.
func (s *LedgerService) AddOperation(ctx context.Context, amount int64, comment string) (core.Operation, error) {
	op, err := s.store.AddOperation(ctx, amount, comment)
	if err != nil {
		return core.Operation{}, fmt.Errorf("add operation: %w", err)
	}

	shift, err := s.store.ActiveShift(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to re-read active shift after add", "error", err)
		return op, nil
	}
	s.publish(ctx, amqp.NewOperationAddedMessage(shift.ID, op.ID, op.Amount))
	return op, nil
}

// DeleteOperation removes an operation; missing items are benign.
func (s *LedgerService) DeleteOperation(ctx context.Context, shiftID, opID string) error {
	if err := s.store.DeleteOperation(ctx, shiftID, opID); err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	s.publish(ctx, amqp.NewOperationDeletedMessage(shiftID, opID))
	return nil
}

// CloseShift ends the active shift and starts a new one.
func (s *LedgerService) CloseShift(ctx context.Context) (core.Shift, error) {
	shift, err := s.store.CloseActiveShift(ctx)
	if err != nil {
		return core.Shift{}, fmt.Errorf("close shift: %w", err)
	}
	s.publish(ctx, amqp.NewShiftClosedMessage(shift.ID))
	return shift, nil
}

// ResetActiveOperations clears the active shift without closing it.
func (s *LedgerService) ResetActiveOperations(ctx context.Context) (core.Shift, error) {
	shift, err := s.store.ResetActiveOperations(ctx)
	if err != nil {
		return core.Shift{}, fmt.Errorf("reset shift operations: %w", err)
	}
	return shift, nil
}

// ResetHistory discards every shift after checking the typed confirmation
// phrase. The wrong phrase fails closed: nothing is written.
func (s *LedgerService) ResetHistory(ctx context.Context, confirmation string) error {
	if !strings.EqualFold(strings.TrimSpace(confirmation), ResetConfirmPhrase) {
		return core.ErrBadConfirm
	}
	if err := s.store.ResetHistory(ctx); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	s.publish(ctx, amqp.NewHistoryResetMessage())
	return nil
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, msg); err != nil {
		// The mutation already committed; listeners will catch up on the
		// next read.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", msg.Event, "error", err)
	}
}

// Close releases backend resources.
func (s *LedgerService) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
