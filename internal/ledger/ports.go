// Package ledger defines the ports the rest of the application uses to talk
// to a shift/operation store. Backends (JSON file, SQLite, memory) implement
// Store; consumers should depend on the narrowest role interface they need.
package ledger

import (
	"context"

	"github.com/sethflower/smena/internal/core"
)

type (
	// ShiftReader is the read side of the ledger.
	ShiftReader interface {
		// ActiveShift returns the shift with no end timestamp, creating and
		// persisting a fresh one when none exists.
		ActiveShift(ctx context.Context) (core.Shift, error)

		// Shifts returns a snapshot of every shift ever recorded, in ledger
		// order, for the aggregation functions.
		Shifts(ctx context.Context) ([]core.Shift, error)

		// FindOperation resolves an operation id to its owning shift.
		// Returns core.ErrNotFound when no shift holds it.
		FindOperation(ctx context.Context, opID string) (core.Shift, core.Operation, error)
	}

	// ShiftWriter is the mutation side. Every mutation is atomic against the
	// persisted snapshot: it either fully commits or leaves the store as it was.
	ShiftWriter interface {
		// AddOperation validates and appends an entry to the active shift.
		AddOperation(ctx context.Context, amount int64, comment string) (core.Operation, error)

		// DeleteOperation removes the operation from the named shift.
		// Missing shift or operation is not an error; callers re-read state.
		DeleteOperation(ctx context.Context, shiftID, opID string) error

		// CloseActiveShift stamps the active shift's end and activates a fresh
		// empty shift in one transition. Returns the new active shift.
		CloseActiveShift(ctx context.Context) (core.Shift, error)

		// ResetActiveOperations clears the active shift's operations without
		// closing it.
		ResetActiveOperations(ctx context.Context) (core.Shift, error)

		// ResetHistory discards every shift and the active pointer.
		ResetHistory(ctx context.Context) error
	}

	// SettingsStore holds comment presets and overlay preferences.
	SettingsStore interface {
		Settings(ctx context.Context) (core.Settings, error)
		SetComments(ctx context.Context, presets core.CommentPresets) error
		SetOverlay(ctx context.Context, overlay core.OverlaySettings) error
	}

	Store interface {
		ShiftReader
		ShiftWriter
		SettingsStore
	}
)
