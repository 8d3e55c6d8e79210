package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/sethflower/smena/internal/core"
)

func TestActiveShiftInvariant(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.CloseActiveShift(ctx); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}

	shifts, err := s.Shifts(ctx)
	if err != nil {
		t.Fatalf("shifts: %v", err)
	}
	active := 0
	for _, sh := range shifts {
		if sh.Active() {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("exactly one shift may be active, got %d of %d", active, len(shifts))
	}
}

func TestAddAndFindOperation(t *testing.T) {
	s := New()
	ctx := context.Background()

	op, err := s.AddOperation(ctx, 1500, "Заказ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	shift, gotOp, err := s.FindOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if gotOp.Amount != 1500 || !shift.Active() {
		t.Fatalf("unexpected find result: %+v in shift %+v", gotOp, shift)
	}

	if _, _, err := s.FindOperation(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidationRejectsBeforeWrite(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AddOperation(ctx, 0, "Заказ"); !errors.Is(err, core.ErrZeroAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := s.AddOperation(ctx, 10, "  "); !errors.Is(err, core.ErrEmptyComment) {
		t.Fatalf("empty comment: %v", err)
	}
	shift, _ := s.ActiveShift(ctx)
	if len(shift.Operations) != 0 {
		t.Fatalf("rejected entries must not be applied")
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AddOperation(ctx, 100, "Заказ"); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap, _ := s.Shifts(ctx)
	snap[0].Operations[0].Amount = 999999

	shift, _ := s.ActiveShift(ctx)
	if shift.Operations[0].Amount != 100 {
		t.Fatalf("mutating a snapshot leaked into the store")
	}
}

func TestResetHistoryStartsFresh(t *testing.T) {
	s := New()
	ctx := context.Background()

	old, _ := s.ActiveShift(ctx)
	if err := s.ResetHistory(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	fresh, _ := s.ActiveShift(ctx)
	if fresh.ID == old.ID {
		t.Fatalf("reset must produce a brand-new shift id")
	}
}
