package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sethflower/smena/internal/core"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "smena.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestActiveShiftCreatedOnDemand(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	shift, err := repo.ActiveShift(ctx)
	if err != nil {
		t.Fatalf("active shift: %v", err)
	}
	if !shift.Active() || len(shift.Operations) != 0 {
		t.Fatalf("fresh shift should be active and empty: %+v", shift)
	}

	again, err := repo.ActiveShift(ctx)
	if err != nil {
		t.Fatalf("active shift: %v", err)
	}
	if again.ID != shift.ID {
		t.Fatalf("second read created another shift: %s != %s", again.ID, shift.ID)
	}
}

func TestSignedAmountRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if _, err := repo.AddOperation(ctx, 1500, "Заказ"); err != nil {
		t.Fatalf("add income: %v", err)
	}
	if _, err := repo.AddOperation(ctx, -300, "Бензин"); err != nil {
		t.Fatalf("add expense: %v", err)
	}

	shift, err := repo.ActiveShift(ctx)
	if err != nil {
		t.Fatalf("active shift: %v", err)
	}
	if len(shift.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(shift.Operations))
	}
	if shift.Operations[0].Amount != 1500 || shift.Operations[1].Amount != -300 {
		t.Fatalf("kind+magnitude did not reconstruct signed amounts: %+v", shift.Operations)
	}

	got := core.ShiftTotals(shift)
	want := core.Totals{Income: 1500, Expense: 300, Net: 1200}
	if got != want {
		t.Fatalf("totals = %+v, want %+v", got, want)
	}
}

func TestValidationBeforeWrite(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if _, err := repo.AddOperation(ctx, 0, "Заказ"); !errors.Is(err, core.ErrZeroAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := repo.AddOperation(ctx, 5, ""); !errors.Is(err, core.ErrEmptyComment) {
		t.Fatalf("empty comment: %v", err)
	}
}

func TestCloseActiveShiftTransition(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first, _ := repo.ActiveShift(ctx)
	second, err := repo.CloseActiveShift(ctx)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("close must start a distinct shift")
	}

	shifts, err := repo.Shifts(ctx)
	if err != nil {
		t.Fatalf("shifts: %v", err)
	}
	active := 0
	for _, s := range shifts {
		if s.Active() {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("exactly one active shift expected, got %d", active)
	}

	closedEnd := shifts[0].EndTS
	if closedEnd.IsZero() {
		t.Fatalf("closed shift has no end timestamp")
	}
	if _, err := repo.CloseActiveShift(ctx); err != nil {
		t.Fatalf("close again: %v", err)
	}
	shifts, _ = repo.Shifts(ctx)
	if !shifts[0].EndTS.Equal(closedEnd) {
		t.Fatalf("already closed shift was re-stamped")
	}
}

func TestDeleteOperationNoop(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	op, _ := repo.AddOperation(ctx, 100, "Заказ")
	shift, _ := repo.ActiveShift(ctx)

	if err := repo.DeleteOperation(ctx, shift.ID, "missing"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	if err := repo.DeleteOperation(ctx, shift.ID, op.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	shift, _ = repo.ActiveShift(ctx)
	if len(shift.Operations) != 0 {
		t.Fatalf("operation still present after delete")
	}
}

func TestFindOperationAcrossShifts(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	op, _ := repo.AddOperation(ctx, 700, "Доставка")
	owner, _ := repo.ActiveShift(ctx)
	if _, err := repo.CloseActiveShift(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	shift, got, err := repo.FindOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if shift.ID != owner.ID || got.Amount != 700 {
		t.Fatalf("find resolved wrong owner: %s (want %s), %+v", shift.ID, owner.ID, got)
	}

	if _, _, err := repo.FindOperation(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetHistory(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	old, _ := repo.ActiveShift(ctx)
	if _, err := repo.AddOperation(ctx, 100, "Заказ"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.ResetHistory(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	shifts, _ := repo.Shifts(ctx)
	if len(shifts) != 0 {
		t.Fatalf("history not empty after reset")
	}
	fresh, _ := repo.ActiveShift(ctx)
	if fresh.ID == old.ID {
		t.Fatalf("old shift id came back after reset")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	defaults, err := repo.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if len(defaults.Comments.Income) == 0 || defaults.Overlay.Opacity != 92 {
		t.Fatalf("missing keys must fall back to defaults: %+v", defaults)
	}

	if err := repo.SetComments(ctx, core.CommentPresets{
		Income:  []string{"Заказ", "Премия"},
		Expense: []string{"Мойка"},
	}); err != nil {
		t.Fatalf("set comments: %v", err)
	}
	if err := repo.SetOverlay(ctx, core.OverlaySettings{AlwaysOnTop: false, Opacity: 10, Frameless: true}); err != nil {
		t.Fatalf("set overlay: %v", err)
	}

	got, err := repo.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if len(got.Comments.Income) != 2 || got.Comments.Expense[0] != "Мойка" {
		t.Fatalf("comments did not round-trip: %+v", got.Comments)
	}
	if got.Overlay.Opacity != core.OverlayOpacityMin || !got.Overlay.Frameless || got.Overlay.AlwaysOnTop {
		t.Fatalf("overlay did not round-trip (opacity must clamp): %+v", got.Overlay)
	}
}
