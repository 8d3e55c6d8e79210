package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// OtherComment is the mandatory manual-entry choice. It is offered to the
	// user alongside the configured presets but never stored in the preset lists.
	OtherComment = "Другое (ввести вручную)"

	OverlayOpacityMin = 30
	OverlayOpacityMax = 100
)

type (
	// Operation is a single signed ledger entry. Positive amounts are income,
	// negative are expense. Operations are immutable after creation: they can
	// be deleted but never edited in place.
	Operation struct {
		ID      string
		TS      time.Time
		Amount  int64
		Comment string
	}

	// Shift is a bounded work session owning its operations in insertion
	// order. A zero EndTS means the shift is still active.
	Shift struct {
		ID         string
		StartTS    time.Time
		EndTS      time.Time
		Operations []Operation
	}

	// CommentPresets are the configured labels offered during entry.
	CommentPresets struct {
		Income  []string
		Expense []string
	}

	// OverlaySettings are display preferences consumed by the overlay window.
	// They carry no ledger semantics.
	OverlaySettings struct {
		AlwaysOnTop bool
		Opacity     int
		Frameless   bool
	}

	Settings struct {
		Comments CommentPresets
		Overlay  OverlaySettings
	}
)

var (
	ErrZeroAmount    = errors.New("zero amount")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyComment  = errors.New("empty comment")
	ErrNotFound      = errors.New("not found")
	ErrBadConfirm    = errors.New("wrong confirmation phrase")
)

// ValidateEntry checks an operation entry before it touches the store.
// A rejected entry must never be partially applied.
func ValidateEntry(amount int64, comment string) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if strings.TrimSpace(comment) == "" {
		return ErrEmptyComment
	}
	return nil
}

func (o Operation) Validate() error {
	return ValidateEntry(o.Amount, o.Comment)
}

// Active reports whether the shift is still open.
func (s Shift) Active() bool {
	return s.EndTS.IsZero()
}

// DefaultSettings returns the settings a fresh store starts with.
func DefaultSettings() Settings {
	return Settings{
		Comments: DefaultComments(),
		Overlay: OverlaySettings{
			AlwaysOnTop: true,
			Opacity:     92,
			Frameless:   false,
		},
	}
}

func DefaultComments() CommentPresets {
	return CommentPresets{
		Income:  []string{"Заказ", "Чаевые", "Бонус", "Доставка"},
		Expense: []string{"Бензин", "Штраф", "Ремонт", "Еда/Кофе"},
	}
}

// ClampOpacity forces the overlay opacity into its allowed range.
func ClampOpacity(v int) int {
	if v < OverlayOpacityMin {
		return OverlayOpacityMin
	}
	if v > OverlayOpacityMax {
		return OverlayOpacityMax
	}
	return v
}

// Now returns the current instant truncated to seconds, matching the
// precision of persisted timestamps.
func Now() time.Time {
	return time.Now().Truncate(time.Second)
}
