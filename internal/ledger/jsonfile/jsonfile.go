// Package jsonfile is the primary ledger backend: the whole store lives in a
// single JSON file. Every mutation is read-modify-write against an in-memory
// snapshot — the change is applied to a copy, persisted with a temp-file
// rename, and only then committed, so a failed write never leaves readers
// with half-applied state.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sethflower/smena/internal/core"
)

type Store struct {
	path string

	mu  sync.Mutex
	doc document
}

// Open loads the ledger file at path, creating it with defaults when missing.
// A file that fails to parse is moved aside as *.broken.json and the store is
// reinitialized; loading never fails on bad data, only on I/O errors.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = defaultDocument()
		slog.Info("Ledger file missing, writing defaults", "path", s.path)
		return s.save(s.doc)
	}
	if err != nil {
		return fmt.Errorf("read ledger file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err == nil {
		doc.backfill()
		// A structurally valid file with unparseable timestamps is corrupt too.
		if _, err = doc.shifts(); err == nil {
			s.doc = doc
			return s.save(s.doc)
		}
	}

	quarantine := s.quarantinePath()
	if renameErr := os.Rename(s.path, quarantine); renameErr != nil {
		slog.Warn("Failed to quarantine corrupt ledger file", "path", s.path, "error", renameErr)
	} else {
		slog.Warn("Corrupt ledger file quarantined, reinitializing",
			"path", s.path,
			"quarantine", quarantine,
			"error", err)
	}
	s.doc = defaultDocument()
	return s.save(s.doc)
}

func (s *Store) quarantinePath() string {
	base := strings.TrimSuffix(s.path, filepath.Ext(s.path))
	return base + ".broken.json"
}

// save writes doc to disk via temp file + rename. The caller still holds the
// old snapshot; commit it only after save succeeds.
func (s *Store) save(doc document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

// ActiveShift implements ledger.ShiftReader.
func (s *Store) ActiveShift(ctx context.Context) (core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sd, ok := s.activeDoc(s.doc); ok {
		return sd.toShift()
	}

	next := s.doc.clone()
	sd := newShiftDoc()
	next.Shifts = append(next.Shifts, sd)
	next.ActiveShiftID = &sd.ID
	if err := s.save(next); err != nil {
		return core.Shift{}, err
	}
	s.doc = next

	slog.InfoContext(ctx, "Started new shift", "shift_id", sd.ID)
	return sd.toShift()
}

// Shifts implements ledger.ShiftReader.
func (s *Store) Shifts(_ context.Context) ([]core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.shifts()
}

// FindOperation implements ledger.ShiftReader.
func (s *Store) FindOperation(_ context.Context, opID string) (core.Shift, core.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sd := range s.doc.Shifts {
		for _, od := range sd.Operations {
			if od.ID != opID {
				continue
			}
			shift, err := sd.toShift()
			if err != nil {
				return core.Shift{}, core.Operation{}, err
			}
			for _, op := range shift.Operations {
				if op.ID == opID {
					return shift, op, nil
				}
			}
		}
	}
	return core.Shift{}, core.Operation{}, core.ErrNotFound
}

// AddOperation implements ledger.ShiftWriter.
func (s *Store) AddOperation(ctx context.Context, amount int64, comment string) (core.Operation, error) {
	if err := core.ValidateEntry(amount, comment); err != nil {
		return core.Operation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	idx := ensureActive(&next)
	od := operationDoc{
		ID:      uuid.NewString(),
		TS:      formatTS(core.Now()),
		Amount:  amount,
		Comment: comment,
	}
	next.Shifts[idx].Operations = append(next.Shifts[idx].Operations, od)
	if err := s.save(next); err != nil {
		return core.Operation{}, err
	}
	s.doc = next

	slog.InfoContext(ctx, "Operation added",
		"operation_id", od.ID,
		"shift_id", next.Shifts[idx].ID,
		"amount", amount,
		"comment", comment)

	ts, _ := parseTS(od.TS)
	return core.Operation{ID: od.ID, TS: ts, Amount: amount, Comment: comment}, nil
}

// DeleteOperation implements ledger.ShiftWriter. Missing shift or operation
// is not an error: the item may already be gone and callers re-read state.
func (s *Store) DeleteOperation(ctx context.Context, shiftID, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	for i, sd := range next.Shifts {
		if sd.ID != shiftID {
			continue
		}
		kept := sd.Operations[:0]
		removed := false
		for _, od := range sd.Operations {
			if od.ID == opID {
				removed = true
				continue
			}
			kept = append(kept, od)
		}
		if !removed {
			return nil
		}
		next.Shifts[i].Operations = kept
		if err := s.save(next); err != nil {
			return err
		}
		s.doc = next
		slog.InfoContext(ctx, "Operation deleted", "operation_id", opID, "shift_id", shiftID)
		return nil
	}
	return nil
}

// CloseActiveShift implements ledger.ShiftWriter. Closing an already closed
// shift never re-stamps its end; a fresh shift is activated either way.
func (s *Store) CloseActiveShift(ctx context.Context) (core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	if sd, ok := s.activeDoc(next); ok && sd.EndTS == nil {
		ts := formatTS(core.Now())
		for i := range next.Shifts {
			if next.Shifts[i].ID == sd.ID {
				next.Shifts[i].EndTS = &ts
				break
			}
		}
	}

	fresh := newShiftDoc()
	next.Shifts = append(next.Shifts, fresh)
	next.ActiveShiftID = &fresh.ID
	if err := s.save(next); err != nil {
		return core.Shift{}, err
	}
	s.doc = next

	slog.InfoContext(ctx, "Shift closed, new shift started", "shift_id", fresh.ID)
	return fresh.toShift()
}

// ResetActiveOperations implements ledger.ShiftWriter.
func (s *Store) ResetActiveOperations(ctx context.Context) (core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	idx := ensureActive(&next)
	next.Shifts[idx].Operations = []operationDoc{}
	if err := s.save(next); err != nil {
		return core.Shift{}, err
	}
	s.doc = next

	slog.InfoContext(ctx, "Active shift operations cleared", "shift_id", next.Shifts[idx].ID)
	return next.Shifts[idx].toShift()
}

// ResetHistory implements ledger.ShiftWriter. Destructive; the confirmation
// gate lives in the service layer.
func (s *Store) ResetHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	next.Shifts = []shiftDoc{}
	next.ActiveShiftID = nil
	if err := s.save(next); err != nil {
		return err
	}
	s.doc = next

	slog.WarnContext(ctx, "Ledger history reset", "path", s.path)
	return nil
}

// Settings implements ledger.SettingsStore.
func (s *Store) Settings(_ context.Context) (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.settings(), nil
}

// SetComments implements ledger.SettingsStore.
func (s *Store) SetComments(_ context.Context, presets core.CommentPresets) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	next.Settings.Comments = &commentsDoc{
		Income:  append([]string(nil), presets.Income...),
		Expense: append([]string(nil), presets.Expense...),
	}
	if err := s.save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// SetOverlay implements ledger.SettingsStore.
func (s *Store) SetOverlay(_ context.Context, overlay core.OverlaySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	next.Settings.OverlayAlwaysOnTop = boolPtr(overlay.AlwaysOnTop)
	next.Settings.OverlayOpacity = intPtr(core.ClampOpacity(overlay.Opacity))
	next.Settings.OverlayFrameless = boolPtr(overlay.Frameless)
	if err := s.save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// Path returns the backing file's location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) activeDoc(d document) (shiftDoc, bool) {
	if d.ActiveShiftID == nil {
		return shiftDoc{}, false
	}
	for _, sd := range d.Shifts {
		if sd.ID == *d.ActiveShiftID {
			return sd, true
		}
	}
	return shiftDoc{}, false
}

// ensureActive makes sure doc has an active shift and returns its index.
func ensureActive(d *document) int {
	if d.ActiveShiftID != nil {
		for i, sd := range d.Shifts {
			if sd.ID == *d.ActiveShiftID {
				return i
			}
		}
	}
	sd := newShiftDoc()
	d.Shifts = append(d.Shifts, sd)
	d.ActiveShiftID = &d.Shifts[len(d.Shifts)-1].ID
	return len(d.Shifts) - 1
}

func newShiftDoc() shiftDoc {
	return shiftDoc{
		ID:         uuid.NewString(),
		StartTS:    formatTS(core.Now()),
		Operations: []operationDoc{},
	}
}
