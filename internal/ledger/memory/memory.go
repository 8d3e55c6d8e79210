// Package memory is a mutex-guarded in-process ledger store. It backs tests
// and ephemeral runs (DATA_BACKEND=memory); nothing survives the process.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sethflower/smena/internal/core"
)

type Store struct {
	mu       sync.Mutex
	shifts   []core.Shift
	activeID string
	settings core.Settings
}

func New() *Store {
	return &Store{settings: core.DefaultSettings()}
}

func (s *Store) ActiveShift(_ context.Context) (core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneShift(s.ensureActive()), nil
}

func (s *Store) Shifts(_ context.Context) ([]core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Shift, len(s.shifts))
	for i := range s.shifts {
		out[i] = cloneShift(&s.shifts[i])
	}
	return out, nil
}

func (s *Store) FindOperation(_ context.Context, opID string) (core.Shift, core.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.shifts {
		for _, op := range s.shifts[i].Operations {
			if op.ID == opID {
				return cloneShift(&s.shifts[i]), op, nil
			}
		}
	}
	return core.Shift{}, core.Operation{}, core.ErrNotFound
}

func (s *Store) AddOperation(_ context.Context, amount int64, comment string) (core.Operation, error) {
	if err := core.ValidateEntry(amount, comment); err != nil {
		return core.Operation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.ensureActive()
	op := core.Operation{
		ID:      uuid.NewString(),
		TS:      core.Now(),
		Amount:  amount,
		Comment: comment,
	}
	active.Operations = append(active.Operations, op)
	return op, nil
}

func (s *Store) DeleteOperation(_ context.Context, shiftID, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.shifts {
		if s.shifts[i].ID != shiftID {
			continue
		}
		ops := s.shifts[i].Operations
		for j, op := range ops {
			if op.ID == opID {
				s.shifts[i].Operations = append(ops[:j:j], ops[j+1:]...)
				return nil
			}
		}
		return nil
	}
	return nil
}

func (s *Store) CloseActiveShift(_ context.Context) (core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active := s.findActive(); active != nil && active.Active() {
		active.EndTS = core.Now()
	}
	fresh := core.Shift{ID: uuid.NewString(), StartTS: core.Now(), Operations: []core.Operation{}}
	s.shifts = append(s.shifts, fresh)
	s.activeID = fresh.ID
	return cloneShift(&fresh), nil
}

func (s *Store) ResetActiveOperations(_ context.Context) (core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.ensureActive()
	active.Operations = []core.Operation{}
	return cloneShift(active), nil
}

func (s *Store) ResetHistory(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shifts = nil
	s.activeID = ""
	return nil
}

func (s *Store) Settings(_ context.Context) (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSettings(s.settings), nil
}

func (s *Store) SetComments(_ context.Context, presets core.CommentPresets) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Comments = core.CommentPresets{
		Income:  append([]string(nil), presets.Income...),
		Expense: append([]string(nil), presets.Expense...),
	}
	return nil
}

func (s *Store) SetOverlay(_ context.Context, overlay core.OverlaySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overlay.Opacity = core.ClampOpacity(overlay.Opacity)
	s.settings.Overlay = overlay
	return nil
}

// ensureActive returns a pointer to the active shift, creating one when the
// pointer is unset or dangling. Caller holds the lock.
func (s *Store) ensureActive() *core.Shift {
	if active := s.findActive(); active != nil {
		return active
	}
	fresh := core.Shift{ID: uuid.NewString(), StartTS: core.Now(), Operations: []core.Operation{}}
	s.shifts = append(s.shifts, fresh)
	s.activeID = fresh.ID
	return &s.shifts[len(s.shifts)-1]
}

func (s *Store) findActive() *core.Shift {
	if s.activeID == "" {
		return nil
	}
	for i := range s.shifts {
		if s.shifts[i].ID == s.activeID {
			return &s.shifts[i]
		}
	}
	return nil
}

func cloneShift(s *core.Shift) core.Shift {
	out := *s
	out.Operations = append([]core.Operation(nil), s.Operations...)
	return out
}

func cloneSettings(s core.Settings) core.Settings {
	s.Comments.Income = append([]string(nil), s.Comments.Income...)
	s.Comments.Expense = append([]string(nil), s.Comments.Expense...)
	return s
}
