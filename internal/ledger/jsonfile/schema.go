package jsonfile

import (
	"fmt"
	"time"

	"github.com/sethflower/smena/internal/core"
)

// schemaVersion is written out for forward compatibility. Loading relies on
// field presence, not on branching over this number.
const schemaVersion = 1

// tsLayout is ISO-8601 with seconds precision, local time, matching the
// precision the ledger has always been persisted with.
const tsLayout = "2006-01-02T15:04:05"

type (
	document struct {
		Version       int           `json:"version"`
		Settings      settingsDoc   `json:"settings"`
		Shifts        []shiftDoc    `json:"shifts"`
		ActiveShiftID *string       `json:"active_shift_id"`
	}

	// Settings fields are pointers so a missing key can be told apart from a
	// false/zero value and backfilled with its default on load.
	settingsDoc struct {
		Comments           *commentsDoc `json:"comments,omitempty"`
		OverlayAlwaysOnTop *bool        `json:"overlay_always_on_top,omitempty"`
		OverlayOpacity     *int         `json:"overlay_opacity,omitempty"`
		OverlayFrameless   *bool        `json:"overlay_frameless,omitempty"`
	}

	commentsDoc struct {
		Income  []string `json:"income"`
		Expense []string `json:"expense"`
	}

	shiftDoc struct {
		ID         string         `json:"id"`
		StartTS    string         `json:"start_ts"`
		EndTS      *string        `json:"end_ts"`
		Operations []operationDoc `json:"operations"`
	}

	operationDoc struct {
		ID      string `json:"id"`
		TS      string `json:"ts"`
		Amount  int64  `json:"amount"`
		Comment string `json:"comment"`
	}
)

func defaultDocument() document {
	s := core.DefaultSettings()
	return document{
		Version: schemaVersion,
		Settings: settingsDoc{
			Comments: &commentsDoc{
				Income:  s.Comments.Income,
				Expense: s.Comments.Expense,
			},
			OverlayAlwaysOnTop: boolPtr(s.Overlay.AlwaysOnTop),
			OverlayOpacity:     intPtr(s.Overlay.Opacity),
			OverlayFrameless:   boolPtr(s.Overlay.Frameless),
		},
		Shifts: []shiftDoc{},
	}
}

// backfill fills any settings key absent from an older file with its default,
// matching the loader contract: schema evolution by field presence.
func (d *document) backfill() {
	defs := core.DefaultSettings()
	if d.Settings.Comments == nil {
		d.Settings.Comments = &commentsDoc{}
	}
	if d.Settings.Comments.Income == nil {
		d.Settings.Comments.Income = defs.Comments.Income
	}
	if d.Settings.Comments.Expense == nil {
		d.Settings.Comments.Expense = defs.Comments.Expense
	}
	if d.Settings.OverlayAlwaysOnTop == nil {
		d.Settings.OverlayAlwaysOnTop = boolPtr(defs.Overlay.AlwaysOnTop)
	}
	if d.Settings.OverlayOpacity == nil {
		d.Settings.OverlayOpacity = intPtr(defs.Overlay.Opacity)
	}
	if d.Settings.OverlayFrameless == nil {
		d.Settings.OverlayFrameless = boolPtr(defs.Overlay.Frameless)
	}
	if d.Shifts == nil {
		d.Shifts = []shiftDoc{}
	}
	if d.Version == 0 {
		d.Version = schemaVersion
	}
}

func (d document) clone() document {
	out := d
	if d.Settings.Comments != nil {
		c := commentsDoc{
			Income:  append([]string(nil), d.Settings.Comments.Income...),
			Expense: append([]string(nil), d.Settings.Comments.Expense...),
		}
		out.Settings.Comments = &c
	}
	if d.Settings.OverlayAlwaysOnTop != nil {
		out.Settings.OverlayAlwaysOnTop = boolPtr(*d.Settings.OverlayAlwaysOnTop)
	}
	if d.Settings.OverlayOpacity != nil {
		out.Settings.OverlayOpacity = intPtr(*d.Settings.OverlayOpacity)
	}
	if d.Settings.OverlayFrameless != nil {
		out.Settings.OverlayFrameless = boolPtr(*d.Settings.OverlayFrameless)
	}
	if d.ActiveShiftID != nil {
		id := *d.ActiveShiftID
		out.ActiveShiftID = &id
	}
	out.Shifts = make([]shiftDoc, len(d.Shifts))
	for i, s := range d.Shifts {
		cs := s
		cs.Operations = append([]operationDoc(nil), s.Operations...)
		if s.EndTS != nil {
			ts := *s.EndTS
			cs.EndTS = &ts
		}
		out.Shifts[i] = cs
	}
	return out
}

func (d document) settings() core.Settings {
	return core.Settings{
		Comments: core.CommentPresets{
			Income:  append([]string(nil), d.Settings.Comments.Income...),
			Expense: append([]string(nil), d.Settings.Comments.Expense...),
		},
		Overlay: core.OverlaySettings{
			AlwaysOnTop: *d.Settings.OverlayAlwaysOnTop,
			Opacity:     *d.Settings.OverlayOpacity,
			Frameless:   *d.Settings.OverlayFrameless,
		},
	}
}

func (d document) shifts() ([]core.Shift, error) {
	out := make([]core.Shift, 0, len(d.Shifts))
	for _, sd := range d.Shifts {
		s, err := sd.toShift()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (sd shiftDoc) toShift() (core.Shift, error) {
	start, err := parseTS(sd.StartTS)
	if err != nil {
		return core.Shift{}, fmt.Errorf("shift %s start_ts: %w", sd.ID, err)
	}
	s := core.Shift{ID: sd.ID, StartTS: start}
	if sd.EndTS != nil {
		end, err := parseTS(*sd.EndTS)
		if err != nil {
			return core.Shift{}, fmt.Errorf("shift %s end_ts: %w", sd.ID, err)
		}
		s.EndTS = end
	}
	for _, od := range sd.Operations {
		ts, err := parseTS(od.TS)
		if err != nil {
			return core.Shift{}, fmt.Errorf("operation %s ts: %w", od.ID, err)
		}
		s.Operations = append(s.Operations, core.Operation{
			ID:      od.ID,
			TS:      ts,
			Amount:  od.Amount,
			Comment: od.Comment,
		})
	}
	return s, nil
}

func parseTS(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(tsLayout, s, time.Local); err == nil {
		return t, nil
	}
	// Tolerate zoned timestamps written by other tooling.
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatTS(t time.Time) string {
	return t.Format(tsLayout)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
