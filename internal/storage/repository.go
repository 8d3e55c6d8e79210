// Package storage is the SQLite ledger backend. It stores the same model as
// the JSON file — shifts grouped under calendar days, operations split into
// kind + magnitude — and reconstructs the signed-amount convention on read.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sethflower/smena/internal/core"
)

const (
	statusActive = "ACTIVE"
	statusClosed = "CLOSED"

	kindIn  = "IN"
	kindOut = "OUT"

	tsLayout = "2006-01-02T15:04:05"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ActiveShift implements ledger.ShiftReader.
func (r *SQLiteRepository) ActiveShift(ctx context.Context) (core.Shift, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Shift{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := r.ensureActiveTx(ctx, tx)
	if err != nil {
		return core.Shift{}, err
	}
	shift, err := loadShiftTx(ctx, tx, id)
	if err != nil {
		return core.Shift{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Shift{}, fmt.Errorf("commit: %w", err)
	}
	return shift, nil
}

// Shifts implements ledger.ShiftReader.
func (r *SQLiteRepository) Shifts(ctx context.Context) ([]core.Shift, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at FROM shifts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []core.Shift
	index := make(map[string]int)
	for rows.Next() {
		var (
			id      string
			started string
			ended   sql.NullString
		)
		if err := rows.Scan(&id, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		s, err := buildShift(id, started, ended)
		if err != nil {
			return nil, err
		}
		index[id] = len(shifts)
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shifts: %w", err)
	}

	opRows, err := r.db.QueryContext(ctx,
		`SELECT id, shift_id, ts, kind, amount, comment FROM ops ORDER BY shift_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("query ops: %w", err)
	}
	defer opRows.Close()

	for opRows.Next() {
		var (
			id, shiftID, ts, kind, comment string
			amount                         float64
		)
		if err := opRows.Scan(&id, &shiftID, &ts, &kind, &amount, &comment); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}
		op, err := buildOperation(id, ts, kind, amount, comment)
		if err != nil {
			return nil, err
		}
		if i, ok := index[shiftID]; ok {
			shifts[i].Operations = append(shifts[i].Operations, op)
		}
	}
	if err := opRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ops: %w", err)
	}

	return shifts, nil
}

// FindOperation implements ledger.ShiftReader.
func (r *SQLiteRepository) FindOperation(ctx context.Context, opID string) (core.Shift, core.Operation, error) {
	var shiftID string
	err := r.db.QueryRowContext(ctx,
		`SELECT shift_id FROM ops WHERE id = ?`, opID).Scan(&shiftID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Shift{}, core.Operation{}, core.ErrNotFound
	}
	if err != nil {
		return core.Shift{}, core.Operation{}, fmt.Errorf("find operation: %w", err)
	}

	shift, err := r.loadShift(ctx, shiftID)
	if err != nil {
		return core.Shift{}, core.Operation{}, err
	}
	for _, op := range shift.Operations {
		if op.ID == opID {
			return shift, op, nil
		}
	}
	return core.Shift{}, core.Operation{}, core.ErrNotFound
}

// AddOperation implements ledger.ShiftWriter.
func (r *SQLiteRepository) AddOperation(ctx context.Context, amount int64, comment string) (core.Operation, error) {
	if err := core.ValidateEntry(amount, comment); err != nil {
		return core.Operation{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Operation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	shiftID, err := r.ensureActiveTx(ctx, tx)
	if err != nil {
		return core.Operation{}, err
	}

	kind, magnitude := kindIn, float64(amount)
	if amount < 0 {
		kind, magnitude = kindOut, float64(-amount)
	}

	op := core.Operation{
		ID:      uuid.NewString(),
		TS:      core.Now(),
		Amount:  amount,
		Comment: comment,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ops (id, shift_id, ts, kind, amount, comment, seq)
		 VALUES (?, ?, ?, ?, ?, ?,
		         (SELECT COALESCE(MAX(seq), 0) + 1 FROM ops WHERE shift_id = ?))`,
		op.ID, shiftID, op.TS.Format(tsLayout), kind, magnitude, comment, shiftID)
	if err != nil {
		return core.Operation{}, fmt.Errorf("insert operation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Operation{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Operation saved to SQLite",
		"operation_id", op.ID,
		"shift_id", shiftID,
		"kind", kind,
		"amount", amount)
	return op, nil
}

// DeleteOperation implements ledger.ShiftWriter. Zero rows affected is fine.
func (r *SQLiteRepository) DeleteOperation(ctx context.Context, shiftID, opID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM ops WHERE id = ? AND shift_id = ?`, opID, shiftID)
	if err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	return nil
}

// CloseActiveShift implements ledger.ShiftWriter.
func (r *SQLiteRepository) CloseActiveShift(ctx context.Context) (core.Shift, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Shift{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := core.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE shifts SET ended_at = ?, status = ? WHERE status = ?`,
		now.Format(tsLayout), statusClosed, statusActive)
	if err != nil {
		return core.Shift{}, fmt.Errorf("close active shift: %w", err)
	}

	id, err := createShiftTx(ctx, tx, now)
	if err != nil {
		return core.Shift{}, err
	}
	shift, err := loadShiftTx(ctx, tx, id)
	if err != nil {
		return core.Shift{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Shift{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Shift closed, new shift started", "shift_id", id)
	return shift, nil
}

// ResetActiveOperations implements ledger.ShiftWriter.
func (r *SQLiteRepository) ResetActiveOperations(ctx context.Context) (core.Shift, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Shift{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := r.ensureActiveTx(ctx, tx)
	if err != nil {
		return core.Shift{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ops WHERE shift_id = ?`, id); err != nil {
		return core.Shift{}, fmt.Errorf("clear operations: %w", err)
	}
	shift, err := loadShiftTx(ctx, tx, id)
	if err != nil {
		return core.Shift{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Shift{}, fmt.Errorf("commit: %w", err)
	}
	return shift, nil
}

// ResetHistory implements ledger.ShiftWriter.
func (r *SQLiteRepository) ResetHistory(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM ops`,
		`DELETE FROM shifts`,
		`DELETE FROM days`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.WarnContext(ctx, "Ledger history reset")
	return nil
}

// Settings implements ledger.SettingsStore. Missing keys fall back to defaults.
func (r *SQLiteRepository) Settings(ctx context.Context) (core.Settings, error) {
	values, err := r.settingsMap(ctx)
	if err != nil {
		return core.Settings{}, err
	}

	out := core.DefaultSettings()
	if v, ok := values["comments_income"]; ok {
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err == nil {
			out.Comments.Income = list
		}
	}
	if v, ok := values["comments_expense"]; ok {
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err == nil {
			out.Comments.Expense = list
		}
	}
	if v, ok := values["overlay_always_on_top"]; ok {
		out.Overlay.AlwaysOnTop = v == "1"
	}
	if v, ok := values["overlay_opacity"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			out.Overlay.Opacity = core.ClampOpacity(n)
		}
	}
	if v, ok := values["overlay_frameless"]; ok {
		out.Overlay.Frameless = v == "1"
	}
	return out, nil
}

// SetComments implements ledger.SettingsStore.
func (r *SQLiteRepository) SetComments(ctx context.Context, presets core.CommentPresets) error {
	income, err := json.Marshal(presets.Income)
	if err != nil {
		return fmt.Errorf("encode income presets: %w", err)
	}
	expense, err := json.Marshal(presets.Expense)
	if err != nil {
		return fmt.Errorf("encode expense presets: %w", err)
	}
	return r.setSettings(ctx, map[string]string{
		"comments_income":  string(income),
		"comments_expense": string(expense),
	})
}

// SetOverlay implements ledger.SettingsStore.
func (r *SQLiteRepository) SetOverlay(ctx context.Context, overlay core.OverlaySettings) error {
	return r.setSettings(ctx, map[string]string{
		"overlay_always_on_top": boolValue(overlay.AlwaysOnTop),
		"overlay_opacity":       strconv.Itoa(core.ClampOpacity(overlay.Opacity)),
		"overlay_frameless":     boolValue(overlay.Frameless),
	})
}

func (r *SQLiteRepository) settingsMap(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) setSettings(ctx context.Context, values map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v)
		if err != nil {
			return fmt.Errorf("upsert setting %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ensureActiveTx returns the active shift's id, creating day and shift rows
// when no shift is active.
func (r *SQLiteRepository) ensureActiveTx(ctx context.Context, tx *sql.Tx) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM shifts WHERE status = ? LIMIT 1`, statusActive).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("query active shift: %w", err)
	}
	return createShiftTx(ctx, tx, core.Now())
}

func createShiftTx(ctx context.Context, tx *sql.Tx, start time.Time) (string, error) {
	dayText := start.Format("2006-01-02")
	_, err := tx.ExecContext(ctx,
		`INSERT INTO days (day_text, created_at) VALUES (?, ?)
		 ON CONFLICT(day_text) DO NOTHING`,
		dayText, start.Format(tsLayout))
	if err != nil {
		return "", fmt.Errorf("insert day: %w", err)
	}

	var dayID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM days WHERE day_text = ?`, dayText).Scan(&dayID); err != nil {
		return "", fmt.Errorf("select day: %w", err)
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO shifts (id, day_id, started_at, ended_at, status) VALUES (?, ?, ?, NULL, ?)`,
		id, dayID, start.Format(tsLayout), statusActive)
	if err != nil {
		return "", fmt.Errorf("insert shift: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) loadShift(ctx context.Context, id string) (core.Shift, error) {
	return loadShiftQ(ctx, r.db, id)
}

func loadShiftTx(ctx context.Context, tx *sql.Tx, id string) (core.Shift, error) {
	return loadShiftQ(ctx, tx, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadShiftQ(ctx context.Context, q querier, id string) (core.Shift, error) {
	var (
		started string
		ended   sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT started_at, ended_at FROM shifts WHERE id = ?`, id).Scan(&started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Shift{}, core.ErrNotFound
	}
	if err != nil {
		return core.Shift{}, fmt.Errorf("load shift: %w", err)
	}

	shift, err := buildShift(id, started, ended)
	if err != nil {
		return core.Shift{}, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, ts, kind, amount, comment FROM ops WHERE shift_id = ? ORDER BY seq`, id)
	if err != nil {
		return core.Shift{}, fmt.Errorf("load operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			opID, ts, kind, comment string
			amount                  float64
		)
		if err := rows.Scan(&opID, &ts, &kind, &amount, &comment); err != nil {
			return core.Shift{}, fmt.Errorf("scan op: %w", err)
		}
		op, err := buildOperation(opID, ts, kind, amount, comment)
		if err != nil {
			return core.Shift{}, err
		}
		shift.Operations = append(shift.Operations, op)
	}
	return shift, rows.Err()
}

func buildShift(id, started string, ended sql.NullString) (core.Shift, error) {
	start, err := time.ParseInLocation(tsLayout, started, time.Local)
	if err != nil {
		return core.Shift{}, fmt.Errorf("parse started_at for shift %s: %w", id, err)
	}
	s := core.Shift{ID: id, StartTS: start, Operations: []core.Operation{}}
	if ended.Valid {
		end, err := time.ParseInLocation(tsLayout, ended.String, time.Local)
		if err != nil {
			return core.Shift{}, fmt.Errorf("parse ended_at for shift %s: %w", id, err)
		}
		s.EndTS = end
	}
	return s, nil
}

func buildOperation(id, ts, kind string, amount float64, comment string) (core.Operation, error) {
	at, err := time.ParseInLocation(tsLayout, ts, time.Local)
	if err != nil {
		return core.Operation{}, fmt.Errorf("parse ts for op %s: %w", id, err)
	}
	signed := int64(amount)
	if kind == kindOut {
		signed = -signed
	}
	return core.Operation{ID: id, TS: at, Amount: signed, Comment: comment}, nil
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
