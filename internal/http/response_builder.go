package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethflower/smena/internal/core"
)

type (
	operationResponse struct {
		ID      string `json:"id"`
		TS      string `json:"ts"`
		Amount  int64  `json:"amount"`
		Comment string `json:"comment"`
	}

	totalsResponse struct {
		Income  int64 `json:"income"`
		Expense int64 `json:"expense"`
		Net     int64 `json:"net"`
	}

	shiftResponse struct {
		ID              string              `json:"id"`
		StartTS         string              `json:"start_ts"`
		EndTS           *string             `json:"end_ts"`
		Active          bool                `json:"active"`
		DurationSeconds int64               `json:"duration_seconds"`
		Totals          totalsResponse      `json:"totals"`
		Operations      []operationResponse `json:"operations"`
	}

	periodResponse struct {
		totalsResponse
		ShiftCount     int `json:"shift_count"`
		OperationCount int `json:"operation_count"`
	}

	daySummaryResponse struct {
		Day            string `json:"day"`
		ShiftCount     int    `json:"shift_count"`
		OperationCount int    `json:"operation_count"`
		Net            int64  `json:"net"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func toDaySummaryResponses(days []core.DaySummary) []daySummaryResponse {
	out := make([]daySummaryResponse, 0, len(days))
	for _, d := range days {
		out = append(out, daySummaryResponse{
			Day:            d.Day,
			ShiftCount:     d.ShiftCount,
			OperationCount: d.OperationCount,
			Net:            d.Net,
		})
	}
	return out
}

func toTotalsResponse(t core.Totals) totalsResponse {
	return totalsResponse{Income: t.Income, Expense: t.Expense, Net: t.Net}
}

func toPeriodResponse(pt core.PeriodTotals) periodResponse {
	return periodResponse{
		totalsResponse: toTotalsResponse(pt.Totals),
		ShiftCount:     pt.ShiftCount,
		OperationCount: pt.OperationCount,
	}
}

// toShiftResponse renders a shift with derived totals and duration.
// Operations are returned newest-first, the order the UI displays them in.
func toShiftResponse(s core.Shift, now time.Time) shiftResponse {
	resp := shiftResponse{
		ID:              s.ID,
		StartTS:         s.StartTS.Format(time.RFC3339),
		Active:          s.Active(),
		DurationSeconds: int64(core.ShiftDuration(s, now).Seconds()),
		Totals:          toTotalsResponse(core.ShiftTotals(s)),
		Operations:      make([]operationResponse, 0, len(s.Operations)),
	}
	if !s.EndTS.IsZero() {
		end := s.EndTS.Format(time.RFC3339)
		resp.EndTS = &end
	}
	for i := len(s.Operations) - 1; i >= 0; i-- {
		op := s.Operations[i]
		resp.Operations = append(resp.Operations, operationResponse{
			ID:      op.ID,
			TS:      op.TS.Format(time.RFC3339),
			Amount:  op.Amount,
			Comment: op.Comment,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// writeError maps domain errors onto HTTP statuses: validation failures are
// the client's fault, missing items are 404, everything else is a storage
// problem the caller should see as a 500 rather than false success.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrZeroAmount),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyComment),
		errors.Is(err, core.ErrBadConfirm):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
