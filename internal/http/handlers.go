package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sethflower/smena/internal/core"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleActiveShift returns the active shift with derived totals, creating
// one on demand. The 1-second UI refresh hits this endpoint, so it always
// re-reads the store instead of trusting any cached shift reference.
func (s *Server) handleActiveShift(w http.ResponseWriter, r *http.Request) {
	shift, err := s.service.Store().ActiveShift(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftResponse(shift, time.Now()))
}

func (s *Server) handleAddOperation(w http.ResponseWriter, r *http.Request) {
	var req addOperationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmountField(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	op, err := s.service.AddOperation(r.Context(), amount, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateSummaries()

	writeJSON(w, http.StatusCreated, operationResponse{
		ID:      op.ID,
		TS:      op.TS.Format(time.RFC3339),
		Amount:  op.Amount,
		Comment: op.Comment,
	})
}

// handleFindOperation resolves an operation id back to its owning shift,
// e.g. after the user selects a row in an aggregated history view.
func (s *Server) handleFindOperation(w http.ResponseWriter, r *http.Request) {
	opID := r.PathValue("opID")
	shift, op, err := s.service.Store().FindOperation(r.Context(), opID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shift": toShiftResponse(shift, time.Now()),
		"operation": operationResponse{
			ID:      op.ID,
			TS:      op.TS.Format(time.RFC3339),
			Amount:  op.Amount,
			Comment: op.Comment,
		},
	})
}

// handleDeleteOperation deletes an operation. A stale id (already deleted
// from a detail dialog) still answers 204; the client re-reads state either way.
func (s *Server) handleDeleteOperation(w http.ResponseWriter, r *http.Request) {
	shiftID := r.PathValue("shiftID")
	opID := r.PathValue("opID")

	if err := s.service.DeleteOperation(r.Context(), shiftID, opID); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateSummaries()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCloseShift(w http.ResponseWriter, r *http.Request) {
	shift, err := s.service.CloseShift(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, toShiftResponse(shift, time.Now()))
}

func (s *Server) handleResetShift(w http.ResponseWriter, r *http.Request) {
	shift, err := s.service.ResetActiveOperations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, toShiftResponse(shift, time.Now()))
}

func (s *Server) handleResetHistory(w http.ResponseWriter, r *http.Request) {
	var req resetHistoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.service.ResetHistory(r.Context(), req.Confirm); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateSummaries()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAllTimeSummary(w http.ResponseWriter, r *http.Request) {
	shifts, err := s.service.Store().Shifts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsResponse(core.AllTimeTotals(shifts)))
}

func (s *Server) handleDaySummary(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayParam(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	key := day.Format(dayLayout)
	if cached, ok := s.dayCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toPeriodResponse(cached))
		return
	}

	shifts, err := s.service.Store().Shifts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	pt := core.TotalsForDay(shifts, day)
	s.dayCache.Set(key, pt)
	writeJSON(w, http.StatusOK, toPeriodResponse(pt))
}

func (s *Server) handleRangeSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRangeParams(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	key := fmt.Sprintf("%s:%s", from.Format(dayLayout), to.Format(dayLayout))
	if cached, ok := s.rangeCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toPeriodResponse(cached))
		return
	}

	shifts, err := s.service.Store().Shifts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	pt := core.TotalsForRange(shifts, from, to)
	s.rangeCache.Set(key, pt)
	writeJSON(w, http.StatusOK, toPeriodResponse(pt))
}

func (s *Server) handleExpenseBreakdown(w http.ResponseWriter, r *http.Request) {
	topN := parseTopParam(r.URL.Query(), 5)

	shifts, err := s.service.Store().Shifts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	rows := core.ExpenseBreakdown(shifts, topN)
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"comment": row.Comment,
			"expense": row.Expense,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistoryDays(w http.ResponseWriter, r *http.Request) {
	const key = "all"
	if cached, ok := s.daysCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toDaySummaryResponses(cached))
		return
	}

	shifts, err := s.service.Store().Shifts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	days := core.DaySummaries(shifts)
	s.daysCache.Set(key, days)
	writeJSON(w, http.StatusOK, toDaySummaryResponses(days))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.SettingsStore().Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload(settings))
}

// handlePutSettings updates comment presets and/or overlay preferences.
// Absent sections are left untouched.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if req.Comments != nil {
		err := s.service.SettingsStore().SetComments(r.Context(), core.CommentPresets{
			Income:  req.Comments.Income,
			Expense: req.Comments.Expense,
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Overlay != nil {
		err := s.service.SettingsStore().SetOverlay(r.Context(), core.OverlaySettings{
			AlwaysOnTop: req.Overlay.AlwaysOnTop,
			Opacity:     req.Overlay.Opacity,
			Frameless:   req.Overlay.Frameless,
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}

	settings, err := s.service.SettingsStore().Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload(settings))
}

func settingsPayload(settings core.Settings) map[string]any {
	return map[string]any{
		"comments": map[string]any{
			"income":  settings.Comments.Income,
			"expense": settings.Comments.Expense,
			// The manual-entry choice is always offered, never stored.
			"other": core.OtherComment,
		},
		"overlay": map[string]any{
			"always_on_top": settings.Overlay.AlwaysOnTop,
			"opacity":       settings.Overlay.Opacity,
			"frameless":     settings.Overlay.Frameless,
		},
	}
}
