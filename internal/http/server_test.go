package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sethflower/smena/internal/ledger/memory"
	"github.com/sethflower/smena/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := services.NewLedgerService(memory.New(), nil)
	return NewServer(":0", svc, nil, time.Minute)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestActiveShiftEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/shift/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var shift shiftResponse
	decodeBody(t, rec, &shift)
	if !shift.Active || shift.EndTS != nil || len(shift.Operations) != 0 {
		t.Fatalf("fresh active shift malformed: %+v", shift)
	}
}

func TestAddOperationAcceptsNumberAndString(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": 1500, "comment": "Заказ"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("numeric amount: status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": "-1 200", "comment": "Бензин"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("string amount: status = %d: %s", rec.Code, rec.Body.String())
	}
	var op operationResponse
	decodeBody(t, rec, &op)
	if op.Amount != -1200 {
		t.Fatalf("grouped string amount parsed to %d", op.Amount)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/shift/active", nil)
	var shift shiftResponse
	decodeBody(t, rec, &shift)
	if shift.Totals.Income != 1500 || shift.Totals.Expense != 1200 || shift.Totals.Net != 300 {
		t.Fatalf("totals after adds = %+v", shift.Totals)
	}
	// Newest first for display.
	if shift.Operations[0].Comment != "Бензин" {
		t.Fatalf("operations not newest-first: %+v", shift.Operations)
	}
}

func TestAddOperationValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"zero amount", map[string]any{"amount": 0, "comment": "Заказ"}},
		{"empty comment", map[string]any{"amount": 100, "comment": ""}},
		{"garbage amount", map[string]any{"amount": "12a", "comment": "Заказ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/operations", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}

	rec := doJSON(t, s, http.MethodGet, "/api/shift/active", nil)
	var shift shiftResponse
	decodeBody(t, rec, &shift)
	if len(shift.Operations) != 0 {
		t.Fatalf("rejected entries must not be applied")
	}
}

func TestDeleteOperationIsBenign(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": 100, "comment": "Заказ"})
	var op operationResponse
	decodeBody(t, rec, &op)

	rec = doJSON(t, s, http.MethodGet, "/api/shift/active", nil)
	var shift shiftResponse
	decodeBody(t, rec, &shift)

	// Stale ids answer 204 as well.
	rec = doJSON(t, s, http.MethodDelete,
		fmt.Sprintf("/api/shifts/%s/operations/%s", shift.ID, "stale"), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("stale delete status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete,
		fmt.Sprintf("/api/shifts/%s/operations/%s", shift.ID, op.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/shift/active", nil)
	decodeBody(t, rec, &shift)
	if len(shift.Operations) != 0 {
		t.Fatalf("operation still listed after delete")
	}
}

func TestCloseShiftStartsNew(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/shift/active", nil)
	var first shiftResponse
	decodeBody(t, rec, &first)

	rec = doJSON(t, s, http.MethodPost, "/api/shift/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}
	var second shiftResponse
	decodeBody(t, rec, &second)
	if second.ID == first.ID || !second.Active {
		t.Fatalf("close did not activate a new shift: %+v", second)
	}
}

func TestFindOperationEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": 700, "comment": "Доставка"})
	var op operationResponse
	decodeBody(t, rec, &op)

	rec = doJSON(t, s, http.MethodGet, "/api/operations/"+op.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("find status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/operations/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing operation status = %d, want 404", rec.Code)
	}
}

func TestDayAndRangeSummaries(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": 1000, "comment": "Заказ"})
	doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": -200, "comment": "Бензин"})

	today := time.Now().Format("2006-01-02")
	rec := doJSON(t, s, http.MethodGet, "/api/summary/day?date="+today, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("day status = %d", rec.Code)
	}
	var day periodResponse
	decodeBody(t, rec, &day)
	if day.Income != 1000 || day.Expense != 200 || day.Net != 800 || day.ShiftCount != 1 {
		t.Fatalf("day summary = %+v", day)
	}

	// Descending ranges are normalized before aggregation.
	rec = doJSON(t, s, http.MethodGet,
		fmt.Sprintf("/api/summary/range?from=%s&to=%s", today, today), nil)
	var rng periodResponse
	decodeBody(t, rec, &rng)
	if rng.Net != 800 {
		t.Fatalf("range summary = %+v", rng)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/summary/range?from="+today, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing to must be 400, got %d", rec.Code)
	}
}

func TestSummaryCacheInvalidatedByMutation(t *testing.T) {
	s := newTestServer(t)
	today := time.Now().Format("2006-01-02")

	doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": 100, "comment": "Заказ"})
	doJSON(t, s, http.MethodGet, "/api/summary/day?date="+today, nil)

	doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": 400, "comment": "Заказ"})
	rec := doJSON(t, s, http.MethodGet, "/api/summary/day?date="+today, nil)
	var day periodResponse
	decodeBody(t, rec, &day)
	if day.Income != 500 {
		t.Fatalf("mutation did not invalidate cached summary: %+v", day)
	}
}

func TestExpenseBreakdownEndpoint(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/operations", map[string]any{"amount": -300, "comment": "Бензин"})
	doJSON(t, s, http.MethodPost, "/api/operations", map[string]any{"amount": -500, "comment": "Бензин"})
	doJSON(t, s, http.MethodPost, "/api/operations", map[string]any{"amount": -100, "comment": "Штраф"})

	rec := doJSON(t, s, http.MethodGet, "/api/summary/expenses?top=1", nil)
	var rows []map[string]any
	decodeBody(t, rec, &rows)
	if len(rows) != 1 || rows[0]["comment"] != "Бензин" || rows[0]["expense"] != float64(800) {
		t.Fatalf("breakdown = %+v", rows)
	}
}

func TestResetHistoryRequiresPhrase(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/operations",
		map[string]any{"amount": 100, "comment": "Заказ"})

	rec := doJSON(t, s, http.MethodPost, "/api/history/reset",
		map[string]any{"confirm": "да"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong phrase status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/history/reset",
		map[string]any{"confirm": "СБРОС"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/summary/alltime", nil)
	var totals totalsResponse
	decodeBody(t, rec, &totals)
	if totals.Income != 0 || totals.Expense != 0 {
		t.Fatalf("history survived reset: %+v", totals)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/settings", nil)
	var settings map[string]any
	decodeBody(t, rec, &settings)
	comments := settings["comments"].(map[string]any)
	if comments["other"] == "" {
		t.Fatalf("manual-entry choice missing from settings payload")
	}

	rec = doJSON(t, s, http.MethodPut, "/api/settings", map[string]any{
		"overlay": map[string]any{"always_on_top": false, "opacity": 10, "frameless": true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put settings status = %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &settings)
	overlay := settings["overlay"].(map[string]any)
	if overlay["opacity"] != float64(30) {
		t.Fatalf("opacity must clamp to 30, got %v", overlay["opacity"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}
