package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethflower/smena/internal/core"
)

const dayLayout = "2006-01-02"

type (
	addOperationRequest struct {
		// Amount accepts a JSON number or a string with grouping characters
		// ("1 500", "1,500"), the way the entry field sends it.
		Amount  json.RawMessage `json:"amount"`
		Comment string          `json:"comment"`
	}

	resetHistoryRequest struct {
		Confirm string `json:"confirm"`
	}

	settingsRequest struct {
		Comments *struct {
			Income  []string `json:"income"`
			Expense []string `json:"expense"`
		} `json:"comments"`
		Overlay *struct {
			AlwaysOnTop bool `json:"always_on_top"`
			Opacity     int  `json:"opacity"`
			Frameless   bool `json:"frameless"`
		} `json:"overlay"`
	}
)

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// parseAmountField accepts either a JSON number or a quoted amount string.
func parseAmountField(raw json.RawMessage) (int64, error) {
	t := strings.TrimSpace(string(raw))
	if t == "" || t == "null" {
		return 0, core.ErrInvalidAmount
	}
	if strings.HasPrefix(t, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, core.ErrInvalidAmount
		}
		return core.ParseAmount(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, core.ErrInvalidAmount
	}
	return n, nil
}

// parseDayParam reads a ?date=YYYY-MM-DD query value, defaulting to today.
func parseDayParam(query url.Values) (time.Time, error) {
	v := strings.TrimSpace(query.Get("date"))
	if v == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation(dayLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", v)
	}
	return day, nil
}

// parseRangeParams reads ?from=&to=. A descending pair is swapped so the
// aggregator always receives an ascending range.
func parseRangeParams(query url.Values) (time.Time, time.Time, error) {
	fromStr := strings.TrimSpace(query.Get("from"))
	toStr := strings.TrimSpace(query.Get("to"))
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both from and to are required (YYYY-MM-DD)")
	}

	from, err := time.ParseInLocation(dayLayout, fromStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from %q: expected YYYY-MM-DD", fromStr)
	}
	to, err := time.ParseInLocation(dayLayout, toStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to %q: expected YYYY-MM-DD", toStr)
	}

	if from.After(to) {
		from, to = to, from
	}
	return from, to, nil
}

// parseTopParam reads ?top=N with a default and a sanity cap.
func parseTopParam(query url.Values, def int) int {
	v := strings.TrimSpace(query.Get("top"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}
