package core

import (
	"sort"
	"time"
)

type (
	// Totals is the income/expense/net reduction over a set of operations.
	// Expense is kept as a positive magnitude, so Net = Income - Expense.
	Totals struct {
		Income  int64
		Expense int64
		Net     int64
	}

	// PeriodTotals extends Totals with shift and operation counts for
	// day and range views.
	PeriodTotals struct {
		Totals
		ShiftCount     int
		OperationCount int
	}

	// CommentExpense is one row of the expense breakdown.
	CommentExpense struct {
		Comment string
		Expense int64
	}

	// DaySummary is one row of the history-by-day view.
	DaySummary struct {
		Day            string // YYYY-MM-DD
		ShiftCount     int
		OperationCount int
		Net            int64
	}
)

func (t *Totals) add(amount int64) {
	if amount >= 0 {
		t.Income += amount
	} else {
		t.Expense += -amount
	}
	t.Net = t.Income - t.Expense
}

// ShiftTotals reduces one shift's operations.
func ShiftTotals(s Shift) Totals {
	var t Totals
	for _, op := range s.Operations {
		t.add(op.Amount)
	}
	return t
}

// AllTimeTotals reduces every operation of every shift ever recorded.
// It always equals the fold of ShiftTotals over the same snapshot.
func AllTimeTotals(shifts []Shift) Totals {
	var t Totals
	for _, s := range shifts {
		for _, op := range s.Operations {
			t.add(op.Amount)
		}
	}
	return t
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// TotalsForDay reduces the shifts whose StartTS falls on the given calendar day.
func TotalsForDay(shifts []Shift, day time.Time) PeriodTotals {
	var pt PeriodTotals
	for _, s := range shifts {
		if !SameDay(s.StartTS, day) {
			continue
		}
		pt.ShiftCount++
		pt.OperationCount += len(s.Operations)
		for _, op := range s.Operations {
			pt.add(op.Amount)
		}
	}
	return pt
}

// TotalsForRange reduces the shifts whose StartTS date falls in [from, to]
// inclusive. Callers pass the bounds in ascending order; the HTTP layer swaps
// a descending pair before calling.
func TotalsForRange(shifts []Shift, from, to time.Time) PeriodTotals {
	lo := dayStart(from)
	hi := dayStart(to).AddDate(0, 0, 1)

	var pt PeriodTotals
	for _, s := range shifts {
		st := s.StartTS
		if st.Before(lo) || !st.Before(hi) {
			continue
		}
		pt.ShiftCount++
		pt.OperationCount += len(s.Operations)
		for _, op := range s.Operations {
			pt.add(op.Amount)
		}
	}
	return pt
}

// ExpenseBreakdown groups expense magnitude by exact comment string
// (case-sensitive, no normalization), sorted descending by total and
// truncated to topN. topN <= 0 means no truncation.
func ExpenseBreakdown(shifts []Shift, topN int) []CommentExpense {
	sums := make(map[string]int64)
	order := make([]string, 0)
	for _, s := range shifts {
		for _, op := range s.Operations {
			if op.Amount >= 0 {
				continue
			}
			if _, seen := sums[op.Comment]; !seen {
				order = append(order, op.Comment)
			}
			sums[op.Comment] += -op.Amount
		}
	}

	out := make([]CommentExpense, 0, len(order))
	for _, c := range order {
		out = append(out, CommentExpense{Comment: c, Expense: sums[c]})
	}
	// Stable keeps first-seen order between equal totals.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Expense > out[j].Expense
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// ShiftDuration returns how long the shift has run, using now for a still
// active shift. Negative results from clock skew are floored at zero.
func ShiftDuration(s Shift, now time.Time) time.Duration {
	end := s.EndTS
	if s.Active() {
		end = now
	}
	d := end.Sub(s.StartTS)
	if d < 0 {
		return 0
	}
	return d
}

// DaySummaries buckets shifts by the calendar day of StartTS and returns one
// row per day, newest day first. Within a day, ledger order is preserved by
// the reduction itself.
func DaySummaries(shifts []Shift) []DaySummary {
	byDay := make(map[string]*DaySummary)
	days := make([]string, 0)
	for _, s := range shifts {
		key := s.StartTS.Format("2006-01-02")
		row, ok := byDay[key]
		if !ok {
			row = &DaySummary{Day: key}
			byDay[key] = row
			days = append(days, key)
		}
		row.ShiftCount++
		row.OperationCount += len(s.Operations)
		for _, op := range s.Operations {
			row.Net += op.Amount
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	out := make([]DaySummary, 0, len(days))
	for _, d := range days {
		out = append(out, *byDay[d])
	}
	return out
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
