// Package core holds the ledger domain: operations, shifts, settings,
// validation and the pure aggregation functions over shift snapshots.
package core

import (
	"strconv"
	"strings"
)

// ParseAmount converts user input to a signed whole-currency amount.
//
// Spaces and commas are treated as grouping characters and stripped
// ("1 500" and "1,500" both parse to 1500). A single leading minus marks an
// expense. Anything else non-numeric is rejected. Note that a parsed zero is
// syntactically valid here; ValidateEntry rejects it before any mutation.
func ParseAmount(s string) (int64, error) {
	t := strings.TrimSpace(s)
	t = strings.ReplaceAll(t, " ", "")
	t = strings.ReplaceAll(t, ",", "")
	if t == "" {
		return 0, ErrInvalidAmount
	}

	digits := t
	if t[0] == '-' {
		if len(t) == 1 {
			return 0, ErrInvalidAmount
		}
		digits = t[1:]
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}

	v, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatMoney renders an amount with space-separated thousands groups,
// the way the overlay displays totals ("12 345", "-1 500").
func FormatMoney(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
