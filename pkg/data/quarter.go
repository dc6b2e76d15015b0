package data

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuarterStart returns the first day of t's calendar quarter.
func QuarterStart(t time.Time) time.Time {
	m := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), m, 1, 0, 0, 0, 0, time.UTC)
}

// QuarterStarts lists every quarter start in [from, to].
func QuarterStarts(from, to time.Time) []time.Time {
	q := QuarterStart(from)
	if q.Before(from) {
		q = q.AddDate(0, 3, 0)
	}
	var out []time.Time
	for ; !q.After(to); q = q.AddDate(0, 3, 0) {
		out = append(out, q)
	}
	return out
}

// FormatList renders symbols as a JSON array for a single CSV cell.
func FormatList(symbols []string) string {
	if symbols == nil {
		symbols = []string{}
	}
	b, _ := json.Marshal(symbols)
	return string(b)
}

// ParseList reads a cell written by FormatList. Single-quoted lists such as
// ['AAPL', 'MSFT'] are accepted too.
func ParseList(cell string) ([]string, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(strings.ReplaceAll(cell, "'", `"`)), &out); err != nil {
		return nil, fmt.Errorf("data: parse list %q: %w", cell, err)
	}
	return out, nil
}
