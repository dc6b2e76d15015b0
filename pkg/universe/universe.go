// Package universe reconstructs the S&P 500 membership at each quarter start
// from the date every current constituent was first added.
package universe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockml/pkg/data"
	"stockml/pkg/fmp"
)

// Snapshot is the constituent set on one quarter start.
type Snapshot struct {
	Date    time.Time
	Symbols []string
}

// Timeline is a chronological list of snapshots.
type Timeline []Snapshot

// Source lists the current index constituents. *fmp.Client satisfies it.
type Source interface {
	SP500Constituents(ctx context.Context) ([]fmp.Constituent, error)
}

type addition struct {
	symbol string
	date   time.Time
}

var addedLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "01/02/2006", "2006"}

func parseAdded(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	// FMP sometimes appends the original date in parentheses.
	if i := strings.IndexByte(s, '('); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, layout := range addedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Build applies every addition dated on or before each quarter start from
// startYear-01-01 to endYear-12-31. Constituents with a missing or
// unparseable addition date never join.
func Build(cons []fmp.Constituent, startYear, endYear int, logger *zap.Logger) Timeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	adds := make([]addition, 0, len(cons))
	for _, c := range cons {
		if c.Symbol == "" {
			continue
		}
		t, ok := parseAdded(c.DateFirstAdded)
		if !ok {
			logger.Debug("constituent without usable addition date",
				zap.String("symbol", c.Symbol), zap.String("dateFirstAdded", c.DateFirstAdded))
			continue
		}
		adds = append(adds, addition{symbol: c.Symbol, date: t})
	}
	sort.SliceStable(adds, func(i, j int) bool { return adds[i].date.Before(adds[j].date) })

	from := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(endYear, 12, 31, 0, 0, 0, 0, time.UTC)
	current := map[string]bool{}
	next := 0
	var out Timeline
	for _, q := range data.QuarterStarts(from, to) {
		for next < len(adds) && !adds[next].date.After(q) {
			current[adds[next].symbol] = true
			next++
		}
		syms := make([]string, 0, len(current))
		for s := range current {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		out = append(out, Snapshot{Date: q, Symbols: syms})
	}
	return out
}

// Fetch downloads the constituents and builds their timeline.
func Fetch(ctx context.Context, src Source, startYear, endYear int, logger *zap.Logger) (Timeline, error) {
	cons, err := src.SP500Constituents(ctx)
	if err != nil {
		return nil, fmt.Errorf("universe: fetch constituents: %w", err)
	}
	return Build(cons, startYear, endYear, logger), nil
}

// At returns the latest snapshot on or before date.
func (t Timeline) At(date time.Time) (Snapshot, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Date.After(date) })
	if i == 0 {
		return Snapshot{}, false
	}
	return t[i-1], true
}

// Symbols returns every symbol that appears in any snapshot, sorted.
func (t Timeline) Symbols() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range t {
		for _, sym := range s.Symbols {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	sort.Strings(out)
	return out
}

// WriteCSV writes the timeline as date,constituents.
func (t Timeline) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "constituents"}); err != nil {
		return err
	}
	for _, s := range t {
		if err := cw.Write([]string{s.Date.Format(data.DateLayout), data.FormatList(s.Symbols)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a timeline written by WriteCSV.
func ReadCSV(r io.Reader) (Timeline, error) {
	cr := csv.NewReader(r)
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("universe: read header: %w", err)
	}
	var out Timeline
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("universe: %w", err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("universe: short record %v", rec)
		}
		d, err := time.Parse(data.DateLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("universe: bad date %q: %w", rec[0], err)
		}
		syms, err := data.ParseList(rec[1])
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{Date: d, Symbols: syms})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
