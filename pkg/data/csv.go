package data

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	tickerHeader = "Ticker"
	dateHeader   = "date"
)

// StreamCSV reads a factor CSV (Ticker,date,<columns...>) and sends one Row per
// record on out. The header callback receives the factor column names before
// the first row. Empty, "NA" and "NaN" cells become NaN. out is closed on return.
func StreamCSV(ctx context.Context, r io.Reader, header func([]string), out chan<- Row) error {
	defer close(out)

	reader := csv.NewReader(bufio.NewReader(r))
	head, err := reader.Read()
	if err != nil {
		return fmt.Errorf("data: read header: %w", err)
	}
	ti, di := -1, -1
	var cols []string
	var colIdx []int
	for i, h := range head {
		switch strings.TrimSpace(h) {
		case tickerHeader:
			ti = i
		case dateHeader:
			di = i
		default:
			cols = append(cols, h)
			colIdx = append(colIdx, i)
		}
	}
	if ti < 0 || di < 0 {
		return fmt.Errorf("data: header must contain %q and %q columns", tickerHeader, dateHeader)
	}
	header(cols)

	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("data: line %d: %w", line, err)
		}
		date, err := time.Parse(DateLayout, rec[di])
		if err != nil {
			return fmt.Errorf("data: line %d: bad date %q: %w", line, rec[di], err)
		}
		vals := make([]float64, len(colIdx))
		for k, j := range colIdx {
			vals[k] = parseCell(rec[j])
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- Row{Ticker: rec[ti], Date: date, Values: vals}:
		}
	}
}

func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "NaN" || s == "nan" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadCSV loads a whole factor CSV into a Frame.
func ReadCSV(ctx context.Context, r io.Reader) (*Frame, error) {
	rows := make(chan Row, 256)
	f := &Frame{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- StreamCSV(ctx, r, func(cols []string) { f.Columns = cols }, rows)
	}()
	for row := range rows {
		f.Rows = append(f.Rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return f, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(ctx context.Context, path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(ctx, file)
}

// WriteCSV writes f as Ticker,date,<columns...>. NaN is written as an empty cell.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	head := append([]string{tickerHeader, dateHeader}, f.Columns...)
	if err := cw.Write(head); err != nil {
		return err
	}
	rec := make([]string, len(head))
	for _, r := range f.Rows {
		rec[0] = r.Ticker
		rec[1] = r.Date.Format(DateLayout)
		for j, v := range r.Values {
			rec[j+2] = FormatFloat(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path and writes f to it.
func WriteCSVFile(path string, f *Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// FormatFloat renders v for CSV output; NaN and infinities become empty.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadTickers reads the named column (e.g. "Symbol") from a CSV of tickers,
// skipping blanks and duplicates.
func ReadTickers(r io.Reader, column string) ([]string, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	head, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("data: read tickers header: %w", err)
	}
	idx := -1
	for i, h := range head {
		if strings.TrimSpace(h) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("data: tickers file has no %q column", column)
	}
	var out []string
	seen := map[string]bool{}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if idx >= len(rec) {
			continue
		}
		t := strings.TrimSpace(rec[idx])
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
}

// ReadTickersFile opens path and reads it with ReadTickers.
func ReadTickersFile(path, column string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadTickers(file, column)
}
