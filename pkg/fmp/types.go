package fmp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date parses FMP's "2006-01-02" and "2006-01-02 15:04:05" forms.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fmp: unparseable date %q", s)
}

// PriceBar is one day of historical-price-full.
type PriceBar struct {
	Date     Date    `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   float64 `json:"volume"`
}

// Statement is one dated row of an FMP statement-like endpoint (income,
// balance sheet, cash flow, enterprise values, ratios). Only numeric fields
// are kept; an absent key means the column is missing.
type Statement struct {
	Date   time.Time
	Symbol string
	Period string
	Fields map[string]float64
}

func (s *Statement) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Fields = make(map[string]float64, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case float64:
			s.Fields[k] = x
		case string:
			switch k {
			case "date":
				t, err := parseDate(x)
				if err != nil {
					return err
				}
				s.Date = t
			case "symbol":
				s.Symbol = x
			case "period":
				s.Period = x
			}
		}
	}
	return nil
}

// Value returns the named field.
func (s Statement) Value(name string) (float64, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// Has reports whether every name is present.
func (s Statement) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := s.Fields[n]; !ok {
			return false
		}
	}
	return true
}

// SortStatements orders statements oldest first.
func SortStatements(s []Statement) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}

// Constituent is one row of sp500_constituent.
type Constituent struct {
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Sector         string `json:"sector"`
	SubSector      string `json:"subSector"`
	HeadQuarter    string `json:"headQuarter"`
	DateFirstAdded string `json:"dateFirstAdded"`
	CIK            string `json:"cik"`
	Founded        string `json:"founded"`
}

// NewsItem is one stock_news article.
type NewsItem struct {
	Symbol        string `json:"symbol"`
	PublishedDate Date   `json:"publishedDate"`
	Title         string `json:"title"`
	Text          string `json:"text"`
	Site          string `json:"site"`
	URL           string `json:"url"`
}

// EarningsEvent is one earning_calendar entry.
type EarningsEvent struct {
	Date             Date     `json:"date"`
	Symbol           string   `json:"symbol"`
	EPS              *float64 `json:"eps"`
	EPSEstimated     *float64 `json:"epsEstimated"`
	Revenue          *float64 `json:"revenue"`
	RevenueEstimated *float64 `json:"revenueEstimated"`
}

type peersResponse struct {
	Symbol    string   `json:"symbol"`
	PeersList []string `json:"peersList"`
}

type historicalResponse struct {
	Symbol     string     `json:"symbol"`
	Historical []PriceBar `json:"historical"`
}
