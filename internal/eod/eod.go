// Package eod turns a day's trade journal into a CSV summary under
// <journal dir>/eod/YYYY-MM-DD.csv.
package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"weekly-basket-bot/internal/interfaces"
)

type eodSummarizer struct {
	dir string
	now func() time.Time
}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

// NewSummarizer reads journal files from dir, the directory the tradelog
// journal writes to.
func NewSummarizer(dir string) interfaces.EodSummarizer {
	return &eodSummarizer{dir: dir, now: time.Now}
}

func (s *eodSummarizer) journalFile(t time.Time) string {
	return filepath.Join(s.dir, t.UTC().Format("2006-01-02")+".txt")
}

func (s *eodSummarizer) csvPath(t time.Time) string {
	return filepath.Join(s.dir, "eod", t.UTC().Format("2006-01-02")+".csv")
}

// Due returns yesterday (UTC) when its journal exists and no summary has
// been written for it.
func (s *eodSummarizer) Due() (time.Time, bool) {
	day := s.now().UTC().AddDate(0, 0, -1)
	if _, err := os.Stat(s.journalFile(day)); err != nil {
		return day, false
	}
	if _, err := os.Stat(s.csvPath(day)); errors.Is(err, os.ErrNotExist) {
		return day, true
	}
	return day, false
}

// SummarizeDay returns "" with a nil error when the day has no journal or no
// events.
func (s *eodSummarizer) SummarizeDay(day time.Time) (string, error) {
	inPath := s.journalFile(day)
	f, err := os.Open(inPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	row := func(instrument string) *aggRow {
		r := aggs[instrument]
		if r == nil {
			r = &aggRow{Instrument: instrument}
			aggs[instrument] = r
		}
		return r
	}
	var totals dayTotals
	events := 0

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var l journalLine
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			continue
		}
		events++
		switch l.Event {
		case "ORDER_FILLED":
			r := row(l.Instrument)
			r.Filled++
			if l.Units > 0 {
				r.LongUnits += l.Units
			} else {
				r.ShortUnits -= l.Units
			}
		case "ORDER_REJECTED":
			row(l.Instrument).Rejected++
		case "CLOSE":
			r := row(l.Instrument)
			r.Closes++
			if l.Error != "" {
				r.CloseErrors++
			}
		case "WIPE":
			totals.Wipes++
			if l.Remaining > 0 {
				totals.WipesIncomplete++
			}
		case "TRAIL_HIT":
			totals.TrailHits++
			totals.LastProfitPct = l.ProfitPct
		default:
			events--
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if events == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := s.csvPath(day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"instrument", "filled", "rejected", "long_units", "short_units", "closes", "close_errors"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var filled, rejected, closes int
	for _, k := range keys {
		r := aggs[k]
		rec := []string{
			r.Instrument,
			strconv.Itoa(r.Filled),
			strconv.Itoa(r.Rejected),
			strconv.FormatFloat(r.LongUnits, 'f', -1, 64),
			strconv.FormatFloat(r.ShortUnits, 'f', -1, 64),
			strconv.Itoa(r.Closes),
			strconv.Itoa(r.CloseErrors),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		filled += r.Filled
		rejected += r.Rejected
		closes += r.Closes
	}
	_ = w.Write([]string{"TOTAL", strconv.Itoa(filled), strconv.Itoa(rejected), "", "", strconv.Itoa(closes), ""})
	_ = w.Write([]string{"WIPES", strconv.Itoa(totals.Wipes), "incomplete", strconv.Itoa(totals.WipesIncomplete), "", "", ""})
	_ = w.Write([]string{"TRAIL_HITS", strconv.Itoa(totals.TrailHits), "profit_pct", fmt.Sprintf("%.2f", totals.LastProfitPct), "", "", ""})
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}
