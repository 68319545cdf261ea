package eod

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-basket-bot/internal/tradelog"
)

func TestSummarizeDayFromJournal(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	j := tradelog.New(dir)
	j.SetClock(func() time.Time { return day })
	require.NoError(t, j.Order("w1", "EUR_USD", "uni-1", 1000, "11", nil))
	require.NoError(t, j.Order("w1", "EUR_USD", "uni-2", -400, "12", nil))
	require.NoError(t, j.Order("w1", "GBP_USD", "uni-3", 500, "", errors.New("MARKET_HALTED")))
	require.NoError(t, j.Closed("w1", "EUR_USD", "11", "trailing_stop", nil))
	require.NoError(t, j.Wipe("w1", "trailing_stop", 1, 0))
	require.NoError(t, j.TrailHit("w1", 8.1, 8))
	require.NoError(t, j.Sync())

	s := &eodSummarizer{dir: dir, now: time.Now}
	p, err := s.SummarizeDay(day)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "eod", "2025-03-12.csv"), p)

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 6)
	assert.Equal(t, []string{"EUR_USD", "2", "0", "1000", "400", "1", "0"}, rows[1])
	assert.Equal(t, []string{"GBP_USD", "0", "1", "0", "0", "0", "0"}, rows[2])
	assert.Equal(t, "TOTAL", rows[3][0])
	assert.Equal(t, "2", rows[3][1])
	assert.Equal(t, []string{"WIPES", "1", "incomplete", "0", "", "", ""}, rows[4])
	assert.Equal(t, "8.10", rows[5][3])
}

func TestSummarizeDayWithoutJournal(t *testing.T) {
	s := &eodSummarizer{dir: t.TempDir(), now: time.Now}
	p, err := s.SummarizeDay(time.Now())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p != "" {
		t.Errorf("Expected empty path, got %s", p)
	}
}

func TestDue(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 13, 0, 5, 0, 0, time.UTC)
	s := &eodSummarizer{dir: dir, now: func() time.Time { return now }}

	if _, ok := s.Due(); ok {
		t.Error("Expected nothing due without a journal")
	}

	j := tradelog.New(dir)
	j.SetClock(func() time.Time { return now.Add(-time.Hour) })
	require.NoError(t, j.Wipe("w1", "window_closed", 0, 0))
	require.NoError(t, j.Sync())

	day, ok := s.Due()
	require.True(t, ok)
	assert.Equal(t, "2025-03-12", day.Format("2006-01-02"))

	_, err := s.SummarizeDay(day)
	require.NoError(t, err)
	if _, ok := s.Due(); ok {
		t.Error("Expected nothing due after the summary was written")
	}
}
