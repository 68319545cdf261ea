package tradelog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestJournalWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)
	j.now = func() time.Time { return time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, j.Order("w1", "EUR_USD", "uni-EURUSD-dealer-0a1b2c3d", 1000, "42", nil))
	require.NoError(t, j.Order("w1", "USD_JPY", "uni-USDJPY-dealer-0a1b2c3d", -500, "", errors.New("MARKET_HALTED")))
	require.NoError(t, j.Wipe("w1", "unmanaged exposure", 3, 0))
	require.NoError(t, j.Sync())

	lines := readLines(t, filepath.Join(dir, "2025-03-11.txt"))
	require.Len(t, lines, 3)
	assert.Equal(t, "ORDER_FILLED", lines[0]["msg"])
	assert.Equal(t, "42", lines[0]["order_id"])
	assert.Equal(t, "ORDER_REJECTED", lines[1]["msg"])
	assert.Equal(t, "MARKET_HALTED", lines[1]["error"])
	assert.Equal(t, "WIPE", lines[2]["msg"])
	assert.EqualValues(t, 3, lines[2]["closed"])
}

func TestJournalRollsOverAtMidnight(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)
	now := time.Date(2025, 3, 11, 23, 59, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	require.NoError(t, j.TrailHit("w1", 7.9, 8.0))
	now = now.Add(2 * time.Minute)
	require.NoError(t, j.Closed("w1", "EUR_USD", "101", "trailing stop", nil))
	require.NoError(t, j.Sync())

	assert.Len(t, readLines(t, filepath.Join(dir, "2025-03-11.txt")), 1)
	assert.Len(t, readLines(t, filepath.Join(dir, "2025-03-12.txt")), 1)
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2025-01-01.txt")
	fresh := filepath.Join(dir, "2025-03-10.txt")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}\n"), 0o644))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))

	j := New(dir)
	require.NoError(t, j.CompressOlder(14))

	_, err := os.Stat(old + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
