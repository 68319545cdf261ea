// Package tradelog is the audit journal: one JSON line per order, close and
// wipe, in a daily file under TRADER_LOG_DIR.
package tradelog

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Journal struct {
	mu   sync.Mutex
	dir  string
	day  string
	file *os.File
	log  *zap.Logger
	now  func() time.Time
}

var (
	defaultOnce    sync.Once
	defaultJournal *Journal
)

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

// RetentionDays reads TRADER_LOG_RETENTION_DAYS (default 14).
func RetentionDays() int {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 14
}

func New(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

// Default returns the process-wide journal rooted at TRADER_LOG_DIR.
func Default() *Journal {
	defaultOnce.Do(func() { defaultJournal = New(logDir()) })
	return defaultJournal
}

// SetClock replaces the clock used to pick the daily file.
func (j *Journal) SetClock(now func() time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.now = now
}

// Dir returns the directory the journal writes to.
func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.dir, t.UTC().Format("2006-01-02")+".txt")
}

// logger returns a zap logger bound to today's file, reopening on day change.
func (j *Journal) logger() (*zap.Logger, error) {
	now := j.now().UTC()
	day := now.Format("2006-01-02")
	if j.log != nil && j.day == day {
		return j.log, nil
	}
	if j.file != nil {
		_ = j.log.Sync()
		_ = j.file.Close()
		j.file, j.log = nil, nil
	}

	p := j.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zapcore.InfoLevel)

	j.file, j.day = f, day
	j.log = zap.New(core)
	return j.log, nil
}

func (j *Journal) write(event string, fields ...zap.Field) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	l, err := j.logger()
	if err != nil {
		return err
	}
	l.Info(event, fields...)
	return nil
}

// Order records a market order attempt. err is nil for fills.
func (j *Journal) Order(weekID, instrument, tag string, units float64, orderID string, err error) error {
	fields := []zap.Field{
		zap.String("week_id", weekID),
		zap.String("instrument", instrument),
		zap.String("tag", tag),
		zap.Float64("units", units),
	}
	if err != nil {
		return j.write("ORDER_REJECTED", append(fields, zap.Error(err))...)
	}
	return j.write("ORDER_FILLED", append(fields, zap.String("order_id", orderID))...)
}

// Closed records a trade or position close.
func (j *Journal) Closed(weekID, instrument, tradeID, reason string, err error) error {
	fields := []zap.Field{
		zap.String("week_id", weekID),
		zap.String("instrument", instrument),
		zap.String("trade_id", tradeID),
		zap.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return j.write("CLOSE", fields...)
}

// Wipe records the outcome of a close-everything run.
func (j *Journal) Wipe(weekID, reason string, closed, remaining int) error {
	return j.write("WIPE",
		zap.String("week_id", weekID),
		zap.String("reason", reason),
		zap.Int("closed", closed),
		zap.Int("remaining", remaining),
	)
}

// TrailHit records a trailing stop exit.
func (j *Journal) TrailHit(weekID string, profitPct, lockedPct float64) error {
	return j.write("TRAIL_HIT",
		zap.String("week_id", weekID),
		zap.Float64("profit_pct", profitPct),
		zap.Float64("locked_pct", lockedPct),
	)
}

// Sync flushes and closes the current file.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	_ = j.log.Sync()
	err := j.file.Close()
	j.file, j.log, j.day = nil, nil, ""
	return err
}

// CompressOlder gzips journal files not modified in retentionDays days.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := d.Info()
		if er != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			gz := p + ".gz"
			// if already gz exists, remove original .txt
			if _, e2 := os.Stat(gz); e2 == nil {
				_ = os.Remove(p)
				return nil
			}
			compressFile(p, gz)
		}
		return nil
	})
}

func compressFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}
	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	_ = gw.Close()
	_ = out.Close()
	if copyErr == nil {
		_ = os.Remove(src)
	} else {
		_ = os.Remove(dst)
	}
}
