package eodobs

import (
	"context"
	"time"

	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(day time.Time) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeDay")
	defer span.End()

	date := day.UTC().Format("2006-01-02")
	logger.InfoSkip(ctx, 1, "Starting journal summary", "date", date)

	csvPath, err := oes.summarizer.SummarizeDay(day)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Journal summary failed", err, "date", date)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No journal events to summarize", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Journal summary written", "date", date, "csv_path", csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) Due() (time.Time, bool) {
	day, ok := oes.summarizer.Due()
	logger.DebugSkip(context.Background(), 1, "Journal summary check",
		"date", day.Format("2006-01-02"),
		"due", ok,
	)
	return day, ok
}
