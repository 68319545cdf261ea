package interfaces

import "time"

type EodSummarizer interface {
	SummarizeDay(day time.Time) (csvPath string, err error)
	// Due reports the most recent finished UTC day whose journal has not
	// been summarised yet.
	Due() (day time.Time, ok bool)
}
