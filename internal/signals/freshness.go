package signals

import "time"

const MaxReportAge = 14 * 24 * time.Hour

// EvaluateFreshness decides whether a positioning report is recent enough to trade on.
func EvaluateFreshness(reportDate string, now time.Time) (bool, string) {
	if reportDate == "" {
		return false, "missing report_date"
	}
	report, err := ParseReportDate(reportDate)
	if err != nil {
		return false, "invalid report_date"
	}
	if report.After(now) {
		return false, "report_date is in the future"
	}
	if now.Sub(report) > MaxReportAge {
		return false, "report_date is stale"
	}
	return true, "fresh"
}

// ParseReportDate accepts a plain date (taken as UTC midnight) or an RFC 3339 timestamp.
func ParseReportDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
