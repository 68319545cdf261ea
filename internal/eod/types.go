package eod

// journalLine is one JSON line written by the tradelog package. Fields not
// used by an event are left empty.
type journalLine struct {
	Time       string  `json:"time"`
	Event      string  `json:"msg"`
	WeekID     string  `json:"week_id"`
	Instrument string  `json:"instrument"`
	Tag        string  `json:"tag"`
	Units      float64 `json:"units"`
	OrderID    string  `json:"order_id"`
	TradeID    string  `json:"trade_id"`
	Reason     string  `json:"reason"`
	Error      string  `json:"error"`
	Closed     int     `json:"closed"`
	Remaining  int     `json:"remaining"`
	ProfitPct  float64 `json:"profit_pct"`
}

// aggRow is the per-instrument activity for one day.
type aggRow struct {
	Instrument  string
	Filled      int
	Rejected    int
	LongUnits   float64
	ShortUnits  float64
	Closes      int
	CloseErrors int
}

type dayTotals struct {
	Wipes           int
	WipesIncomplete int
	TrailHits       int
	LastProfitPct   float64
}
