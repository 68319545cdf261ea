package types

import (
	"strings"
	"time"
)

// LegKey identifies one basket leg. At most one open managed trade may exist per key.
type LegKey struct {
	Symbol    string
	Model     Model
	Direction Direction
}

// NormalizeSymbol is the one symbol form used in leg keys and trade tags.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (k LegKey) String() string {
	return k.Symbol + "/" + string(k.Model) + "/" + string(k.Direction)
}

// BotState is the persisted record for one bot identity. It is reset, not
// removed, when the week rolls over.
type BotState struct {
	WeekID         *string    `json:"week_id"`
	Entered        bool       `json:"entered"`
	EntryTimeUTC   *time.Time `json:"entry_time_utc"`
	EntryEquity    *float64   `json:"entry_equity"`
	PeakEquity     *float64   `json:"peak_equity"`
	TrailingActive bool       `json:"trailing_active"`
	LockedPct      *float64   `json:"locked_pct"`
	TrailHitAt     *time.Time `json:"trail_hit_at"`
	CurrentEquity  *float64   `json:"current_equity"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ResetForWeek clears every per-week field and stamps the new week id.
// CurrentEquity is kept since it describes the account, not the week.
func (s *BotState) ResetForWeek(weekID string) {
	id := weekID
	*s = BotState{WeekID: &id, CurrentEquity: s.CurrentEquity}
}

type Phase string

const (
	PhaseWaiting  Phase = "WAITING_FOR_WINDOW"
	PhaseEntering Phase = "ENTERING"
	PhaseHolding  Phase = "HOLDING"
	PhaseClosing  Phase = "CLOSING"
)

// TickResult summarises one engine tick.
type TickResult struct {
	Now        time.Time `json:"now"`
	WeekID     string    `json:"week_id"`
	Phase      Phase     `json:"phase"`
	Placed     int       `json:"placed"`
	Failed     int       `json:"failed"`
	Pending    int       `json:"pending"`
	Skipped    int       `json:"skipped"`
	Planned    int       `json:"planned"`
	Entered    bool      `json:"entered"`
	ClosedAll  bool      `json:"closed_all"`
	TrailHit   bool      `json:"trail_hit"`
	ProfitPct  *float64  `json:"profit_pct,omitempty"`
	LockedPct  *float64  `json:"locked_pct,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Telemetry is pushed to the linked account record after each equity refresh.
type Telemetry struct {
	Equity        float64            `json:"equity"`
	Currency      string             `json:"currency"`
	OpenPositions int                `json:"open_positions"`
	Positions     []PositionSnapshot `json:"positions"`
	FetchedAt     time.Time          `json:"fetched_at"`
}

type PositionSnapshot struct {
	Instrument   string  `json:"instrument"`
	Units        float64 `json:"units"`
	UnrealizedPL float64 `json:"unrealized_pl"`
	Tag          string  `json:"tag,omitempty"`
}
