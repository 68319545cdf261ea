package signals

import "weekly-basket-bot/internal/types"

const (
	CrowdedLong  = "CROWDED_LONG"
	CrowdedShort = "CROWDED_SHORT"

	FlipNone    = "NONE"
	FlippedUp   = "FLIPPED_UP"
	FlippedDown = "FLIPPED_DOWN"
	FlippedFlat = "FLIPPED_NEUTRAL"
)

// SentimentAggregate is the weekly retail sentiment reading for one symbol.
type SentimentAggregate struct {
	Symbol        string `json:"symbol"`
	CrowdingState string `json:"crowding_state"`
	FlipState     string `json:"flip_state"`
}

// SentimentDirection fades the crowd. A flip wins over crowding; a flip to
// neutral means no trade.
func SentimentDirection(agg *SentimentAggregate) (types.Direction, bool) {
	if agg == nil {
		return "", false
	}
	switch agg.FlipState {
	case FlippedUp:
		return types.Long, true
	case FlippedDown:
		return types.Short, true
	case FlippedFlat:
		return "", false
	}
	switch agg.CrowdingState {
	case CrowdedLong:
		return types.Short, true
	case CrowdedShort:
		return types.Long, true
	}
	return "", false
}
