package domain

// TradeAction is the advisor's recommendation.
type TradeAction string

// Trade actions
const (
	ActionNone TradeAction = ""
	ActionBuy  TradeAction = "Buy"
	ActionSell TradeAction = "Sell"
	ActionHold TradeAction = "Hold"
)

// MarketReport carries aggregate supply and demand volumes.
type MarketReport struct {
	Supply float64
	Demand float64
}
