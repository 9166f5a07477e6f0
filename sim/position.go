package sim

import "time"

// Position is the single net exposure on one symbol. Long and short are
// mutually exclusive; an order large enough to cross zero closes the
// position and reopens it on the other side.
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Size       float64   `json:"size"` // base units, always positive
	EntryPrice float64   `json:"entryPrice"`
	Leverage   int       `json:"leverage"`
	OpenTime   time.Time `json:"openTime"`

	TakeProfit float64 `json:"takeProfit,omitempty"` // 0 = none
	StopLoss   float64 `json:"stopLoss,omitempty"`   // 0 = none

	// MarkPrice is the close of the last bar evaluated for this symbol,
	// used for unrealized PnL.
	MarkPrice float64 `json:"markPrice"`
}

// Notional is the gross position value at entry.
func (p *Position) Notional() float64 { return p.Size * p.EntryPrice }

// RequiredMargin is the collateral reserved for the position.
func (p *Position) RequiredMargin() float64 {
	return requiredMargin(p.Notional(), p.Leverage)
}

// UnrealizedPL marks the position against MarkPrice.
func (p *Position) UnrealizedPL() float64 {
	return float64(p.Side) * p.Size * (p.MarkPrice - p.EntryPrice)
}
