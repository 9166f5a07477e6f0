package sim

import "github.com/rustyeddy/simex/market"

// marketFillPrice resolves the execution price for a market order against
// the bar's open, moved in the adverse direction: buys fill higher, sells
// fill lower. The slippage tier is chosen on the pre-slippage order value.
func marketFillPrice(l *Ledger, c market.Candle, side Side, size float64) float64 {
	frac := l.SlippageFraction(size * c.Open)
	return c.Open * (1 + float64(side)*frac)
}

// triggerHit reports whether a TP/SL level fires on this bar. A trigger
// fills at its exact declared price, so it fires only when the bar's traded
// range actually contains the level.
func triggerHit(c market.Candle, level float64) bool {
	return level > 0 && c.Contains(level)
}
