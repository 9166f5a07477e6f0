package market

import "time"

// Candle represents one OHLCV bar of historical kline data. The bar covers
// the half-open interval [Time, Time+step).
type Candle struct {
	Symbol string
	Time   time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume float64
}

// Contains reports whether price falls within the bar's traded range.
func (c Candle) Contains(price float64) bool {
	return price >= c.Low && price <= c.High
}

// Source resolves the candle active at a simulation timestamp.
type Source interface {
	// Candle returns the bar covering ts for symbol, or false when the tape
	// has no data there.
	Candle(symbol string, ts time.Time) (Candle, bool)

	// Symbols lists every symbol the source has data for.
	Symbols() []string
}
