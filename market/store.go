package market

import (
	"sort"
	"time"
)

// Store is an in-memory candle tape indexed by symbol and bar start time.
// Bars are kept sorted so the active-bar lookup is a binary search.
type Store struct {
	step  time.Duration
	bars  map[string][]Candle
	dirty map[string]bool
}

// NewStore returns an empty store whose bars span the given step. A
// non-positive step defaults to one minute.
func NewStore(step time.Duration) *Store {
	if step <= 0 {
		step = time.Minute
	}
	return &Store{
		step:  step,
		bars:  make(map[string][]Candle),
		dirty: make(map[string]bool),
	}
}

// Step returns the bar duration of the tape.
func (s *Store) Step() time.Duration { return s.step }

// Add appends a candle to the symbol's series. Out-of-order inserts are
// allowed; the series is re-sorted lazily on the next lookup.
func (s *Store) Add(c Candle) {
	s.bars[c.Symbol] = append(s.bars[c.Symbol], c)
	s.dirty[c.Symbol] = true
}

// AddSeries appends a batch of candles for one symbol.
func (s *Store) AddSeries(symbol string, series []Candle) {
	for _, c := range series {
		c.Symbol = symbol
		s.bars[symbol] = append(s.bars[symbol], c)
	}
	s.dirty[symbol] = true
}

// Candle returns the bar active at ts, i.e. the bar with the greatest start
// time <= ts such that ts < start+step.
func (s *Store) Candle(symbol string, ts time.Time) (Candle, bool) {
	series := s.series(symbol)
	if len(series) == 0 {
		return Candle{}, false
	}

	// First bar starting after ts; the candidate is the one before it.
	i := sort.Search(len(series), func(i int) bool {
		return series[i].Time.After(ts)
	})
	if i == 0 {
		return Candle{}, false
	}

	c := series[i-1]
	if ts.Sub(c.Time) >= s.step {
		return Candle{}, false
	}
	return c, true
}

// Symbols lists every symbol with at least one bar, sorted.
func (s *Store) Symbols() []string {
	out := make([]string, 0, len(s.bars))
	for sym := range s.bars {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Earliest returns the start time of the first bar across all symbols. It
// returns false when the store is empty.
func (s *Store) Earliest() (time.Time, bool) {
	var first time.Time
	found := false
	for sym := range s.bars {
		series := s.series(sym)
		if len(series) == 0 {
			continue
		}
		if !found || series[0].Time.Before(first) {
			first = series[0].Time
			found = true
		}
	}
	return first, found
}

func (s *Store) series(symbol string) []Candle {
	series := s.bars[symbol]
	if s.dirty[symbol] {
		sort.Slice(series, func(i, j int) bool {
			return series[i].Time.Before(series[j].Time)
		})
		s.dirty[symbol] = false
	}
	return series
}
