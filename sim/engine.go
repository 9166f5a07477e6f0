package sim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/simex/journal"
	"github.com/rustyeddy/simex/market"
)

// Config carries the engine's startup parameters.
type Config struct {
	StartingBalance float64
	DefaultLeverage int
	MaxLeverage     int
	Start           time.Time
	Step            time.Duration
	Ledger          LedgerConfig
}

// OrderRequest is one inbound market order.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Size       float64
	Leverage   int     // 0 = default
	TakeProfit float64 // 0 = none
	StopLoss   float64 // 0 = none
}

// AccountSummary is the point-in-time account view.
type AccountSummary struct {
	Balance      float64 `json:"balance"`
	UsedMargin   float64 `json:"usedMargin"`
	RealizedPL   float64 `json:"realizedPl"`
	UnrealizedPL float64 `json:"unrealizedPl"`
	Equity       float64 `json:"equity"`
}

// Engine owns the whole simulation aggregate: clock, ledger, positions and
// order history. Every operation runs under one mutex so a margin check can
// never interleave with another request's fills.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	clock  *Clock
	ledger *Ledger
	source market.Source
	jrnl   journal.Journal
	logger *zap.Logger

	positions map[string]*Position
	orders    []Order
	nextID    int64
}

// New builds an engine with a fresh account. Pass journal.Nop{} to disable
// journaling and nil for a silent logger.
func New(cfg Config, source market.Source, jrnl journal.Journal, logger *zap.Logger) *Engine {
	if cfg.DefaultLeverage < 1 {
		cfg.DefaultLeverage = 1
	}
	if cfg.Step <= 0 {
		cfg.Step = time.Minute
	}
	if jrnl == nil {
		jrnl = journal.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:       cfg,
		clock:     NewClock(cfg.Start, cfg.Step),
		ledger:    NewLedger(cfg.StartingBalance, cfg.Ledger),
		source:    source,
		jrnl:      jrnl,
		logger:    logger,
		positions: make(map[string]*Position),
		nextID:    1,
	}
}

// CurrentTime returns the simulated timestamp.
func (e *Engine) CurrentTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Current()
}

// Step returns the clock step size.
func (e *Engine) Step() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Step()
}

// Advance moves the clock forward by steps whole steps and sweeps TP/SL
// triggers once per intervening bar, in timestamp order. A level crossed by
// an intermediate bar fires on that bar, not on the final one.
func (e *Engine) Advance(steps int) (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if steps <= 0 {
		return time.Time{}, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidArgument, steps)
	}

	for i := 0; i < steps; i++ {
		ts := e.clock.advance()
		if err := e.sweepLocked(ts); err != nil {
			return time.Time{}, err
		}
		if err := e.recordEquityLocked(ts); err != nil {
			e.logger.Warn("journal equity", zap.Error(err))
		}
	}

	e.logger.Debug("clock advanced",
		zap.Int("steps", steps),
		zap.Time("time", e.clock.Current()))

	return e.clock.Current(), nil
}

// SubmitOrder executes a market order at the current simulated time. The
// order fills against the active bar's open, adjusted for slippage, or is
// rejected with no state change. When the returned order is REJECTED the
// error is the matching sentinel rejection class.
func (e *Engine) SubmitOrder(req OrderRequest) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Symbol == "" || req.Size <= 0 {
		return Order{}, fmt.Errorf("%w: symbol %q size %v", ErrInvalidArgument, req.Symbol, req.Size)
	}
	if req.Side != Buy && req.Side != Sell {
		return Order{}, fmt.Errorf("%w: side %d", ErrInvalidArgument, req.Side)
	}
	if req.TakeProfit < 0 || req.StopLoss < 0 {
		return Order{}, fmt.Errorf("%w: negative trigger price", ErrInvalidArgument)
	}
	lev := req.Leverage
	if lev == 0 {
		lev = e.cfg.DefaultLeverage
	}
	if lev < 1 || (e.cfg.MaxLeverage > 0 && lev > e.cfg.MaxLeverage) {
		return Order{}, fmt.Errorf("%w: leverage %d", ErrInvalidArgument, req.Leverage)
	}

	now := e.clock.Current()
	order := Order{
		ID:         e.nextID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Size:       req.Size,
		Leverage:   lev,
		Status:     StatusNew,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		Created:    now,
	}
	e.nextID++

	candle, ok := e.source.Candle(req.Symbol, now)
	if !ok {
		order.Status = StatusRejected
		order.Reject = "no market data"
		e.orders = append(e.orders, order)
		return order, fmt.Errorf("%w: %s at %s", ErrNoMarketData, req.Symbol, now.Format(time.RFC3339))
	}

	fillPrice := marketFillPrice(e.ledger, candle, req.Side, req.Size)
	notional := req.Size * fillPrice
	commission := e.ledger.Commission(notional)

	if !e.ledger.CanOpen(notional, lev) {
		order.Status = StatusRejected
		order.Reject = "insufficient margin"
		e.orders = append(e.orders, order)
		return order, fmt.Errorf("%w: need %.2f, free %.2f",
			ErrInsufficientMargin, requiredMargin(notional, lev), e.ledger.FreeMargin())
	}

	realized, reason, err := e.applyFillLocked(&order, fillPrice)
	if err != nil {
		return Order{}, err
	}

	aggregate := e.aggregateMarginLocked()
	if err := e.ledger.ApplyFill(commission, realized, aggregate); err != nil {
		return Order{}, err
	}

	order.Status = StatusFilled
	order.FillPrice = fillPrice
	order.FillTime = now
	order.Commission = commission
	e.orders = append(e.orders, order)

	e.journalFillLocked(order, notional, realized, reason)

	e.logger.Info("order filled",
		zap.Int64("id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", order.Side.String()),
		zap.Float64("size", order.Size),
		zap.Float64("price", fillPrice),
		zap.Float64("commission", commission),
		zap.String("reason", reason))

	return order, nil
}

// applyFillLocked mutates the position set for a filled order and returns
// the realized PnL on any closed portion plus a journal reason. Deltas are
// computed before writes so a detected invariant violation leaves the
// aggregate untouched.
func (e *Engine) applyFillLocked(order *Order, fillPrice float64) (realized float64, reason string, err error) {
	pos, exists := e.positions[order.Symbol]

	switch {
	case !exists:
		e.positions[order.Symbol] = &Position{
			Symbol:     order.Symbol,
			Side:       order.Side,
			Size:       order.Size,
			EntryPrice: fillPrice,
			Leverage:   order.Leverage,
			OpenTime:   order.Created,
			TakeProfit: order.TakeProfit,
			StopLoss:   order.StopLoss,
			MarkPrice:  fillPrice,
		}
		return 0, "open", nil

	case pos.Side == order.Side:
		// Same side: volume-weighted average entry.
		total := pos.Size + order.Size
		pos.EntryPrice = (pos.Size*pos.EntryPrice + order.Size*fillPrice) / total
		pos.Size = total
		pos.MarkPrice = fillPrice
		attachTriggers(pos, order)
		return 0, "increase", nil

	case order.Size < pos.Size:
		// Partial reduce: realize PnL on the closed portion.
		realized = float64(pos.Side) * order.Size * (fillPrice - pos.EntryPrice)
		pos.Size -= order.Size
		pos.MarkPrice = fillPrice
		attachTriggers(pos, order)
		return realized, "reduce", nil

	default:
		// Full close, possibly flipping to the opposite side.
		realized = float64(pos.Side) * pos.Size * (fillPrice - pos.EntryPrice)
		remainder := order.Size - pos.Size
		if remainder < 0 {
			return 0, "", fmt.Errorf("%w: negative remainder %.10f on flip of %s",
				ErrInvariant, remainder, order.Symbol)
		}

		delete(e.positions, order.Symbol)
		if remainder == 0 {
			return realized, "close", nil
		}

		e.positions[order.Symbol] = &Position{
			Symbol:     order.Symbol,
			Side:       order.Side,
			Size:       remainder,
			EntryPrice: fillPrice,
			Leverage:   order.Leverage,
			OpenTime:   order.Created,
			TakeProfit: order.TakeProfit,
			StopLoss:   order.StopLoss,
			MarkPrice:  fillPrice,
		}
		return realized, "flip", nil
	}
}

func attachTriggers(pos *Position, order *Order) {
	if order.TakeProfit > 0 {
		pos.TakeProfit = order.TakeProfit
	}
	if order.StopLoss > 0 {
		pos.StopLoss = order.StopLoss
	}
}

// sweepLocked evaluates TP/SL for every open position against the bar at ts.
// SL is checked before TP: a worst-case bar touching both levels is assumed
// to have hit the adverse one first.
func (e *Engine) sweepLocked(ts time.Time) error {
	for _, symbol := range e.positionSymbolsLocked() {
		pos, ok := e.positions[symbol]
		if !ok {
			continue
		}

		candle, ok := e.source.Candle(symbol, ts)
		if !ok {
			continue
		}
		pos.MarkPrice = candle.Close

		switch {
		case triggerHit(candle, pos.StopLoss):
			if err := e.closeAtTriggerLocked(pos, pos.StopLoss, "stop_loss", ts); err != nil {
				return err
			}
		case triggerHit(candle, pos.TakeProfit):
			if err := e.closeAtTriggerLocked(pos, pos.TakeProfit, "take_profit", ts); err != nil {
				return err
			}
		}
	}
	return nil
}

// closeAtTriggerLocked force-closes the full position at the exact trigger
// price through the same fill-and-ledger path as a submitted order. The
// position is removed, so later bars cannot re-fire.
func (e *Engine) closeAtTriggerLocked(pos *Position, price float64, reason string, ts time.Time) error {
	notional := pos.Size * price
	commission := e.ledger.Commission(notional)
	realized := float64(pos.Side) * pos.Size * (price - pos.EntryPrice)

	order := Order{
		ID:         e.nextID,
		Symbol:     pos.Symbol,
		Side:       pos.Side.Opposite(),
		Size:       pos.Size,
		Leverage:   pos.Leverage,
		Status:     StatusFilled,
		FillPrice:  price,
		FillTime:   ts,
		Commission: commission,
		Created:    ts,
	}
	e.nextID++

	delete(e.positions, pos.Symbol)

	aggregate := e.aggregateMarginLocked()
	if err := e.ledger.ApplyFill(commission, realized, aggregate); err != nil {
		return err
	}

	e.orders = append(e.orders, order)
	e.journalFillLocked(order, notional, realized, reason)

	e.logger.Info("trigger fired",
		zap.String("symbol", pos.Symbol),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Float64("realized", realized))

	return nil
}

func (e *Engine) aggregateMarginLocked() float64 {
	var total float64
	for _, pos := range e.positions {
		total += pos.RequiredMargin()
	}
	return total
}

func (e *Engine) unrealizedLocked() float64 {
	var total float64
	for _, pos := range e.positions {
		total += pos.UnrealizedPL()
	}
	return total
}

// positionSymbolsLocked returns open-position symbols in sorted order so
// sweeps are deterministic.
func (e *Engine) positionSymbolsLocked() []string {
	symbols := make([]string, 0, len(e.positions))
	for s := range e.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func (e *Engine) journalFillLocked(order Order, notional, realized float64, reason string) {
	err := e.jrnl.RecordFill(journal.FillRecord{
		RecordID:   journal.NewRecordID(),
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side.String(),
		Size:       order.Size,
		Price:      order.FillPrice,
		Notional:   notional,
		Commission: order.Commission,
		RealizedPL: realized,
		Reason:     reason,
		Time:       order.FillTime,
	})
	if err != nil {
		e.logger.Warn("journal fill", zap.Error(err))
	}
}

func (e *Engine) recordEquityLocked(ts time.Time) error {
	unrealized := e.unrealizedLocked()
	return e.jrnl.RecordEquity(journal.EquitySnapshot{
		Time:         ts,
		Balance:      e.ledger.Balance(),
		Equity:       e.ledger.Balance() + unrealized,
		UsedMargin:   e.ledger.UsedMargin(),
		UnrealizedPL: unrealized,
	})
}

// Positions returns copies of all open positions, sorted by symbol.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Position, 0, len(e.positions))
	for _, symbol := range e.positionSymbolsLocked() {
		out = append(out, *e.positions[symbol])
	}
	return out
}

// Orders returns the order history, oldest first, optionally filtered by
// symbol and truncated to the most recent limit entries.
func (e *Engine) Orders(symbol string, limit int) []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Order, 0, len(e.orders))
	for _, o := range e.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, o)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Order looks up one order by its engine-assigned identifier.
func (e *Engine) Order(id int64) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range e.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("%w: order %d", ErrNotFound, id)
}

// Account returns the current account summary.
func (e *Engine) Account() AccountSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	unrealized := e.unrealizedLocked()
	return AccountSummary{
		Balance:      e.ledger.Balance(),
		UsedMargin:   e.ledger.UsedMargin(),
		RealizedPL:   e.ledger.RealizedPL(),
		UnrealizedPL: unrealized,
		Equity:       e.ledger.Balance() + unrealized,
	}
}

// Snapshot captures the whole aggregate for persistence.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Version:     SnapshotVersion,
		Time:        e.clock.Current(),
		Step:        e.clock.Step(),
		Balance:     e.ledger.Balance(),
		UsedMargin:  e.ledger.UsedMargin(),
		RealizedPL:  e.ledger.RealizedPL(),
		NextOrderID: e.nextID,
		Positions:   make([]Position, 0, len(e.positions)),
		Orders:      make([]Order, len(e.orders)),
	}
	for _, symbol := range e.positionSymbolsLocked() {
		snap.Positions = append(snap.Positions, *e.positions[symbol])
	}
	copy(snap.Orders, e.orders)
	return snap
}

// Restore replaces the aggregate with a persisted snapshot. The snapshot
// version must be known and the clock may only move forward.
func (e *Engine) Restore(snap Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: snapshot version %d", ErrInvalidArgument, snap.Version)
	}
	if err := e.clock.setTime(snap.Time); err != nil {
		return err
	}

	e.ledger.restore(snap.Balance, snap.UsedMargin, snap.RealizedPL)
	e.nextID = snap.NextOrderID
	if e.nextID < 1 {
		e.nextID = 1
	}

	e.positions = make(map[string]*Position, len(snap.Positions))
	for i := range snap.Positions {
		p := snap.Positions[i]
		e.positions[p.Symbol] = &p
	}
	e.orders = make([]Order, len(snap.Orders))
	copy(e.orders, snap.Orders)

	e.logger.Info("state restored",
		zap.Time("time", snap.Time),
		zap.Int("positions", len(snap.Positions)),
		zap.Int("orders", len(snap.Orders)))

	return nil
}

// Reset reinitializes the world: fresh account at the configured starting
// balance, empty position and order sets, clock back at the configured
// start.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clock = NewClock(e.cfg.Start, e.cfg.Step)
	e.ledger = NewLedger(e.cfg.StartingBalance, e.cfg.Ledger)
	e.positions = make(map[string]*Position)
	e.orders = nil
	e.nextID = 1

	e.logger.Info("state reset", zap.Time("time", e.clock.Current()))
}
