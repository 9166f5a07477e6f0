package sim

import (
	"fmt"
	"sort"
)

// SlippageTier maps a notional threshold to an adverse price fraction. Tiers
// form half-open intervals [threshold_i, threshold_{i+1}) ordered ascending.
type SlippageTier struct {
	Threshold float64
	Fraction  float64
}

// LedgerConfig carries the fee model. It is built once at startup and never
// mutated afterwards.
type LedgerConfig struct {
	CommissionRate float64
	MinCommission  float64
	Slippage       []SlippageTier
}

// DefaultLedgerConfig mirrors the stock emulator fee model: 0.07% taker fee
// with a 0.04 floor and four slippage brackets.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		CommissionRate: 0.0007,
		MinCommission:  0.04,
		Slippage: []SlippageTier{
			{Threshold: 0, Fraction: 0.0001},
			{Threshold: 100, Fraction: 0.0005},
			{Threshold: 1000, Fraction: 0.001},
			{Threshold: 10000, Fraction: 0.002},
		},
	}
}

// Ledger owns cash balance, used margin and realized PnL. ApplyFill is the
// only mutation path; the engine never writes these fields directly.
type Ledger struct {
	balance    float64
	usedMargin float64
	realizedPL float64
	cfg        LedgerConfig
}

// NewLedger builds a ledger with the given starting cash. The slippage table
// is copied and sorted ascending so lookups can assume order.
func NewLedger(startingBalance float64, cfg LedgerConfig) *Ledger {
	tiers := make([]SlippageTier, len(cfg.Slippage))
	copy(tiers, cfg.Slippage)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })
	cfg.Slippage = tiers

	return &Ledger{balance: startingBalance, cfg: cfg}
}

func (l *Ledger) Balance() float64    { return l.balance }
func (l *Ledger) UsedMargin() float64 { return l.usedMargin }
func (l *Ledger) RealizedPL() float64 { return l.realizedPL }

// FreeMargin is the cash not reserved as collateral.
func (l *Ledger) FreeMargin() float64 { return l.balance - l.usedMargin }

func requiredMargin(notional float64, leverage int) float64 {
	if leverage < 1 {
		leverage = 1
	}
	return notional / float64(leverage)
}

// Commission returns max(notional*rate, minimum).
func (l *Ledger) Commission(notional float64) float64 {
	c := notional * l.cfg.CommissionRate
	if c < l.cfg.MinCommission {
		return l.cfg.MinCommission
	}
	return c
}

// SlippageFraction returns the fraction of the highest tier whose threshold
// does not exceed notional. Notional below the lowest threshold uses the
// lowest tier.
func (l *Ledger) SlippageFraction(notional float64) float64 {
	if len(l.cfg.Slippage) == 0 {
		return 0
	}
	frac := l.cfg.Slippage[0].Fraction
	for _, tier := range l.cfg.Slippage {
		if notional < tier.Threshold {
			break
		}
		frac = tier.Fraction
	}
	return frac
}

// CanOpen is the solvency check applied before any new order mutates state.
func (l *Ledger) CanOpen(notional float64, leverage int) bool {
	return l.balance-l.usedMargin-requiredMargin(notional, leverage) >= 0
}

// ApplyFill atomically applies one fill's money movement: commission is
// debited from cash, realized PnL is credited to cash and the accumulator,
// and used margin is reset to the post-fill aggregate required margin across
// all open positions.
func (l *Ledger) ApplyFill(commission, realizedPL, aggregateMargin float64) error {
	if commission < 0 || aggregateMargin < 0 {
		return fmt.Errorf("%w: negative commission %.8f or margin %.8f",
			ErrInvariant, commission, aggregateMargin)
	}
	l.balance += realizedPL - commission
	l.realizedPL += realizedPL
	l.usedMargin = aggregateMargin
	return nil
}

// restore overwrites ledger state from a snapshot.
func (l *Ledger) restore(balance, usedMargin, realizedPL float64) {
	l.balance = balance
	l.usedMargin = usedMargin
	l.realizedPL = realizedPL
}
