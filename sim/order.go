package sim

import (
	"fmt"
	"time"
)

type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int8(s))
}

// Opposite returns the closing side for s.
func (s Side) Opposite() Side { return -s }

// ParseSide maps the wire strings BUY/SELL onto a Side.
func ParseSide(v string) (Side, error) {
	switch v {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: side %q", ErrInvalidArgument, v)
}

type OrderStatus int8

const (
	StatusNew OrderStatus = iota
	StatusFilled
	StatusRejected
)

func (st OrderStatus) String() string {
	switch st {
	case StatusNew:
		return "NEW"
	case StatusFilled:
		return "FILLED"
	case StatusRejected:
		return "REJECTED"
	}
	return fmt.Sprintf("OrderStatus(%d)", int8(st))
}

// Order is an immutable fill record once it reaches a terminal status.
// Market orders fill synchronously with creation, so FILLED and REJECTED are
// the only terminal states.
type Order struct {
	ID       int64       `json:"id"`
	Symbol   string      `json:"symbol"`
	Side     Side        `json:"side"`
	Size     float64     `json:"size"`
	Leverage int         `json:"leverage"`
	Status   OrderStatus `json:"status"`

	TakeProfit float64 `json:"takeProfit,omitempty"` // 0 = none
	StopLoss   float64 `json:"stopLoss,omitempty"`   // 0 = none

	FillPrice  float64   `json:"fillPrice,omitempty"`
	FillTime   time.Time `json:"fillTime"`
	Commission float64   `json:"commission,omitempty"`

	Created time.Time `json:"created"`
	Reject  string    `json:"reject,omitempty"`
}
