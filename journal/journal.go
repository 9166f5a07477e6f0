// Package journal records every fill and equity snapshot the simulation
// produces, so a run leaves an auditable trail outside the live snapshot.
package journal

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// FillRecord is one executed order: openings, reductions, flips and TP/SL
// trigger closes all pass through here.
type FillRecord struct {
	RecordID   string // ULID, time-sortable
	OrderID    int64
	Symbol     string
	Side       string
	Size       float64
	Price      float64
	Notional   float64
	Commission float64
	RealizedPL float64
	Reason     string // open, increase, reduce, close, flip, take_profit, stop_loss
	Time       time.Time
}

// EquitySnapshot captures account health after each simulated bar.
type EquitySnapshot struct {
	Time         time.Time
	Balance      float64
	Equity       float64
	UsedMargin   float64
	UnrealizedPL float64
}

type Journal interface {
	RecordFill(FillRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. Used when journaling is disabled.
type Nop struct{}

func (Nop) RecordFill(FillRecord) error       { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

var (
	idMu   sync.Mutex
	idMono io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand so ULID entropy is unpredictable. The
	// monotonic reader keeps IDs generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	idMono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewRecordID returns a ULID string for a journal row. ULIDs sort by
// generation time, which keeps SQLite indexes and CSV files append-ordered.
func NewRecordID() string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), idMono)
	if err != nil {
		// Only possible if time goes backwards or entropy fails.
		panic(err)
	}
	return id.String()
}
