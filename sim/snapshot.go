package sim

import "time"

// SnapshotVersion tags the persisted layout so future fields can be added
// without breaking load on older data.
const SnapshotVersion = 1

// Snapshot is the complete persisted state of the simulation at one instant:
// clock, account, every position and the full order history. It must
// round-trip losslessly through the state store.
type Snapshot struct {
	Version int `json:"version"`

	Time time.Time     `json:"time"`
	Step time.Duration `json:"step"`

	Balance    float64 `json:"balance"`
	UsedMargin float64 `json:"usedMargin"`
	RealizedPL float64 `json:"realizedPl"`

	NextOrderID int64 `json:"nextOrderId"`

	Positions []Position `json:"positions"`
	Orders    []Order    `json:"orders"`
}
