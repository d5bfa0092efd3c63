package position

import (
	"errors"
	"time"

	"github.com/JaimeIsMe/hyperliquid-experimental-trading-bots/pkg/exchange"
)

// Direction is the side of a position. The numeric values let offset math
// use the direction as a sign.
type Direction int8

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) IsBuy() bool         { return d == Long }
func (d Direction) Opposite() Direction { return -d }

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// State is the lifecycle phase of one position.
type State int

const (
	StateFlat State = iota
	StateEntering
	StateOpen
	StateClosing
	StateFlipping
)

var stateNames = [...]string{"flat", "entering", "open", "closing", "flipping"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// OpenPosition is the manager's record of a filled entry. Fill holds the
// exchange's own size and price strings; the eventual close order echoes
// Fill.TotalSz back verbatim.
type OpenPosition struct {
	Direction      Direction     `json:"direction"`
	Fill           exchange.Fill `json:"fill"`
	ProtectiveOids []int64       `json:"protectiveOids,omitempty"`
	OpenedAt       time.Time     `json:"openedAt"`
}

// Snapshot is a point-in-time view of the manager. Open carries the last
// known position and stays populated through Closing and Flipping.
type Snapshot struct {
	State          State         `json:"state"`
	NeedsReconcile bool          `json:"needsReconcile"`
	Open           *OpenPosition `json:"open,omitempty"`
}

var (
	// ErrNoPosition means close or flip was asked for with nothing open.
	// It is raised before any network traffic.
	ErrNoPosition = errors.New("no open position")
	// ErrNotFlat means enter was asked for while a position exists.
	ErrNotFlat = errors.New("position not flat")
	// ErrNotFilled means an immediate-or-cancel leg expired without
	// executing.
	ErrNotFilled = errors.New("order not filled")
	// ErrReconcileRequired means a close was interrupted mid-flight and the
	// true position is unknown until Reconcile re-queries the account.
	ErrReconcileRequired = errors.New("position state unknown, reconcile required")
)
