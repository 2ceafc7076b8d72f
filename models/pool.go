package models

import (
	"fmt"
	"time"
)

// OccupantKind discriminates who holds a cell.
type OccupantKind string

const (
	OccupantNone    OccupantKind = ""
	OccupantAccount OccupantKind = "account"
	OccupantGuest   OccupantKind = "guest"
)

// Occupant is a tagged variant: empty, an account id, or a guest key.
// At most one kind is set at a time.
type Occupant struct {
	Kind OccupantKind `json:"kind,omitempty"`
	ID   string       `json:"id,omitempty"`
	Tag  string       `json:"tag,omitempty"` // display name shown on the grid
}

func (o Occupant) IsEmpty() bool { return o.Kind == OccupantNone }

// Key is the identity key used for limit checks and participant aggregation.
func (o Occupant) Key() string {
	if o.IsEmpty() {
		return ""
	}
	return string(o.Kind) + ":" + o.ID
}

// AccountOccupant builds an authenticated occupant.
func AccountOccupant(id, tag string) Occupant {
	return Occupant{Kind: OccupantAccount, ID: id, Tag: tag}
}

// GuestOccupant builds an unauthenticated occupant holding a client-side key.
func GuestOccupant(key, tag string) Occupant {
	return Occupant{Kind: OccupantGuest, ID: key, Tag: tag}
}

// Cell is one of the 100 grid positions. Index is fixed for the cell's lifetime.
type Cell struct {
	Index    int      `json:"index"`
	Occupant Occupant `json:"occupant"`
	Paid     bool     `json:"paid"`
}

func (c Cell) Row() int { return c.Index / 10 }
func (c Cell) Col() int { return c.Index % 10 }

// Label is the "{row}_{col}" form used by the participant index.
func (c Cell) Label() string { return fmt.Sprintf("%d_%d", c.Row(), c.Col()) }

// GridSize is the fixed number of cells per pool.
const GridSize = 100

// NewGrid returns the 100 empty cells a pool starts with.
func NewGrid() []Cell {
	cells := make([]Cell, GridSize)
	for i := range cells {
		cells[i].Index = i
	}
	return cells
}

// DigitAssignment binds one random permutation of 0-9 to each axis.
// Immutable once the pool is locked.
type DigitAssignment struct {
	Home [10]int `json:"home"`
	Away [10]int `json:"away"`
}

// IndexOf returns the axis position holding digit, or -1 if absent.
func IndexOf(axis [10]int, digit int) int {
	for i, d := range axis {
		if d == digit {
			return i
		}
	}
	return -1
}

// PayoutMode selects how score-change events pay out. Empty means quarter
// mode with per-checkpoint percentages.
type PayoutMode string

const (
	EventPayoutNone   PayoutMode = ""
	EventPayoutFixed  PayoutMode = "fixed"
	EventPayoutEqual  PayoutMode = "equal"
	EventPayoutHybrid PayoutMode = "hybrid"
)

// PendingEvent is a qualifying score-change event recorded on the pool while
// its payout cannot be computed yet (equal-split and hybrid modes settle at
// game end).
type PendingEvent struct {
	Label     string    `json:"label"`
	CellIndex int       `json:"cell_index"`
	Occupant  Occupant  `json:"occupant"`
	HomeDigit int       `json:"home_digit"`
	AwayDigit int       `json:"away_digit"`
	At        time.Time `json:"at"`
}

// Pool is the aggregate root. The whole row (cells, lock state, rollover and
// event-settlement state) is the unit of mutual exclusion: every mutation goes
// through one serialized read-modify-write per pool.
type Pool struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `json:"name"`

	Locked       bool       `json:"locked"`
	LockDeadline *time.Time `json:"lock_deadline,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`

	CostPerCellCents  int64 `json:"cost_per_cell_cents"`
	MaxCellsPerPlayer int   `json:"max_cells_per_player"` // 0 = unlimited
	MaxCellsTotal     int   `json:"max_cells_total"`      // 0 = unlimited
	CharityPct        int   `json:"charity_pct"`          // 0 = disabled

	// Quarter-mode payout percentages; sum must not exceed 100.
	Q1Pct    int `json:"q1_pct"`
	HalfPct  int `json:"half_pct"`
	Q3Pct    int `json:"q3_pct"`
	FinalPct int `json:"final_pct"`

	RolloverEnabled  bool       `json:"rollover_enabled"`
	ReverseEnabled   bool       `json:"reverse_enabled"`
	PerQuarterDigits bool       `json:"per_quarter_digits"`
	EventMode        PayoutMode `json:"event_mode"`
	EventAmountCents int64      `json:"event_amount_cents"`
	HybridHalfPct    int        `json:"hybrid_half_pct"`
	HybridFinalPct   int        `json:"hybrid_final_pct"`

	Cells         []Cell            `gorm:"serializer:json" json:"cells"`
	Digits        []DigitAssignment `gorm:"serializer:json" json:"digits,omitempty"`
	RolloverCents int64             `json:"rollover_cents"`
	OccupiedCount int               `json:"occupied_count"`

	EventPotRemainingCents int64          `json:"event_pot_remaining_cents"`
	PendingEvents          []PendingEvent `gorm:"serializer:json" json:"pending_events,omitempty"`
	Settled                bool           `json:"settled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalPotCents is occupied cells times cost per cell.
func (p *Pool) TotalPotCents() int64 {
	return int64(p.OccupiedCount) * p.CostPerCellCents
}

// NetPotCents is the total pot minus the charity deduction.
func (p *Pool) NetPotCents() int64 {
	total := p.TotalPotCents()
	return total - total*int64(p.CharityPct)/100
}

// CheckpointPct returns the configured payout percentage for a checkpoint
// label, or 0 for unknown labels.
func (p *Pool) CheckpointPct(label string) int {
	switch label {
	case CheckpointQ1:
		return p.Q1Pct
	case CheckpointHalf:
		return p.HalfPct
	case CheckpointQ3:
		return p.Q3Pct
	case CheckpointFinal:
		return p.FinalPct
	}
	return 0
}

// AssignmentFor returns the digit assignment to use for a checkpoint, or nil
// while the pool is unlocked. With per-quarter digits each checkpoint consumes
// its own assignment; otherwise the single assignment serves every checkpoint
// and every event.
func (p *Pool) AssignmentFor(label string) *DigitAssignment {
	if len(p.Digits) == 0 {
		return nil
	}
	if p.PerQuarterDigits {
		idx := CheckpointIndex(label)
		if idx >= 0 && idx < len(p.Digits) {
			return &p.Digits[idx]
		}
	}
	return &p.Digits[0]
}

// DeadlinePassed reports whether the lock deadline, if set, is behind now.
func (p *Pool) DeadlinePassed(now time.Time) bool {
	return p.LockDeadline != nil && now.After(*p.LockDeadline)
}

// CellCountFor counts cells currently held by the given identity key.
func (p *Pool) CellCountFor(identityKey string) int {
	n := 0
	for _, c := range p.Cells {
		if !c.Occupant.IsEmpty() && c.Occupant.Key() == identityKey {
			n++
		}
	}
	return n
}
