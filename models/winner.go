package models

import "time"

// PaidAuditEntry records one change of a winner record's paid flag.
// The slice is append-only.
type PaidAuditEntry struct {
	Actor string    `json:"actor"`
	Paid  bool      `json:"paid"`
	At    time.Time `json:"at"`
}

// WinnerRecord is written exactly once per checkpoint (or per qualifying
// event) and is immutable apart from the separately-audited paid flag.
// Uniqueness on (pool, label, reverse) is what makes re-delivered score
// updates idempotent.
type WinnerRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	PoolID    uint   `gorm:"index;uniqueIndex:idx_pool_checkpoint" json:"pool_id"`
	Label     string `gorm:"uniqueIndex:idx_pool_checkpoint" json:"label"`
	IsReverse bool   `gorm:"uniqueIndex:idx_pool_checkpoint" json:"is_reverse"`

	Occupant    Occupant `gorm:"serializer:json" json:"occupant"`
	AmountCents int64    `json:"amount_cents"`

	// Rollover marks a checkpoint whose share is still accumulating; Unsold
	// marks a winning cell nobody claimed in a pool without rollover.
	Rollover bool `json:"rollover"`
	Unsold   bool `json:"unsold"`

	HomeDigit int `json:"home_digit"`
	AwayDigit int `json:"away_digit"`

	Paid      bool             `json:"paid"`
	PaidAudit []PaidAuditEntry `gorm:"serializer:json" json:"paid_audit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DisplayName is the occupant tag, or the sentinel for unclaimed cells.
func (w *WinnerRecord) DisplayName() string {
	switch {
	case w.Rollover:
		return "Rollover"
	case w.Unsold:
		return "Unsold"
	case w.Occupant.Tag != "":
		return w.Occupant.Tag
	default:
		return w.Occupant.ID
	}
}
