package models

import "time"

// ParticipantIndex is the denormalized per-(pool, identity) read model.
// It is rebuilt from the full grid on every mutation rather than patched,
// so it can never drift from the cells. Last write wins.
type ParticipantIndex struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PoolID      uint   `gorm:"index;uniqueIndex:idx_pool_identity" json:"pool_id"`
	IdentityKey string `gorm:"uniqueIndex:idx_pool_identity" json:"identity_key"`
	DisplayName string `json:"display_name"`

	CellCount  int      `json:"cell_count"`
	CellLabels []string `gorm:"serializer:json" json:"cell_labels"`
	PaidCount  int      `json:"paid_count"`

	LastActiveAt time.Time `json:"last_active_at"`
}
