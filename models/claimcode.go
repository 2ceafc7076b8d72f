package models

import "time"

// ClaimCode bridges a guest session to an authenticated account. It is a
// low-value, pool-scoped token: short enough to type, consumed by
// incrementing Uses, never deleted.
type ClaimCode struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Code     string `gorm:"uniqueIndex" json:"code"`
	PoolID   uint   `gorm:"index" json:"pool_id"`
	GuestKey string `json:"guest_key"`
	Uses     int    `json:"uses"`

	CreatedAt time.Time `json:"created_at"`
}
