package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit severities.
const (
	AuditInfo    = "info"
	AuditWarning = "warning"
	AuditError   = "error"
)

// ActorSystem is the actor recorded for background and engine-driven entries.
const ActorSystem = "system"

// AuditEntry is one immutable line in the append-only dispute log. Every
// reservation, identity transfer, lock/digit assignment and winner record
// produces one. Entries are never rewritten or deleted.
type AuditEntry struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	PoolID   uint           `gorm:"index" json:"pool_id"`
	Actor    string         `json:"actor"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Payload  datatypes.JSON `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
