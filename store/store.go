package store

import (
	"context"
	"errors"
	"time"

	"github.com/gridpot/squares-backend/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("record already exists")
)

// Store is the persistence boundary. Two implementations exist: GormStore
// (postgres) and MemoryStore (tests, single-node dev).
//
// UpdatePool is the single unit of mutual exclusion per pool: the callback
// runs with the pool record exclusively held, and concurrent calls for the
// same pool are serialized, never interleaved. The store passed to the
// callback writes winner and audit records within the same transactional
// scope, which is what keeps the rollover accumulator and winner records
// consistent under at-least-once score delivery.
type Store interface {
	CreatePool(ctx context.Context, pool *models.Pool) error
	GetPool(ctx context.Context, id uint) (*models.Pool, error)
	UpdatePool(ctx context.Context, id uint, fn func(tx Store, pool *models.Pool) error) error
	// ListExpiredPools returns ids of unlocked pools whose lock deadline is
	// behind now.
	ListExpiredPools(ctx context.Context, now time.Time) ([]uint, error)

	CreateWinner(ctx context.Context, w *models.WinnerRecord) error
	GetWinner(ctx context.Context, poolID uint, label string, isReverse bool) (*models.WinnerRecord, error)
	GetWinnerByID(ctx context.Context, id uint) (*models.WinnerRecord, error)
	ListWinners(ctx context.Context, poolID uint) ([]models.WinnerRecord, error)
	// SetWinnerPaid flips the paid flag and appends to the paid audit trail.
	// Everything else on a winner record is immutable once written.
	SetWinnerPaid(ctx context.Context, id uint, paid bool, actor string, at time.Time) (*models.WinnerRecord, error)

	CreateClaimCode(ctx context.Context, code *models.ClaimCode) error
	GetClaimCode(ctx context.Context, code string) (*models.ClaimCode, error)
	IncrementClaimCodeUses(ctx context.Context, code string) error

	// ReplaceParticipants swaps the full participant projection for a pool.
	ReplaceParticipants(ctx context.Context, poolID uint, entries []models.ParticipantIndex) error
	ListParticipants(ctx context.Context, poolID uint) ([]models.ParticipantIndex, error)

	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	ListAudit(ctx context.Context, poolID uint) ([]models.AuditEntry, error)
}
