package services

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

type LockService struct {
	store store.Store
	hub   *Hub
}

func NewLockService(st store.Store, hub *Hub) *LockService {
	return &LockService{store: st, hub: hub}
}

// randomPermutation shuffles the digits 0-9 with crypto/rand. Digit
// assignments decide who wins money, so a predictable generator is never
// acceptable here.
func randomPermutation() ([10]int, error) {
	var perm [10]int
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return perm, err
		}
		j := int(n.Int64())
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

// LockPool makes the one-way OPEN -> LOCKED transition, assigning digits to
// both axes exactly once. Locking an already-locked pool fails and never
// regenerates digits. The assignment is written to the audit log at the
// moment it happens.
func (s *LockService) LockPool(ctx context.Context, poolID uint, actor string) error {
	err := s.store.UpdatePool(ctx, poolID, func(tx store.Store, p *models.Pool) error {
		if p.Locked {
			return apperrors.New(apperrors.FailedPrecondition, "pool is already locked")
		}

		sets := 1
		if p.PerQuarterDigits {
			sets = len(models.CheckpointOrder)
		}
		digits := make([]models.DigitAssignment, 0, sets)
		for i := 0; i < sets; i++ {
			home, err := randomPermutation()
			if err != nil {
				return apperrors.Wrap(apperrors.Internal, "digit assignment failed", err)
			}
			away, err := randomPermutation()
			if err != nil {
				return apperrors.Wrap(apperrors.Internal, "digit assignment failed", err)
			}
			digits = append(digits, models.DigitAssignment{Home: home, Away: away})
		}

		now := time.Now()
		p.Digits = digits
		p.Locked = true
		p.LockedAt = &now
		if p.EventMode == models.EventPayoutFixed {
			p.EventPotRemainingCents = p.NetPotCents()
		}

		recordAudit(ctx, tx, p.ID, actor, models.AuditInfo, "pool locked, digits assigned",
			map[string]interface{}{"digits": digits, "sets": sets})
		return nil
	})
	if err != nil {
		return poolErr(err)
	}

	s.hub.BroadcastPool(ctx, poolID)
	return nil
}
