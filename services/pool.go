package services

import (
	"context"
	"errors"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

// poolErr normalizes store failures into caller-facing error kinds.
func poolErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperrors.New(apperrors.NotFound, "pool not found")
	default:
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			return err
		}
		return apperrors.Wrap(apperrors.Internal, "data store failure", err)
	}
}

type PoolService struct {
	store store.Store
}

func NewPoolService(st store.Store) *PoolService {
	return &PoolService{store: st}
}

// CreatePool validates configuration invariants and persists a pool with a
// fresh 100-cell grid. All engine-owned state is reset regardless of what the
// caller sent.
func (s *PoolService) CreatePool(ctx context.Context, p *models.Pool) error {
	if p.CostPerCellCents <= 0 {
		return apperrors.New(apperrors.InvalidArgument, "cost per cell must be positive")
	}
	if p.CharityPct < 0 || p.CharityPct > 100 {
		return apperrors.New(apperrors.InvalidArgument, "charity percentage must be between 0 and 100")
	}
	if p.MaxCellsPerPlayer < 0 || p.MaxCellsTotal < 0 {
		return apperrors.New(apperrors.InvalidArgument, "cell limits must not be negative")
	}
	pcts := []int{p.Q1Pct, p.HalfPct, p.Q3Pct, p.FinalPct}
	sum := 0
	for _, pct := range pcts {
		if pct < 0 {
			return apperrors.New(apperrors.InvalidArgument, "checkpoint percentages must not be negative")
		}
		sum += pct
	}
	if sum > 100 {
		return apperrors.New(apperrors.InvalidArgument, "checkpoint percentages must not exceed 100 in total")
	}
	switch p.EventMode {
	case models.EventPayoutNone, models.EventPayoutEqual:
	case models.EventPayoutFixed:
		if p.EventAmountCents <= 0 {
			return apperrors.New(apperrors.InvalidArgument, "fixed event mode requires a positive event amount")
		}
	case models.EventPayoutHybrid:
		if p.HybridHalfPct < 0 || p.HybridFinalPct < 0 || p.HybridHalfPct+p.HybridFinalPct > 100 {
			return apperrors.New(apperrors.InvalidArgument, "hybrid weights must be between 0 and 100 in total")
		}
	default:
		return apperrors.Newf(apperrors.InvalidArgument, "unknown event payout mode %q", p.EventMode)
	}

	p.ID = 0
	p.Cells = models.NewGrid()
	p.Digits = nil
	p.Locked = false
	p.LockedAt = nil
	p.RolloverCents = 0
	p.OccupiedCount = 0
	p.EventPotRemainingCents = 0
	p.PendingEvents = nil
	p.Settled = false

	if err := s.store.CreatePool(ctx, p); err != nil {
		return apperrors.Wrap(apperrors.Internal, "failed to create pool", err)
	}
	recordAudit(ctx, s.store, p.ID, models.ActorSystem, models.AuditInfo, "pool created", nil)
	return nil
}

func (s *PoolService) GetPool(ctx context.Context, id uint) (*models.Pool, error) {
	p, err := s.store.GetPool(ctx, id)
	if err != nil {
		return nil, poolErr(err)
	}
	return p, nil
}

func (s *PoolService) ListParticipants(ctx context.Context, poolID uint) ([]models.ParticipantIndex, error) {
	if _, err := s.store.GetPool(ctx, poolID); err != nil {
		return nil, poolErr(err)
	}
	entries, err := s.store.ListParticipants(ctx, poolID)
	if err != nil {
		return nil, poolErr(err)
	}
	return entries, nil
}

func (s *PoolService) ListAudit(ctx context.Context, poolID uint) ([]models.AuditEntry, error) {
	if _, err := s.store.GetPool(ctx, poolID); err != nil {
		return nil, poolErr(err)
	}
	entries, err := s.store.ListAudit(ctx, poolID)
	if err != nil {
		return nil, poolErr(err)
	}
	return entries, nil
}
