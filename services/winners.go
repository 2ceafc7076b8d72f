package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

type WinnerService struct {
	store store.Store
}

func NewWinnerService(st store.Store) *WinnerService {
	return &WinnerService{store: st}
}

func (s *WinnerService) ListWinners(ctx context.Context, poolID uint) ([]models.WinnerRecord, error) {
	if _, err := s.store.GetPool(ctx, poolID); err != nil {
		return nil, poolErr(err)
	}
	winners, err := s.store.ListWinners(ctx, poolID)
	if err != nil {
		return nil, poolErr(err)
	}
	return winners, nil
}

// MarkPaid flips a winner record's paid flag. Every flip appends who/when to
// the record's paid audit trail and the pool's dispute log.
func (s *WinnerService) MarkPaid(ctx context.Context, winnerID uint, paid bool, actor string) (*models.WinnerRecord, error) {
	if actor == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "an actor is required")
	}
	w, err := s.store.SetWinnerPaid(ctx, winnerID, paid, actor, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.NotFound, "winner record not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to update winner record", err)
	}

	state := "unpaid"
	if paid {
		state = "paid"
	}
	recordAudit(ctx, s.store, w.PoolID, actor, models.AuditInfo,
		fmt.Sprintf("winner record %d (%s) marked %s", w.ID, w.Label, state), nil)
	return w, nil
}
