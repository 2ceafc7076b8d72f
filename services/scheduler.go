package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
	"github.com/gridpot/squares-backend/utils/logger"
)

// LockScheduler sweeps for pools whose lock deadline has passed and locks
// them as "system". A pool locked manually between the listing and the sweep
// just reports FailedPrecondition, which the sweep skips.
type LockScheduler struct {
	cron  *cron.Cron
	store store.Store
	locks *LockService
}

func NewLockScheduler(st store.Store, locks *LockService) *LockScheduler {
	return &LockScheduler{cron: cron.New(), store: st, locks: locks}
}

func (s *LockScheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	logger.Infof("auto-lock scheduler started")
	return nil
}

func (s *LockScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("auto-lock scheduler stopped")
}

func (s *LockScheduler) sweep() {
	ctx := context.Background()
	ids, err := s.store.ListExpiredPools(ctx, time.Now())
	if err != nil {
		logger.Errorf("auto-lock sweep failed: %v", err)
		return
	}
	for _, id := range ids {
		if err := s.locks.LockPool(ctx, id, models.ActorSystem); err != nil {
			if apperrors.KindOf(err) == apperrors.FailedPrecondition {
				continue
			}
			logger.Errorf("auto-lock pool %d: %v", id, err)
			continue
		}
		logger.Infof("pool %d auto-locked at deadline", id)
	}
}
