package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

type ReservationService struct {
	store store.Store
	hub   *Hub
}

func NewReservationService(st store.Store, hub *Hub) *ReservationService {
	return &ReservationService{store: st, hub: hub}
}

// ReserveCells claims the requested cells for one identity, all or nothing.
// Precondition checks and the writes run inside the pool's serialized
// read-modify-write, so two concurrent requests can never both win a cell.
// The participant projection is refreshed in the same scope, before the
// reservation is durable.
func (s *ReservationService) ReserveCells(ctx context.Context, poolID uint, indices []int, tag string, identity models.Occupant) error {
	if identity.IsEmpty() {
		return apperrors.New(apperrors.InvalidArgument, "an account id or guest key is required")
	}
	if len(indices) == 0 {
		return apperrors.New(apperrors.InvalidArgument, "no cells requested")
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= models.GridSize {
			return apperrors.Newf(apperrors.InvalidArgument, "cell index %d out of range", idx)
		}
		if seen[idx] {
			return apperrors.Newf(apperrors.InvalidArgument, "duplicate cell index %d", idx)
		}
		seen[idx] = true
	}
	if tag != "" {
		identity.Tag = tag
	}

	err := s.store.UpdatePool(ctx, poolID, func(tx store.Store, p *models.Pool) error {
		now := time.Now()
		if p.Locked {
			return apperrors.New(apperrors.FailedPrecondition, "pool is locked")
		}
		if p.DeadlinePassed(now) {
			return apperrors.New(apperrors.FailedPrecondition, "pool lock deadline has passed")
		}
		for _, idx := range indices {
			if !p.Cells[idx].Occupant.IsEmpty() {
				return apperrors.Newf(apperrors.FailedPrecondition, "cell %s is already taken", p.Cells[idx].Label())
			}
		}
		if p.MaxCellsPerPlayer > 0 && p.CellCountFor(identity.Key())+len(indices) > p.MaxCellsPerPlayer {
			return apperrors.Newf(apperrors.ResourceExhausted, "limit of %d cells per player reached", p.MaxCellsPerPlayer)
		}
		if p.MaxCellsTotal > 0 && p.OccupiedCount+len(indices) > p.MaxCellsTotal {
			return apperrors.Newf(apperrors.ResourceExhausted, "pool limit of %d cells reached", p.MaxCellsTotal)
		}

		for _, idx := range indices {
			p.Cells[idx].Occupant = identity
		}
		p.OccupiedCount += len(indices)

		if err := refreshParticipants(ctx, tx, p, now); err != nil {
			return apperrors.Wrap(apperrors.Internal, "failed to refresh participant index", err)
		}
		recordAudit(ctx, tx, p.ID, identity.Key(), models.AuditInfo,
			fmt.Sprintf("reserved %d cell(s)", len(indices)),
			map[string]interface{}{"cells": indices, "tag": identity.Tag})
		return nil
	})
	if err != nil {
		return poolErr(err)
	}

	s.hub.BroadcastPool(ctx, poolID)
	return nil
}
