package services

import (
	"context"
	"time"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
)

// BuildParticipantIndex projects the full grid into per-identity aggregates.
// It is a from-scratch rebuild on purpose: the projection can never drift
// from the cells, and at 100 cells the rescan cost is negligible.
func BuildParticipantIndex(p *models.Pool, now time.Time) []models.ParticipantIndex {
	byKey := make(map[string]*models.ParticipantIndex)
	var order []string

	for _, c := range p.Cells {
		if c.Occupant.IsEmpty() {
			continue
		}
		key := c.Occupant.Key()
		entry, ok := byKey[key]
		if !ok {
			entry = &models.ParticipantIndex{
				PoolID:       p.ID,
				IdentityKey:  key,
				DisplayName:  c.Occupant.Tag,
				LastActiveAt: now,
			}
			byKey[key] = entry
			order = append(order, key)
		}
		entry.CellCount++
		entry.CellLabels = append(entry.CellLabels, c.Label())
		if c.Paid {
			entry.PaidCount++
		}
	}

	out := make([]models.ParticipantIndex, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// refreshParticipants replaces the stored projection within the caller's
// transactional scope, keeping reservation durability and the read model in
// step (read-your-writes).
func refreshParticipants(ctx context.Context, st store.Store, p *models.Pool, now time.Time) error {
	return st.ReplaceParticipants(ctx, p.ID, BuildParticipantIndex(p, now))
}
