package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
)

// identityDigits maps each axis position to its own digit, so a score pair
// (home, away) lands on cell away*10+home. Deterministic grids keep the
// payout tests readable.
func identityDigits() models.DigitAssignment {
	var d models.DigitAssignment
	for i := 0; i < 10; i++ {
		d.Home[i] = i
		d.Away[i] = i
	}
	return d
}

func newLockedPool(t *testing.T, st *store.MemoryStore, mutate func(p *models.Pool)) *models.Pool {
	t.Helper()
	now := time.Now()
	p := &models.Pool{
		Name:             "test pool",
		CostPerCellCents: 400,
		Q1Pct:            25,
		HalfPct:          25,
		Q3Pct:            25,
		FinalPct:         25,
		RolloverEnabled:  true,
		Cells:            models.NewGrid(),
		Locked:           true,
		LockedAt:         &now,
		Digits:           []models.DigitAssignment{identityDigits()},
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, st.CreatePool(context.Background(), p))
	return p
}

func newOpenPool(t *testing.T, st *store.MemoryStore, mutate func(p *models.Pool)) *models.Pool {
	t.Helper()
	p := &models.Pool{
		Name:             "test pool",
		CostPerCellCents: 400,
		Q1Pct:            25,
		HalfPct:          25,
		Q3Pct:            25,
		FinalPct:         25,
		Cells:            models.NewGrid(),
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, st.CreatePool(context.Background(), p))
	return p
}

func occupy(p *models.Pool, idx int, o models.Occupant) {
	p.Cells[idx].Occupant = o
	p.OccupiedCount++
}

func checkpoint(label string, home, away int) models.ScoreUpdate {
	return models.ScoreUpdate{Home: home, Away: away, Label: label, Status: models.GameIn}
}

func event(home, away int) models.ScoreUpdate {
	return models.ScoreUpdate{Home: home, Away: away, Label: models.LabelEvent, Status: models.GameIn}
}
