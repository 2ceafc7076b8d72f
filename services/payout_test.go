package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

func TestCheckpointPaysOccupiedCell(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)

	// 100 cells at $10 each with a 10% charity cut: net pot $900, Q1 pays 25%.
	p := newLockedPool(t, st, func(p *models.Pool) {
		p.CostPerCellCents = 1000
		p.CharityPct = 10
		for i := range p.Cells {
			occupy(p, i, models.AccountOccupant("acct-1", "Dana"))
		}
	})

	require.NoError(t, engine.HandleScore(context.Background(), p.ID, checkpoint(models.CheckpointQ1, 7, 3)))

	w, err := st.GetWinner(context.Background(), p.ID, models.CheckpointQ1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(22500), w.AmountCents)
	assert.Equal(t, models.AccountOccupant("acct-1", "Dana"), w.Occupant)
	assert.Equal(t, 7, w.HomeDigit)
	assert.Equal(t, 3, w.AwayDigit)
	assert.False(t, w.Rollover)
	assert.False(t, w.Unsold)
}

func TestRolloverAccumulatesAndPaysOut(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	// Half the grid sold at $8: $400 pot, 25% per checkpoint. The first three
	// checkpoints land on unsold cells, so the Final winner takes everything.
	p := newLockedPool(t, st, func(p *models.Pool) {
		p.CostPerCellCents = 800
		for i := 0; i < 50; i++ {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointQ1, 7, 5)))   // cell 57, unsold
	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointHalf, 8, 6))) // cell 68, unsold
	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointQ3, 9, 7)))   // cell 79, unsold
	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointFinal, 3, 2)))

	final, err := st.GetWinner(ctx, p.ID, models.CheckpointFinal, false)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), final.AmountCents, "final winner takes the three rolled-over shares plus its own")

	q1, err := st.GetWinner(ctx, p.ID, models.CheckpointQ1, false)
	require.NoError(t, err)
	assert.True(t, q1.Rollover)
	assert.Zero(t, q1.AmountCents)

	// Not a cent created or destroyed.
	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	var total int64
	for _, w := range winners {
		total += w.AmountCents
	}
	assert.Equal(t, int64(40000), total)

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.RolloverCents)
}

func TestUnsoldCheckpointWithoutRollover(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	p := newLockedPool(t, st, func(p *models.Pool) {
		p.RolloverEnabled = false
		for i := 0; i < 50; i++ {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointQ1, 7, 5)))

	w, err := st.GetWinner(ctx, p.ID, models.CheckpointQ1, false)
	require.NoError(t, err)
	assert.True(t, w.Unsold)
	assert.Equal(t, int64(5000), w.AmountCents, "unsold share is recorded, not rolled forward")

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.RolloverCents)
}

func TestReverseWinnerSplit(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	// Full grid at $8: $800 pot, Q1 base $200. Score 17-23 lands on cell 37
	// for the primary and the mirrored cell 73 for the reverse winner.
	p := newLockedPool(t, st, func(p *models.Pool) {
		p.CostPerCellCents = 800
		p.ReverseEnabled = true
		for i := range p.Cells {
			occupy(p, i, models.AccountOccupant("filler", ""))
		}
		p.Cells[37].Occupant = models.AccountOccupant("acct-a", "Alice")
		p.Cells[73].Occupant = models.AccountOccupant("acct-b", "Bob")
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointQ1, 17, 23)))

	primary, err := st.GetWinner(ctx, p.ID, models.CheckpointQ1, false)
	require.NoError(t, err)
	assert.Equal(t, "acct-a", primary.Occupant.ID)
	assert.Equal(t, int64(10000), primary.AmountCents)

	reverse, err := st.GetWinner(ctx, p.ID, models.CheckpointQ1, true)
	require.NoError(t, err)
	assert.True(t, reverse.IsReverse)
	assert.Equal(t, "acct-b", reverse.Occupant.ID)
	assert.Equal(t, int64(10000), reverse.AmountCents)
}

func TestReverseSkippedWhenDigitsMatch(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	// 14-14 mirrors onto itself; the single winner keeps the full share.
	p := newLockedPool(t, st, func(p *models.Pool) {
		p.CostPerCellCents = 800
		p.ReverseEnabled = true
		for i := range p.Cells {
			occupy(p, i, models.AccountOccupant("acct-a", ""))
		}
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointQ1, 14, 14)))

	primary, err := st.GetWinner(ctx, p.ID, models.CheckpointQ1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), primary.AmountCents)

	_, err = st.GetWinner(ctx, p.ID, models.CheckpointQ1, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckpointRedeliveryIsNoOp(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	p := newLockedPool(t, st, func(p *models.Pool) {
		p.CostPerCellCents = 800
		for i := 0; i < 50; i++ {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	// Q1 lands unsold; a redelivery must not roll the share forward twice.
	upd := checkpoint(models.CheckpointQ1, 7, 5)
	require.NoError(t, engine.HandleScore(ctx, p.ID, upd))
	require.NoError(t, engine.HandleScore(ctx, p.ID, upd))

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), updated.RolloverCents)

	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, winners, 1)
}

func TestCheckpointOutOfOrderDeferred(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	p := newLockedPool(t, st, func(p *models.Pool) {
		for i := range p.Cells {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	// Half arrives first: no record, but the delivery is audit logged.
	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointHalf, 10, 7)))
	_, err := st.GetWinner(ctx, p.ID, models.CheckpointHalf, false)
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := st.ListAudit(ctx, p.ID)
	require.NoError(t, err)
	var warned bool
	for _, e := range entries {
		if e.Severity == models.AuditWarning {
			warned = true
		}
	}
	assert.True(t, warned, "out-of-order delivery should leave an audit warning")

	// Once Q1 is in, the feed's retry of Half goes through.
	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointQ1, 7, 3)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointHalf, 10, 7)))
	_, err = st.GetWinner(ctx, p.ID, models.CheckpointHalf, false)
	assert.NoError(t, err)
}

func TestScoreIgnoredBeforeLock(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	p := newOpenPool(t, st, nil)

	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointQ1, 7, 3)))

	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestNegativeScoreRejected(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)

	p := newLockedPool(t, st, nil)
	err := engine.HandleScore(context.Background(), p.ID, models.ScoreUpdate{Home: -1, Away: 3, Label: models.CheckpointQ1})
	assert.Equal(t, apperrors.InvalidArgument, apperrors.KindOf(err))
}

func TestFixedEventModeDrainsPot(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	// $50 per event out of a $120 pot: two full payouts, one partial, then dry.
	p := newLockedPool(t, st, func(p *models.Pool) {
		p.EventMode = models.EventPayoutFixed
		p.EventAmountCents = 5000
		p.EventPotRemainingCents = 12000
		for i := range p.Cells {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, event(7, 0)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, event(7, 3)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, event(10, 3)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, event(14, 3))) // pot exhausted

	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, winners, 3)
	assert.Equal(t, int64(5000), winners[0].AmountCents)
	assert.Equal(t, int64(5000), winners[1].AmountCents)
	assert.Equal(t, int64(2000), winners[2].AmountCents)

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.EventPotRemainingCents)
}

func TestFixedEventRedeliveryIsNoOp(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	p := newLockedPool(t, st, func(p *models.Pool) {
		p.EventMode = models.EventPayoutFixed
		p.EventAmountCents = 5000
		p.EventPotRemainingCents = 40000
		for i := range p.Cells {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, event(7, 0)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, event(7, 0)))

	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, winners, 1)

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(35000), updated.EventPotRemainingCents, "the same score pair is charged once")
}

func TestEqualSplitSettlesAtGameEnd(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	// $100 pot over three qualifying events: 33.33 + 33.33 + 33.34.
	p := newLockedPool(t, st, func(p *models.Pool) {
		p.EventMode = models.EventPayoutEqual
		for i := 0; i < 25; i++ {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, event(7, 0)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, event(7, 3)))

	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, winners, "nothing pays out until the event count is final")

	final := event(14, 3)
	final.Status = models.GamePost
	require.NoError(t, engine.HandleScore(ctx, p.ID, final))

	winners, err = st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, winners, 3)
	var total int64
	for _, w := range winners {
		total += w.AmountCents
	}
	assert.Equal(t, int64(10000), total, "remainder cents land on the last event")
	assert.Equal(t, int64(3334), winners[2].AmountCents)

	// A stray post-settlement event changes nothing.
	require.NoError(t, engine.HandleScore(ctx, p.ID, event(17, 3)))
	winners, err = st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, winners, 3)
}

func TestHybridModeChecksAndRemainder(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	// 20% at the half, 30% at the final, events split the remaining 50%.
	p := newLockedPool(t, st, func(p *models.Pool) {
		p.EventMode = models.EventPayoutHybrid
		p.HybridHalfPct = 20
		p.HybridFinalPct = 30
		p.CostPerCellCents = 1000
		for i := range p.Cells {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	require.NoError(t, engine.HandleScore(ctx, p.ID, event(7, 0)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, checkpoint(models.CheckpointHalf, 7, 3)))
	require.NoError(t, engine.HandleScore(ctx, p.ID, event(10, 3)))

	finalUpd := checkpoint(models.CheckpointFinal, 10, 6)
	finalUpd.Status = models.GamePost
	require.NoError(t, engine.HandleScore(ctx, p.ID, finalUpd))

	half, err := st.GetWinner(ctx, p.ID, models.CheckpointHalf, false)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), half.AmountCents)

	finalRec, err := st.GetWinner(ctx, p.ID, models.CheckpointFinal, false)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), finalRec.AmountCents)

	for _, pair := range []struct{ home, away int }{{7, 0}, {10, 3}} {
		w, err := st.GetWinner(ctx, p.ID, fmt.Sprintf("event %d-%d", pair.home, pair.away), false)
		require.NoError(t, err)
		assert.Equal(t, int64(25000), w.AmountCents)
	}

	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	var total int64
	for _, w := range winners {
		total += w.AmountCents
	}
	assert.Equal(t, int64(100000), total)
}

func TestEqualSplitNoEvents(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)
	ctx := context.Background()

	p := newLockedPool(t, st, func(p *models.Pool) {
		p.EventMode = models.EventPayoutEqual
		for i := 0; i < 10; i++ {
			occupy(p, i, models.AccountOccupant("acct-1", ""))
		}
	})

	// Scoreless game: settlement runs, records nothing, and marks the pool.
	final := models.ScoreUpdate{Home: 0, Away: 0, Label: models.CheckpointFinal, Status: models.GamePost}
	require.NoError(t, engine.HandleScore(ctx, p.ID, final))

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, updated.Settled)

	winners, err := st.ListWinners(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestHandleScoreUnknownPool(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewPayoutEngine(st, nil)

	err := engine.HandleScore(context.Background(), 999, checkpoint(models.CheckpointQ1, 7, 3))
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
}
