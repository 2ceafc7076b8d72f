package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

func TestReserveCells(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)
	ctx := context.Background()

	p := newOpenPool(t, st, nil)

	err := svc.ReserveCells(ctx, p.ID, []int{4, 17}, "Dana", models.AccountOccupant("acct-1", ""))
	require.NoError(t, err)

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.OccupiedCount)
	assert.Equal(t, "acct-1", updated.Cells[4].Occupant.ID)
	assert.Equal(t, "Dana", updated.Cells[4].Occupant.Tag)
	assert.Equal(t, "acct-1", updated.Cells[17].Occupant.ID)

	// The participant projection is updated in the same write.
	parts, err := st.ListParticipants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "account:acct-1", parts[0].IdentityKey)
	assert.Equal(t, 2, parts[0].CellCount)
	assert.Equal(t, []string{"0_4", "1_7"}, parts[0].CellLabels)
}

func TestReserveOccupiedCellFails(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)
	ctx := context.Background()

	p := newOpenPool(t, st, nil)

	require.NoError(t, svc.ReserveCells(ctx, p.ID, []int{5}, "", models.AccountOccupant("acct-1", "")))

	// All or nothing: 4 and 6 were free, but the request still writes no cells.
	err := svc.ReserveCells(ctx, p.ID, []int{4, 5, 6}, "", models.AccountOccupant("acct-2", ""))
	assert.Equal(t, apperrors.FailedPrecondition, apperrors.KindOf(err))

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.OccupiedCount)
	assert.True(t, updated.Cells[4].Occupant.IsEmpty())
	assert.True(t, updated.Cells[6].Occupant.IsEmpty())
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)
	ctx := context.Background()

	p := newOpenPool(t, st, nil)

	const callers = 16
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := models.AccountOccupant(string(rune('a'+i)), "")
			results[i] = svc.ReserveCells(ctx, p.ID, []int{42}, "", identity)
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range results {
		if err == nil {
			won++
		} else {
			assert.Equal(t, apperrors.FailedPrecondition, apperrors.KindOf(err))
		}
	}
	assert.Equal(t, 1, won, "exactly one caller wins the cell")

	updated, err := st.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.OccupiedCount)
}

func TestReserveValidation(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)
	ctx := context.Background()

	p := newOpenPool(t, st, nil)
	acct := models.AccountOccupant("acct-1", "")

	for name, err := range map[string]error{
		"no identity":  svc.ReserveCells(ctx, p.ID, []int{1}, "", models.Occupant{}),
		"no cells":     svc.ReserveCells(ctx, p.ID, nil, "", acct),
		"out of range": svc.ReserveCells(ctx, p.ID, []int{100}, "", acct),
		"negative":     svc.ReserveCells(ctx, p.ID, []int{-1}, "", acct),
		"duplicate":    svc.ReserveCells(ctx, p.ID, []int{3, 3}, "", acct),
	} {
		assert.Equalf(t, apperrors.InvalidArgument, apperrors.KindOf(err), "case %q", name)
	}
}

func TestReservePerPlayerLimit(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)
	ctx := context.Background()

	p := newOpenPool(t, st, func(p *models.Pool) {
		p.MaxCellsPerPlayer = 3
	})
	acct := models.AccountOccupant("acct-1", "")

	require.NoError(t, svc.ReserveCells(ctx, p.ID, []int{0, 1}, "", acct))

	// Two more would put the caller at four. The limit counts existing holdings.
	err := svc.ReserveCells(ctx, p.ID, []int{2, 3}, "", acct)
	assert.Equal(t, apperrors.ResourceExhausted, apperrors.KindOf(err))

	require.NoError(t, svc.ReserveCells(ctx, p.ID, []int{2}, "", acct))
}

func TestReservePoolLimit(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)
	ctx := context.Background()

	p := newOpenPool(t, st, func(p *models.Pool) {
		p.MaxCellsTotal = 2
	})

	require.NoError(t, svc.ReserveCells(ctx, p.ID, []int{0, 1}, "", models.AccountOccupant("acct-1", "")))

	err := svc.ReserveCells(ctx, p.ID, []int{2}, "", models.AccountOccupant("acct-2", ""))
	assert.Equal(t, apperrors.ResourceExhausted, apperrors.KindOf(err))
}

func TestReserveLockedPoolFails(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)

	p := newLockedPool(t, st, nil)
	err := svc.ReserveCells(context.Background(), p.ID, []int{0}, "", models.AccountOccupant("acct-1", ""))
	assert.Equal(t, apperrors.FailedPrecondition, apperrors.KindOf(err))
}

func TestReserveAfterDeadlineFails(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)

	past := time.Now().Add(-time.Hour)
	p := newOpenPool(t, st, func(p *models.Pool) {
		p.LockDeadline = &past
	})

	err := svc.ReserveCells(context.Background(), p.ID, []int{0}, "", models.AccountOccupant("acct-1", ""))
	assert.Equal(t, apperrors.FailedPrecondition, apperrors.KindOf(err))
}

func TestReserveUnknownPool(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewReservationService(st, nil)

	err := svc.ReserveCells(context.Background(), 999, []int{0}, "", models.AccountOccupant("acct-1", ""))
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
}
