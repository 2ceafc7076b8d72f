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

// PayoutEngine consumes score updates and writes winner records. All of its
// state (rollover accumulator, pending events, remaining event pot) lives on
// the pool row, so concurrent deliveries for the same pool serialize through
// UpdatePool and re-deliveries dedupe on the (pool, label) winner key.
type PayoutEngine struct {
	store store.Store
	hub   *Hub
}

func NewPayoutEngine(st store.Store, hub *Hub) *PayoutEngine {
	return &PayoutEngine{store: st, hub: hub}
}

// HandleScore applies one feed update to a pool. Malformed, out-of-order or
// otherwise unusable updates are written to the audit log and swallowed; only
// store failures come back as errors, so the feed adapter can retry safely.
func (e *PayoutEngine) HandleScore(ctx context.Context, poolID uint, upd models.ScoreUpdate) error {
	if upd.Home < 0 || upd.Away < 0 {
		return apperrors.New(apperrors.InvalidArgument, "scores must not be negative")
	}
	err := e.store.UpdatePool(ctx, poolID, func(tx store.Store, p *models.Pool) error {
		if !p.Locked {
			recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditWarning,
				"score update ignored: pool is not locked", upd)
			return nil
		}
		if p.EventMode != models.EventPayoutNone {
			return e.processEvent(ctx, tx, p, upd)
		}
		return e.processCheckpoint(ctx, tx, p, upd)
	})
	if err != nil {
		return poolErr(err)
	}

	e.hub.BroadcastPool(ctx, poolID)
	return nil
}

// matchCell maps a digit pair onto the grid through an assignment: the away
// digit picks the row, the home digit picks the column. A full permutation
// always contains both digits; the miss path is defensive.
func matchCell(asn *models.DigitAssignment, homeDigit, awayDigit int) (int, bool) {
	row := models.IndexOf(asn.Away, awayDigit)
	col := models.IndexOf(asn.Home, homeDigit)
	if row < 0 || col < 0 {
		return 0, false
	}
	return row*10 + col, true
}

// createWinner writes a record, treating a uniqueness conflict as an
// already-processed duplicate.
func createWinner(ctx context.Context, tx store.Store, w *models.WinnerRecord) error {
	if err := tx.CreateWinner(ctx, w); err != nil && !errors.Is(err, store.ErrConflict) {
		return err
	}
	return nil
}

func (e *PayoutEngine) processCheckpoint(ctx context.Context, tx store.Store, p *models.Pool, upd models.ScoreUpdate) error {
	idx := models.CheckpointIndex(upd.Label)
	if idx < 0 {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditWarning,
			fmt.Sprintf("unknown checkpoint label %q", upd.Label), upd)
		return nil
	}
	if _, err := tx.GetWinner(ctx, p.ID, upd.Label, false); err == nil {
		return nil // already finalized; re-delivery is a no-op
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// Rollover decisions depend on every earlier checkpoint's outcome, so a
	// checkpoint delivered ahead of its predecessors waits for a retry.
	for _, prev := range models.CheckpointOrder[:idx] {
		if _, err := tx.GetWinner(ctx, p.ID, prev, false); errors.Is(err, store.ErrNotFound) {
			recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditWarning,
				fmt.Sprintf("checkpoint %s delivered before %s; deferred", upd.Label, prev), upd)
			return nil
		} else if err != nil {
			return err
		}
	}

	asn := p.AssignmentFor(upd.Label)
	if asn == nil {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"no digit assignment present; manual review required", upd)
		return nil
	}
	homeDigit, awayDigit := upd.Home%10, upd.Away%10
	cellIdx, ok := matchCell(asn, homeDigit, awayDigit)
	if !ok {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"digit missing from axis; no winner computed", upd)
		return nil
	}

	base := p.NetPotCents() * int64(p.CheckpointPct(upd.Label)) / 100
	cell := p.Cells[cellIdx]

	if cell.Occupant.IsEmpty() {
		if p.RolloverEnabled {
			p.RolloverCents += base
			w := &models.WinnerRecord{
				PoolID: p.ID, Label: upd.Label, Rollover: true,
				HomeDigit: homeDigit, AwayDigit: awayDigit,
			}
			if err := createWinner(ctx, tx, w); err != nil {
				return err
			}
			recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
				fmt.Sprintf("%s: cell %s unsold, %d cents rolled forward", upd.Label, cell.Label(), base),
				map[string]interface{}{"rollover_cents": p.RolloverCents})
			return nil
		}
		w := &models.WinnerRecord{
			PoolID: p.ID, Label: upd.Label, Unsold: true, AmountCents: base,
			HomeDigit: homeDigit, AwayDigit: awayDigit,
		}
		if err := createWinner(ctx, tx, w); err != nil {
			return err
		}
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
			fmt.Sprintf("%s: cell %s unsold, %d cents unclaimed", upd.Label, cell.Label(), base), nil)
		return nil
	}

	amount := base + p.RolloverCents
	p.RolloverCents = 0
	primary := &models.WinnerRecord{
		PoolID: p.ID, Label: upd.Label, Occupant: cell.Occupant, AmountCents: amount,
		HomeDigit: homeDigit, AwayDigit: awayDigit,
	}

	if p.ReverseEnabled {
		// Swapped digits: home digit indexes the away axis and vice versa.
		if revIdx, ok := matchCell(asn, awayDigit, homeDigit); ok && revIdx != cellIdx {
			rev := p.Cells[revIdx]
			if !rev.Occupant.IsEmpty() {
				half := amount / 2
				primary.AmountCents = amount - half
				reverse := &models.WinnerRecord{
					PoolID: p.ID, Label: upd.Label, IsReverse: true,
					Occupant: rev.Occupant, AmountCents: half,
					HomeDigit: homeDigit, AwayDigit: awayDigit,
				}
				if err := createWinner(ctx, tx, primary); err != nil {
					return err
				}
				if err := createWinner(ctx, tx, reverse); err != nil {
					return err
				}
				recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
					fmt.Sprintf("%s: %d cents split between %s and reverse winner %s",
						upd.Label, amount, primary.DisplayName(), reverse.DisplayName()), nil)
				return nil
			}
		}
	}

	if err := createWinner(ctx, tx, primary); err != nil {
		return err
	}
	recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
		fmt.Sprintf("%s: %s wins %d cents", upd.Label, primary.DisplayName(), amount), nil)
	return nil
}

// eventLabel is the idempotency key for a score-change event: the same score
// pair delivered twice is the same event.
func eventLabel(upd models.ScoreUpdate) string {
	return fmt.Sprintf("event %d-%d", upd.Home, upd.Away)
}

func (e *PayoutEngine) processEvent(ctx context.Context, tx store.Store, p *models.Pool, upd models.ScoreUpdate) error {
	switch p.EventMode {
	case models.EventPayoutFixed:
		if upd.IsEvent() {
			if err := e.payFixedEvent(ctx, tx, p, upd); err != nil {
				return err
			}
		}
	case models.EventPayoutEqual:
		if upd.IsEvent() {
			e.appendPendingEvent(ctx, tx, p, upd)
		}
	case models.EventPayoutHybrid:
		switch {
		case upd.Label == models.CheckpointHalf || upd.Label == models.CheckpointFinal:
			if err := e.payHybridCheckpoint(ctx, tx, p, upd); err != nil {
				return err
			}
		case upd.IsEvent():
			e.appendPendingEvent(ctx, tx, p, upd)
		}
	}

	// Equal-split and the hybrid remainder cannot be priced until the event
	// count is final, so settlement is deferred to game end.
	if upd.Status == models.GamePost && !p.Settled && p.EventMode != models.EventPayoutFixed {
		return e.settleEvents(ctx, tx, p)
	}
	return nil
}

func (e *PayoutEngine) payFixedEvent(ctx context.Context, tx store.Store, p *models.Pool, upd models.ScoreUpdate) error {
	label := eventLabel(upd)
	if _, err := tx.GetWinner(ctx, p.ID, label, false); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	asn := p.AssignmentFor(upd.Label)
	if asn == nil {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"no digit assignment present; manual review required", upd)
		return nil
	}
	homeDigit, awayDigit := upd.Home%10, upd.Away%10
	cellIdx, ok := matchCell(asn, homeDigit, awayDigit)
	if !ok {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"digit missing from axis; no winner computed", upd)
		return nil
	}

	amount := p.EventAmountCents
	if amount > p.EventPotRemainingCents {
		amount = p.EventPotRemainingCents
	}
	if amount <= 0 {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditWarning,
			fmt.Sprintf("event pot exhausted; no payout for %s", label), nil)
		return nil
	}
	p.EventPotRemainingCents -= amount

	cell := p.Cells[cellIdx]
	w := &models.WinnerRecord{
		PoolID: p.ID, Label: label, AmountCents: amount,
		HomeDigit: homeDigit, AwayDigit: awayDigit,
	}
	if cell.Occupant.IsEmpty() {
		w.Unsold = true
	} else {
		w.Occupant = cell.Occupant
	}
	if err := createWinner(ctx, tx, w); err != nil {
		return err
	}
	recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
		fmt.Sprintf("%s: %s wins %d cents, %d cents remain in event pot",
			label, w.DisplayName(), amount, p.EventPotRemainingCents), nil)
	return nil
}

func (e *PayoutEngine) payHybridCheckpoint(ctx context.Context, tx store.Store, p *models.Pool, upd models.ScoreUpdate) error {
	if _, err := tx.GetWinner(ctx, p.ID, upd.Label, false); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	pct := p.HybridHalfPct
	if upd.Label == models.CheckpointFinal {
		pct = p.HybridFinalPct
	}
	base := p.NetPotCents() * int64(pct) / 100

	asn := p.AssignmentFor(upd.Label)
	if asn == nil {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"no digit assignment present; manual review required", upd)
		return nil
	}
	homeDigit, awayDigit := upd.Home%10, upd.Away%10
	cellIdx, ok := matchCell(asn, homeDigit, awayDigit)
	if !ok {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"digit missing from axis; no winner computed", upd)
		return nil
	}

	cell := p.Cells[cellIdx]
	w := &models.WinnerRecord{
		PoolID: p.ID, Label: upd.Label, AmountCents: base,
		HomeDigit: homeDigit, AwayDigit: awayDigit,
	}
	if cell.Occupant.IsEmpty() {
		w.Unsold = true
	} else {
		w.Occupant = cell.Occupant
	}
	if err := createWinner(ctx, tx, w); err != nil {
		return err
	}
	recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
		fmt.Sprintf("%s: %s wins %d cents", upd.Label, w.DisplayName(), base), nil)
	return nil
}

func (e *PayoutEngine) appendPendingEvent(ctx context.Context, tx store.Store, p *models.Pool, upd models.ScoreUpdate) {
	label := eventLabel(upd)
	if p.Settled {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditWarning,
			fmt.Sprintf("event after settlement ignored: %s", label), upd)
		return
	}
	for _, ev := range p.PendingEvents {
		if ev.Label == label {
			return
		}
	}
	asn := p.AssignmentFor(upd.Label)
	if asn == nil {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"no digit assignment present; manual review required", upd)
		return
	}
	homeDigit, awayDigit := upd.Home%10, upd.Away%10
	cellIdx, ok := matchCell(asn, homeDigit, awayDigit)
	if !ok {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditError,
			"digit missing from axis; event not recorded", upd)
		return
	}
	p.PendingEvents = append(p.PendingEvents, models.PendingEvent{
		Label:     label,
		CellIndex: cellIdx,
		Occupant:  p.Cells[cellIdx].Occupant,
		HomeDigit: homeDigit,
		AwayDigit: awayDigit,
		At:        time.Now(),
	})
	recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
		fmt.Sprintf("qualifying event recorded: %s", label), nil)
}

// settleEvents runs once at game end. Equal-split divides the net pot across
// all recorded events; hybrid divides what the Half and Final shares left
// over. Integer division puts any remainder cents on the last event so the
// payouts always sum to the pot exactly.
func (e *PayoutEngine) settleEvents(ctx context.Context, tx store.Store, p *models.Pool) error {
	p.Settled = true

	n := len(p.PendingEvents)
	if n == 0 {
		recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditWarning,
			"game ended with no qualifying events; nothing to settle", nil)
		return nil
	}

	pot := p.NetPotCents()
	if p.EventMode == models.EventPayoutHybrid {
		pot -= pot*int64(p.HybridHalfPct)/100 + pot*int64(p.HybridFinalPct)/100
	}
	share := pot / int64(n)
	remainder := pot - share*int64(n)

	for i, ev := range p.PendingEvents {
		amount := share
		if i == n-1 {
			amount += remainder
		}
		w := &models.WinnerRecord{
			PoolID: p.ID, Label: ev.Label, AmountCents: amount,
			HomeDigit: ev.HomeDigit, AwayDigit: ev.AwayDigit,
		}
		if ev.Occupant.IsEmpty() {
			w.Unsold = true
		} else {
			w.Occupant = ev.Occupant
		}
		if err := createWinner(ctx, tx, w); err != nil {
			return err
		}
	}
	recordAudit(ctx, tx, p.ID, models.ActorSystem, models.AuditInfo,
		fmt.Sprintf("settled %d event(s), %d cents base share", n, share), nil)
	return nil
}
