package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/apperrors"
	"github.com/gridpot/squares-backend/utils/logger"
)

// codeAlphabet drops the visually ambiguous 0/1/I/O. Its length divides 256
// so a byte modulo stays uniform.
const (
	codeAlphabet     = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength       = 6
	codeIssueRetries = 5
)

type IdentityService struct {
	store store.Store
	hub   *Hub
}

func NewIdentityService(st store.Store, hub *Hub) *IdentityService {
	return &IdentityService{store: st, hub: hub}
}

// NewGuestKey mints an ephemeral identity key for an unauthenticated caller.
// The client holds onto it and presents it on later requests.
func (s *IdentityService) NewGuestKey() string {
	return uuid.NewString()
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// IssueClaimCode creates a short pool-scoped code binding a guest key, for an
// authenticated account to redeem later. The code space is finite, so a
// collision retries with a fresh code.
func (s *IdentityService) IssueClaimCode(ctx context.Context, poolID uint, guestKey string) (string, error) {
	if guestKey == "" {
		return "", apperrors.New(apperrors.InvalidArgument, "a guest key is required")
	}
	if _, err := s.store.GetPool(ctx, poolID); err != nil {
		return "", poolErr(err)
	}

	for attempt := 0; attempt < codeIssueRetries; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", apperrors.Wrap(apperrors.Internal, "failed to generate claim code", err)
		}
		rec := &models.ClaimCode{Code: code, PoolID: poolID, GuestKey: guestKey}
		err = s.store.CreateClaimCode(ctx, rec)
		if err == nil {
			recordAudit(ctx, s.store, poolID, models.GuestOccupant(guestKey, "").Key(), models.AuditInfo,
				"claim code issued", nil)
			return code, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", apperrors.Wrap(apperrors.Internal, "failed to persist claim code", err)
		}
	}
	return "", apperrors.New(apperrors.Internal, "could not generate a unique claim code")
}

// TransferResult reports a guest-to-account ownership transfer.
type TransferResult struct {
	PoolID   uint     `json:"pool_id"`
	Claimed  []string `json:"claimed"`
	Warnings []string `json:"warnings,omitempty"`
}

// ResolveByCode redeems a claim code: every cell still held by the bound
// guest key moves to the caller's account. Cells lost to another account in
// the meantime are reported as warnings, never overwritten. The code's use
// counter is incremented; codes are never deleted.
func (s *IdentityService) ResolveByCode(ctx context.Context, code, accountID string) (*TransferResult, error) {
	if accountID == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "an account id is required")
	}
	rec, err := s.store.GetClaimCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.NotFound, "claim code not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to look up claim code", err)
	}
	if rec.PoolID == 0 {
		return nil, apperrors.New(apperrors.Unimplemented, "claim codes must be scoped to a single pool")
	}

	res, err := s.transfer(ctx, rec.PoolID, rec.GuestKey, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementClaimCodeUses(ctx, code); err != nil {
		logger.Warnf("claim code %s: failed to increment use counter: %v", code, err)
	}
	return res, nil
}

// MergeGuestCells is the same transfer driven by a guest key the caller
// already holds, without a code. Conflicts come back as warnings.
func (s *IdentityService) MergeGuestCells(ctx context.Context, poolID uint, guestKey, accountID string) (*TransferResult, error) {
	if guestKey == "" || accountID == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "a guest key and an account id are required")
	}
	return s.transfer(ctx, poolID, guestKey, accountID)
}

func (s *IdentityService) transfer(ctx context.Context, poolID uint, guestKey, accountID string) (*TransferResult, error) {
	res := &TransferResult{PoolID: poolID}
	guestIdentity := models.GuestOccupant(guestKey, "").Key()

	err := s.store.UpdatePool(ctx, poolID, func(tx store.Store, p *models.Pool) error {
		now := time.Now()

		// The guest's last known holdings, per the participant projection.
		// Anything listed there but now held by a different account is a
		// conflict to warn about, not an error.
		prior := make(map[string]bool)
		if entries, err := tx.ListParticipants(ctx, p.ID); err == nil {
			for _, e := range entries {
				if e.IdentityKey == guestIdentity {
					for _, label := range e.CellLabels {
						prior[label] = true
					}
				}
			}
		}

		for i := range p.Cells {
			c := &p.Cells[i]
			if c.Occupant.Kind == models.OccupantGuest && c.Occupant.ID == guestKey {
				c.Occupant = models.Occupant{Kind: models.OccupantAccount, ID: accountID, Tag: c.Occupant.Tag}
				res.Claimed = append(res.Claimed, c.Label())
				delete(prior, c.Label())
			}
		}
		for _, c := range p.Cells {
			if prior[c.Label()] && c.Occupant.Kind == models.OccupantAccount && c.Occupant.ID != accountID {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("cell %s is already owned by another account", c.Label()))
			}
		}

		if len(res.Claimed) == 0 {
			recordAudit(ctx, tx, p.ID, "account:"+accountID, models.AuditWarning,
				"transfer found no cells held by guest key", map[string]interface{}{"warnings": res.Warnings})
			return nil
		}
		if err := refreshParticipants(ctx, tx, p, now); err != nil {
			return apperrors.Wrap(apperrors.Internal, "failed to refresh participant index", err)
		}
		recordAudit(ctx, tx, p.ID, "account:"+accountID, models.AuditInfo,
			fmt.Sprintf("transferred %d cell(s) from guest", len(res.Claimed)),
			map[string]interface{}{"claimed": res.Claimed, "warnings": res.Warnings})
		return nil
	})
	if err != nil {
		return nil, poolErr(err)
	}

	s.hub.BroadcastPool(ctx, poolID)
	return res, nil
}
