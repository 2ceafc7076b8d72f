package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gridpot/squares-backend/models"
)

// MemoryStore keeps everything in process memory. It backs the test suite
// and single-node dev runs. Pool mutual exclusion is a per-pool mutex held
// for the whole UpdatePool callback, which gives the same serialization
// contract as the postgres row lock.
type MemoryStore struct {
	mu        sync.RWMutex
	pools     map[uint]*models.Pool
	poolLocks map[uint]*sync.Mutex

	winners      map[uint]*models.WinnerRecord
	codes        map[string]*models.ClaimCode
	participants map[uint]map[string]models.ParticipantIndex
	audit        []models.AuditEntry

	nextPoolID   uint
	nextWinnerID uint
	nextAuditID  uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:        make(map[uint]*models.Pool),
		poolLocks:    make(map[uint]*sync.Mutex),
		winners:      make(map[uint]*models.WinnerRecord),
		codes:        make(map[string]*models.ClaimCode),
		participants: make(map[uint]map[string]models.ParticipantIndex),
	}
}

func clonePool(p *models.Pool) *models.Pool {
	cp := *p
	cp.Cells = append([]models.Cell(nil), p.Cells...)
	cp.Digits = append([]models.DigitAssignment(nil), p.Digits...)
	cp.PendingEvents = append([]models.PendingEvent(nil), p.PendingEvents...)
	if p.LockDeadline != nil {
		d := *p.LockDeadline
		cp.LockDeadline = &d
	}
	if p.LockedAt != nil {
		d := *p.LockedAt
		cp.LockedAt = &d
	}
	return &cp
}

func (s *MemoryStore) CreatePool(ctx context.Context, pool *models.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pool.ID == 0 {
		s.nextPoolID++
		pool.ID = s.nextPoolID
	} else if pool.ID > s.nextPoolID {
		s.nextPoolID = pool.ID
	}
	pool.CreatedAt = time.Now()
	pool.UpdatedAt = pool.CreatedAt
	s.pools[pool.ID] = clonePool(pool)
	s.poolLocks[pool.ID] = &sync.Mutex{}
	return nil
}

func (s *MemoryStore) GetPool(ctx context.Context, id uint) (*models.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePool(p), nil
}

func (s *MemoryStore) UpdatePool(ctx context.Context, id uint, fn func(tx Store, pool *models.Pool) error) error {
	s.mu.RLock()
	lock, ok := s.poolLocks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current := s.pools[id]
	s.mu.RUnlock()
	if current == nil {
		return ErrNotFound
	}

	work := clonePool(current)
	if err := fn(s, work); err != nil {
		return err
	}
	work.UpdatedAt = time.Now()

	s.mu.Lock()
	s.pools[id] = work
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListExpiredPools(ctx context.Context, now time.Time) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uint
	for id, p := range s.pools {
		if !p.Locked && p.DeadlinePassed(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) CreateWinner(ctx context.Context, w *models.WinnerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.winners {
		if existing.PoolID == w.PoolID && existing.Label == w.Label && existing.IsReverse == w.IsReverse {
			return ErrConflict
		}
	}
	s.nextWinnerID++
	w.ID = s.nextWinnerID
	w.CreatedAt = time.Now()
	cp := *w
	cp.PaidAudit = append([]models.PaidAuditEntry(nil), w.PaidAudit...)
	s.winners[w.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWinner(ctx context.Context, poolID uint, label string, isReverse bool) (*models.WinnerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.winners {
		if w.PoolID == poolID && w.Label == label && w.IsReverse == isReverse {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetWinnerByID(ctx context.Context, id uint) (*models.WinnerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.winners[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) ListWinners(ctx context.Context, poolID uint) ([]models.WinnerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.WinnerRecord
	for _, w := range s.winners {
		if w.PoolID == poolID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetWinnerPaid(ctx context.Context, id uint, paid bool, actor string, at time.Time) (*models.WinnerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.winners[id]
	if !ok {
		return nil, ErrNotFound
	}
	w.Paid = paid
	w.PaidAudit = append(w.PaidAudit, models.PaidAuditEntry{Actor: actor, Paid: paid, At: at})
	cp := *w
	cp.PaidAudit = append([]models.PaidAuditEntry(nil), w.PaidAudit...)
	return &cp, nil
}

func (s *MemoryStore) CreateClaimCode(ctx context.Context, code *models.ClaimCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[code.Code]; exists {
		return ErrConflict
	}
	code.ID = uint(len(s.codes) + 1)
	code.CreatedAt = time.Now()
	cp := *code
	s.codes[code.Code] = &cp
	return nil
}

func (s *MemoryStore) GetClaimCode(ctx context.Context, code string) (*models.ClaimCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) IncrementClaimCodeUses(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return ErrNotFound
	}
	c.Uses++
	return nil
}

func (s *MemoryStore) ReplaceParticipants(ctx context.Context, poolID uint, entries []models.ParticipantIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byIdentity := make(map[string]models.ParticipantIndex, len(entries))
	for _, e := range entries {
		e.PoolID = poolID
		byIdentity[e.IdentityKey] = e
	}
	s.participants[poolID] = byIdentity
	return nil
}

func (s *MemoryStore) ListParticipants(ctx context.Context, poolID uint) ([]models.ParticipantIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ParticipantIndex
	for _, e := range s.participants[poolID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey < out[j].IdentityKey })
	return out, nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAuditID++
	entry.ID = s.nextAuditID
	entry.CreatedAt = time.Now()
	s.audit = append(s.audit, *entry)
	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, poolID uint) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AuditEntry
	for _, e := range s.audit {
		if e.PoolID == poolID {
			out = append(out, e)
		}
	}
	return out, nil
}
