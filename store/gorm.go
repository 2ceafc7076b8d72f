package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gridpot/squares-backend/models"
)

// GormStore persists through gorm/postgres. Pool mutual exclusion is a
// SELECT ... FOR UPDATE on the pool row inside one transaction, so two
// concurrent UpdatePool calls for the same pool serialize at the database.
// Requires TranslateError so duplicate-key violations surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

func (s *GormStore) CreatePool(ctx context.Context, pool *models.Pool) error {
	return translate(s.db.WithContext(ctx).Create(pool).Error)
}

func (s *GormStore) GetPool(ctx context.Context, id uint) (*models.Pool, error) {
	var pool models.Pool
	if err := s.db.WithContext(ctx).First(&pool, id).Error; err != nil {
		return nil, translate(err)
	}
	return &pool, nil
}

func (s *GormStore) UpdatePool(ctx context.Context, id uint, fn func(tx Store, pool *models.Pool) error) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pool models.Pool
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pool, id).Error; err != nil {
			return err
		}
		if err := fn(&GormStore{db: tx}, &pool); err != nil {
			return err
		}
		return tx.Save(&pool).Error
	}))
}

func (s *GormStore) ListExpiredPools(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.Pool{}).
		Where("locked = ? AND lock_deadline IS NOT NULL AND lock_deadline < ?", false, now).
		Pluck("id", &ids).Error
	return ids, translate(err)
}

func (s *GormStore) CreateWinner(ctx context.Context, w *models.WinnerRecord) error {
	return translate(s.db.WithContext(ctx).Create(w).Error)
}

func (s *GormStore) GetWinner(ctx context.Context, poolID uint, label string, isReverse bool) (*models.WinnerRecord, error) {
	var w models.WinnerRecord
	err := s.db.WithContext(ctx).
		Where("pool_id = ? AND label = ? AND is_reverse = ?", poolID, label, isReverse).
		First(&w).Error
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *GormStore) GetWinnerByID(ctx context.Context, id uint) (*models.WinnerRecord, error) {
	var w models.WinnerRecord
	if err := s.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *GormStore) ListWinners(ctx context.Context, poolID uint) ([]models.WinnerRecord, error) {
	var out []models.WinnerRecord
	err := s.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("id").
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) SetWinnerPaid(ctx context.Context, id uint, paid bool, actor string, at time.Time) (*models.WinnerRecord, error) {
	var w models.WinnerRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, id).Error; err != nil {
			return err
		}
		w.Paid = paid
		w.PaidAudit = append(w.PaidAudit, models.PaidAuditEntry{Actor: actor, Paid: paid, At: at})
		return tx.Save(&w).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *GormStore) CreateClaimCode(ctx context.Context, code *models.ClaimCode) error {
	return translate(s.db.WithContext(ctx).Create(code).Error)
}

func (s *GormStore) GetClaimCode(ctx context.Context, code string) (*models.ClaimCode, error) {
	var c models.ClaimCode
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) IncrementClaimCodeUses(ctx context.Context, code string) error {
	res := s.db.WithContext(ctx).
		Model(&models.ClaimCode{}).
		Where("code = ?", code).
		UpdateColumn("uses", gorm.Expr("uses + 1"))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ReplaceParticipants(ctx context.Context, poolID uint, entries []models.ParticipantIndex) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pool_id = ?", poolID).Delete(&models.ParticipantIndex{}).Error; err != nil {
			return err
		}
		for i := range entries {
			entries[i].ID = 0
			entries[i].PoolID = poolID
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	}))
}

func (s *GormStore) ListParticipants(ctx context.Context, poolID uint) ([]models.ParticipantIndex, error) {
	var out []models.ParticipantIndex
	err := s.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("identity_key").
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) ListAudit(ctx context.Context, poolID uint) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := s.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("id").
		Find(&out).Error
	return out, translate(err)
}
