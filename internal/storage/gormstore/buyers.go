package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmynk/homequest/internal/filter"
	"github.com/mmynk/homequest/internal/models"
	"github.com/mmynk/homequest/internal/storage"
)

const (
	insertBatchSize = 100
	emailChunkSize  = 500
)

// CreateBuyer persists a new buyer, optionally with its creation history.
func (s *Store) CreateBuyer(ctx context.Context, b *models.Buyer, history func(*models.Buyer) *models.BuyerHistory) error {
	prepare(b)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("failed to insert buyer: %w", mapError(err))
		}
		if history == nil {
			return nil
		}
		if entry := history(b.Clone()); entry != nil {
			return appendHistory(tx, b.ID, entry)
		}
		return nil
	})
	return err
}

// GetBuyer loads a buyer by ID, scoped to its owner.
func (s *Store) GetBuyer(ctx context.Context, ownerID, id string) (*models.Buyer, error) {
	var b models.Buyer
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Take(&b).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get buyer: %w", mapError(err))
	}
	return &b, nil
}

// ListBuyers returns the owner's buyers matching spec, newest first.
func (s *Store) ListBuyers(ctx context.Context, ownerID string, spec filter.Spec) ([]*models.Buyer, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	q = applySpec(q, spec)

	var buyers []*models.Buyer
	if err := q.Order("created_at DESC").Order("id DESC").Find(&buyers).Error; err != nil {
		return nil, fmt.Errorf("failed to list buyers: %w", mapError(err))
	}
	return buyers, nil
}

// MutateBuyer runs fn against the locked buyer and applies its Mutation in
// the same transaction. fn must not call back into the store: SQLite runs
// on a single connection.
func (s *Store) MutateBuyer(ctx context.Context, ownerID, id string, fn storage.MutateFunc) (*models.Buyer, error) {
	var result *models.Buyer

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ? AND owner_id = ?", id, ownerID)
		if tx.Dialector.Name() == DriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var current models.Buyer
		if err := q.Take(&current).Error; err != nil {
			return fmt.Errorf("failed to load buyer: %w", mapError(err))
		}

		m, err := fn(current.Clone())
		if err != nil {
			return err
		}

		switch {
		case m.Delete:
			if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Buyer{}).Error; err != nil {
				return fmt.Errorf("failed to delete buyer: %w", mapError(err))
			}
			result = &current
		case m.Update != nil:
			next := m.Update.Clone()
			next.ID = current.ID
			next.OwnerID = current.OwnerID
			next.CreatedAt = current.CreatedAt
			prepare(next)
			if err := tx.Save(next).Error; err != nil {
				return fmt.Errorf("failed to update buyer: %w", mapError(err))
			}
			result = next
		default:
			result = &current
		}

		if m.History != nil {
			return appendHistory(tx, id, m.History)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// prepare assigns a missing ID and normalizes caller-supplied timestamps to
// UTC; SQLite compares stored times as text.
func prepare(b *models.Buyer) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if !b.CreatedAt.IsZero() {
		b.CreatedAt = b.CreatedAt.UTC()
	}
	if !b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.UpdatedAt.UTC()
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
}

func appendHistory(tx *gorm.DB, buyerID string, entry *models.BuyerHistory) error {
	entry.BuyerID = buyerID
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = tx.NowFunc()
	}
	entry.ChangedAt = entry.ChangedAt.UTC()
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append history: %w", mapError(err))
	}
	return nil
}

// ExistingEmails looks up which emails the owner already uses, in chunks.
func (s *Store) ExistingEmails(ctx context.Context, ownerID string, emails []string) (map[string]bool, error) {
	found := make(map[string]bool)
	for start := 0; start < len(emails); start += emailChunkSize {
		end := min(start+emailChunkSize, len(emails))

		var chunk []string
		err := s.db.WithContext(ctx).
			Model(&models.Buyer{}).
			Where("owner_id = ? AND email IN ?", ownerID, emails[start:end]).
			Pluck("email", &chunk).Error
		if err != nil {
			return nil, fmt.Errorf("failed to look up emails: %w", mapError(err))
		}
		for _, e := range chunk {
			found[e] = true
		}
	}
	return found, nil
}

// InsertBuyers bulk inserts buyers, skipping rows that hit a unique index.
func (s *Store) InsertBuyers(ctx context.Context, buyers []*models.Buyer) (int64, error) {
	if len(buyers) == 0 {
		return 0, nil
	}
	for _, b := range buyers {
		prepare(b)
	}

	var inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(buyers, insertBatchSize)
		if res.Error != nil {
			return fmt.Errorf("failed to insert buyers: %w", mapError(res.Error))
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListHistory returns the history the owner recorded for a buyer. Entries
// outlive the buyer itself.
func (s *Store) ListHistory(ctx context.Context, ownerID, buyerID string) ([]*models.BuyerHistory, error) {
	var entries []*models.BuyerHistory
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? AND changed_by = ?", buyerID, ownerID).
		Order("changed_at ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", mapError(err))
	}
	return entries, nil
}

// BuyerStats counts the owner's buyers in total, recently created, and by
// status.
func (s *Store) BuyerStats(ctx context.Context, ownerID string, since time.Time) (*models.BuyerStats, error) {
	owned := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Buyer{}).Where("owner_id = ?", ownerID)
	}

	stats := &models.BuyerStats{ByStatus: make(map[models.Status]int64)}
	if err := owned().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count buyers: %w", mapError(err))
	}
	if err := owned().Where("created_at >= ?", since.UTC()).Count(&stats.RecentlyCreated).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent buyers: %w", mapError(err))
	}

	var rows []struct {
		Status models.Status
		Count  int64
	}
	if err := owned().Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group buyers by status: %w", mapError(err))
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		if !r.Status.Closed() {
			stats.Pending += r.Count
		}
	}
	return stats, nil
}
