package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
)

// SyncRunRepository persists the sync journal.
type SyncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// CreateBatch inserts runs in one statement.
func (r *SyncRunRepository) CreateBatch(ctx context.Context, runs []*domain.SyncRun) error {
	if len(runs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&runs).Error; err != nil {
		return fmt.Errorf("inserting sync runs: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *SyncRunRepository) Recent(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	var runs []*domain.SyncRun
	err := r.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return runs, nil
}
