package audit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Writer persists single entries. The queue only needs this much of a store.
type Writer interface {
	Insert(ctx context.Context, entry *Entry) error
}

type Store interface {
	Writer
	Query(ctx context.Context, filter Filter) ([]Entry, int64, error)
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, entry *Entry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *GormStore) scoped(ctx context.Context, filter Filter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&Entry{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if len(filter.Actions) > 0 {
		query = query.Where("action IN ?", filter.Actions)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at <= ?", filter.To.UTC())
	}
	return query
}

func (s *GormStore) Query(ctx context.Context, filter Filter) ([]Entry, int64, error) {
	filter.normalize()

	var total int64
	if err := s.scoped(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	if total == 0 {
		return []Entry{}, 0, nil
	}

	var entries []Entry
	err := s.scoped(ctx, filter).
		Order("created_at DESC, id DESC").
		Limit(filter.PerPage).
		Offset((filter.Page - 1) * filter.PerPage).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, total, nil
}

func (s *GormStore) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	filter := Filter{From: from, To: to}
	stats := &Stats{
		ByAction:   make(map[Action]int64),
		ByCategory: make(map[Category]int64),
	}

	var rows []struct {
		Action Action
		Count  int64
	}
	if err := s.scoped(ctx, filter).
		Select("action, COUNT(*) AS count").
		Group("action").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate audit entries: %w", err)
	}
	for _, row := range rows {
		stats.ByAction[row.Action] = row.Count
		stats.ByCategory[row.Action.Category()] += row.Count
		stats.Total += row.Count
	}

	if err := s.scoped(ctx, filter).Where("success = ?", false).Count(&stats.Failures).Error; err != nil {
		return nil, fmt.Errorf("failed to count failed audit entries: %w", err)
	}
	if err := s.scoped(ctx, filter).Where("user_id > 0").Distinct("user_id").Count(&stats.UniqueUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit users: %w", err)
	}
	return stats, nil
}
