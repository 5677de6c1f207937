package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// CreateRun inserts an audit row, assigning an id when missing.
func CreateRun(ctx context.Context, db *gorm.DB, run *domain.CommandRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(run).Error
}

func runsQuery(ctx context.Context, db *gorm.DB, name string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.CommandRun{})
	if name != "" {
		q = q.Where("name = ?", name)
	}
	return q
}

// CountRuns counts runs, optionally only those of command name.
func CountRuns(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	var total int64
	err := runsQuery(ctx, db, name).Count(&total).Error
	return total, err
}

// ListRunsPage returns runs newest first (CreatedAt DESC, ID DESC).
func ListRunsPage(ctx context.Context, db *gorm.DB, name string, offset, limit int) ([]domain.CommandRun, error) {
	var out []domain.CommandRun
	err := runsQuery(ctx, db, name).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
