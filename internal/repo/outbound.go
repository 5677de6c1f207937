package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// CreateOutbound appends a sent message to the outbound log.
func CreateOutbound(ctx context.Context, db *gorm.DB, destinationID, text string, now time.Time) (*domain.Outbound, error) {
	o := &domain.Outbound{
		ID:            uuid.NewString(),
		DestinationID: destinationID,
		Text:          text,
		CreatedAt:     now,
	}
	return o, db.WithContext(ctx).Create(o).Error
}

// CountOutbound returns how many messages were sent to destinationID.
func CountOutbound(ctx context.Context, db *gorm.DB, destinationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Outbound{}).
		Where("destination_id = ?", destinationID).
		Count(&total).Error
	return total, err
}

// ListOutboundPage returns a page ordered oldest first (CreatedAt ASC, ID ASC).
func ListOutboundPage(ctx context.Context, db *gorm.DB, destinationID string, offset, limit int) ([]domain.Outbound, error) {
	var out []domain.Outbound
	err := db.WithContext(ctx).
		Where("destination_id = ?", destinationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
