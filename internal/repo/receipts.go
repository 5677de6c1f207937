package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// GetReceipt returns the unexpired receipt for messageID or ErrNotFound.
func GetReceipt(ctx context.Context, db *gorm.DB, messageID string, now time.Time) (*domain.Receipt, error) {
	var rec domain.Receipt
	err := db.WithContext(ctx).
		Where("message_id = ? AND expires_at > ?", messageID, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateReceipt records messageID for ttl. An expired receipt for the same
// id is replaced; a live one yields ErrDuplicate.
func CreateReceipt(ctx context.Context, db *gorm.DB, messageID, userID, destinationID string, now time.Time, ttl time.Duration) (*domain.Receipt, error) {
	rec := &domain.Receipt{
		ID:            uuid.NewString(),
		MessageID:     messageID,
		UserID:        userID,
		DestinationID: destinationID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ? AND expires_at <= ?", messageID, now).
			Delete(&domain.Receipt{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeReceipts deletes receipts that expired at or before now and reports
// how many were removed.
func PurgeReceipts(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Receipt{})
	return res.RowsAffected, res.Error
}

// DeleteReceipt forgets messageID so a redelivery is accepted again.
func DeleteReceipt(ctx context.Context, db *gorm.DB, messageID string) error {
	return db.WithContext(ctx).Where("message_id = ?", messageID).Delete(&domain.Receipt{}).Error
}
