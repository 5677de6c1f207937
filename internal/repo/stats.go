package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// OutboundStats returns the number of messages sent to destinationID and the
// newest CreatedAt, or nil when there are none. Handlers derive ETags from it.
func OutboundStats(ctx context.Context, db *gorm.DB, destinationID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Outbound{}).Where("destination_id = ?", destinationID)
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() -> TEXT in SQLite.
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// RunCount is the number of runs that ended with one response kind.
type RunCount struct {
	Name     string `json:"name"`
	Response string `json:"response"`
	Count    int64  `json:"count"`
}

// RunStats groups runs by command name and response kind, ordered by name
// then response.
func RunStats(ctx context.Context, db *gorm.DB) ([]RunCount, error) {
	var out []RunCount
	err := db.WithContext(ctx).Model(&domain.CommandRun{}).
		Select("name, response, COUNT(*) AS count").
		Group("name, response").
		Order("name ASC, response ASC").
		Scan(&out).Error
	return out, err
}
