// Package domain defines the persistence models kept by the bot's HTTP
// transport: inbound receipts, the outbound message log and the command-run
// audit trail. Commands themselves and the roster cache are never persisted.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Receipt records an inbound message id so redelivered events are dropped.
// Rows are only meaningful until ExpiresAt.
type Receipt struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	MessageID     string    `json:"message_id"     gorm:"type:varchar(200);not null;uniqueIndex:ux_receipt_message"`
	UserID        string    `json:"user_id"        gorm:"type:varchar(64);not null"`
	DestinationID string    `json:"destination_id" gorm:"type:varchar(64);not null"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"     gorm:"not null;index"`
}

// TableName returns the database table name for Receipt.
func (Receipt) TableName() string { return "receipts" }

// Outbound is one message the bot sent to a destination.
type Outbound struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	DestinationID string         `json:"destination_id" gorm:"type:varchar(64);not null;index:idx_dest_outbound,priority:1"`
	Text          string         `json:"text"           gorm:"type:text;not null"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"index:idx_dest_outbound,priority:2"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Outbound.
func (Outbound) TableName() string { return "outbound" }

// CommandRun is the audit row written each time the router runs a command.
// Response is the response kind (OK, ERROR, REQUEUE, ...).
type CommandRun struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	CommandID     string    `json:"command_id"     gorm:"type:char(36);not null;index"`
	Name          string    `json:"name"           gorm:"type:varchar(64);not null;index:idx_runs_name,priority:1"`
	UserID        string    `json:"user_id"        gorm:"type:varchar(64);not null"`
	DestinationID string    `json:"destination_id" gorm:"type:varchar(64);not null"`
	Response      string    `json:"response"       gorm:"type:varchar(16);not null"`
	Error         string    `json:"error,omitempty" gorm:"type:text"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_runs_name,priority:2"`
}

// TableName returns the database table name for CommandRun.
func (CommandRun) TableName() string { return "command_runs" }
