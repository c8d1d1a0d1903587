// Package domain contains the persistence model for pending trials.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PendingTrial is a trial awaiting confirmation or cancellation. At most one
// row exists per subscriber; the unique index backs the idempotent insert.
type PendingTrial struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Date         time.Time    `gorm:"not null"`
	EventTime    time.Time    `gorm:"not null;index"`
	EventName    string       `gorm:"type:text;not null"`
	SubscriberID string       `gorm:"column:af_sub1;type:text;not null;uniqueIndex"`
}

// TableName sets the database table name.
func (PendingTrial) TableName() string { return "pending_trials" }
