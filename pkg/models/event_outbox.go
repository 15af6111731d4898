package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventOutbox stores domain events for reliable dispatch. Rows are written in
// the same transaction as the mutation that produced them and drained to the
// broker only after the transaction commits, so consumers never see an event
// for state that was rolled back.
type EventOutbox struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// EventID is the event's own unique id, used as the idempotency key so
	// a drain retry never publishes the same event twice.
	EventID   string `gorm:"type:varchar(64);not null;uniqueIndex" json:"eventId"`
	EventType string `gorm:"type:varchar(50);not null" json:"eventType"`

	// Payload is the serialized event.
	Payload JSON `gorm:"type:jsonb;not null" json:"payload"`

	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	PublishAttempts int        `gorm:"default:0" json:"publishAttempts"`
	LastError       string     `gorm:"type:text" json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name.
func (EventOutbox) TableName() string {
	return "event_outbox"
}

// Outbox status constants.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

// BeforeCreate hook to ensure required fields.
func (o *EventOutbox) BeforeCreate(tx *gorm.DB) error {
	if o.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if o.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if len(o.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if o.Status == "" {
		o.Status = OutboxStatusPending
	}
	return nil
}

// FindPendingOutboxEntries retrieves pending entries oldest first for
// publishing.
func FindPendingOutboxEntries(db *gorm.DB, limit int) ([]EventOutbox, error) {
	var entries []EventOutbox
	err := db.
		Where("status = ?", OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// FindFailedOutboxEntries retrieves failed entries oldest first.
func FindFailedOutboxEntries(db *gorm.DB, limit int) ([]EventOutbox, error) {
	var entries []EventOutbox
	err := db.
		Where("status = ?", OutboxStatusFailed).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// MarkAsPublished marks the entry as successfully published.
func (o *EventOutbox) MarkAsPublished(db *gorm.DB) error {
	now := time.Now()
	return db.Model(o).Updates(map[string]interface{}{
		"status":       OutboxStatusPublished,
		"published_at": now,
	}).Error
}

// MarkAsFailed records a publish failure.
func (o *EventOutbox) MarkAsFailed(db *gorm.DB, publishErr error) error {
	o.PublishAttempts++
	return db.Model(o).Updates(map[string]interface{}{
		"status":           OutboxStatusFailed,
		"publish_attempts": o.PublishAttempts,
		"last_error":       publishErr.Error(),
	}).Error
}

// RetryOutboxEntry resets a failed entry to pending.
func (o *EventOutbox) RetryOutboxEntry(db *gorm.DB) error {
	return db.Model(o).Updates(map[string]interface{}{
		"status":     OutboxStatusPending,
		"last_error": "",
	}).Error
}

// DeleteOldPublishedEntries removes published entries older than the cutoff,
// keeping the outbox table bounded.
func DeleteOldPublishedEntries(db *gorm.DB, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := db.
		Where("status = ? AND published_at < ?", OutboxStatusPublished, cutoff).
		Delete(&EventOutbox{})
	return result.RowsAffected, result.Error
}

// CountOutboxByStatus returns the number of entries in the given state.
func CountOutboxByStatus(db *gorm.DB, status string) (int64, error) {
	var count int64
	err := db.Model(&EventOutbox{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
