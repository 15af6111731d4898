package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/minerva-intel/minerva/pkg/models"
)

// Drainer moves pending outbox rows to the publisher. It polls on an
// interval and can be nudged with Wake after a transaction commits so events
// usually go out immediately.
type Drainer struct {
	db        *gorm.DB
	publisher Publisher
	log       hclog.Logger

	interval  time.Duration
	batchSize int
	retention time.Duration
	wake      chan struct{}
}

// DrainerOption configures a Drainer.
type DrainerOption func(*Drainer)

// WithInterval sets the poll interval. Default is 5 seconds.
func WithInterval(d time.Duration) DrainerOption {
	return func(dr *Drainer) { dr.interval = d }
}

// WithBatchSize sets how many pending rows are claimed per pass. Default 100.
func WithBatchSize(n int) DrainerOption {
	return func(dr *Drainer) { dr.batchSize = n }
}

// WithRetention sets how long published entries are kept before a drain pass
// prunes them. Zero disables pruning. Default is 24 hours.
func WithRetention(d time.Duration) DrainerOption {
	return func(dr *Drainer) { dr.retention = d }
}

// NewDrainer returns a Drainer over the given database and publisher.
func NewDrainer(db *gorm.DB, publisher Publisher, log hclog.Logger, opts ...DrainerOption) *Drainer {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	d := &Drainer{
		db:        db,
		publisher: publisher,
		log:       log,
		interval:  5 * time.Second,
		batchSize: 100,
		retention: 24 * time.Hour,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Wake nudges the drainer to run a pass without waiting for the next tick.
// Safe to call from any goroutine; a pending nudge coalesces.
func (d *Drainer) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains until the context is cancelled.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.DrainOnce(ctx); err != nil {
			d.log.Error("outbox drain pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DrainOnce publishes one batch of pending outbox entries. Each entry is
// retried with exponential backoff before being marked failed; failures don't
// stop the rest of the batch.
func (d *Drainer) DrainOnce(ctx context.Context) error {
	entries, err := models.FindPendingOutboxEntries(d.db, d.batchSize)
	if err != nil {
		return fmt.Errorf("fetching pending outbox entries: %w", err)
	}

	var result *multierror.Error
	for i := range entries {
		entry := &entries[i]
		if err := d.publishEntry(ctx, entry); err != nil {
			result = multierror.Append(result, fmt.Errorf("event %s: %w", entry.EventID, err))
			if markErr := entry.MarkAsFailed(d.db, err); markErr != nil {
				result = multierror.Append(result, markErr)
			}
			continue
		}
		if err := entry.MarkAsPublished(d.db); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if d.retention > 0 {
		if _, err := models.DeleteOldPublishedEntries(d.db, d.retention); err != nil {
			result = multierror.Append(result, fmt.Errorf("pruning published entries: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// RetryFailed re-queues one batch of failed entries so the next drain pass
// picks them up again. Returns how many entries were reset.
func (d *Drainer) RetryFailed() (int, error) {
	entries, err := models.FindFailedOutboxEntries(d.db, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetching failed outbox entries: %w", err)
	}

	var result *multierror.Error
	retried := 0
	for i := range entries {
		if err := entries[i].RetryOutboxEntry(d.db); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		retried++
	}
	if retried > 0 {
		d.log.Info("re-queued failed outbox entries", "count", retried)
	}
	return retried, result.ErrorOrNil()
}

func (d *Drainer) publishEntry(ctx context.Context, entry *models.EventOutbox) error {
	var evt Event
	if err := json.Unmarshal(entry.Payload, &evt); err != nil {
		return fmt.Errorf("unmarshaling outbox payload: %w", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	err := backoff.Retry(func() error {
		return d.publisher.Publish(ctx, evt)
	}, policy)
	if err != nil {
		return err
	}

	d.log.Debug("published event", "event_id", evt.ID, "type", evt.Type)
	return nil
}

// Enqueue writes the event to the outbox inside the given transaction. The
// event becomes visible to the drainer only when the transaction commits.
func Enqueue(tx *gorm.DB, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	entry := models.EventOutbox{
		EventID:   evt.ID,
		EventType: string(evt.Type),
		Payload:   models.JSON(payload),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("enqueueing event: %w", err)
	}
	return nil
}
