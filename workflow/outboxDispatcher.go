package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/metrics"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/sirupsen/logrus"
)

// Publisher delivers one order event and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, msg config.OrderEventMessage) (string, error)
}

type PubSubPublisher struct{}

func (PubSubPublisher) Publish(ctx context.Context, msg config.OrderEventMessage) (string, error) {
	return config.PublishOrderEventWithResult(ctx, msg)
}

// OutboxDispatcher publishes order outbox rows after their transaction committed.
type OutboxDispatcher struct {
	Store        models.Store
	Publisher    Publisher
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(store models.Store, publisher Publisher, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		Store:          store,
		Publisher:      publisher,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) eligible(rec *models.OrderOutbox, now time.Time) bool {
	switch rec.PublishStatus {
	case models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed:
		return rec.NextAttemptAt == nil || !rec.NextAttemptAt.After(now)
	case models.OutboxPublishStatusProcessing:
		// dispatcher crashed mid-batch
		return rec.LockedAt != nil && !rec.LockedAt.After(now.Add(-d.LockTimeout))
	}
	return false
}

// DispatchOnce claims one batch and publishes it. It returns the number of rows published.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.Store == nil || d.Publisher == nil {
		return 0
	}
	now := time.Now().UTC()

	var claimed []models.OrderOutbox
	err := d.Store.Transaction(ctx, func(tx models.Store) error {
		candidates, err := tx.OrderOutbox().Find(ctx, models.Filter{"publish_status": []string{
			models.OutboxPublishStatusPending,
			models.OutboxPublishStatusFailed,
			models.OutboxPublishStatusProcessing,
		}}, "id asc", 0)
		if err != nil {
			return err
		}
		for _, rec := range candidates {
			if d.BatchSize > 0 && len(claimed) >= d.BatchSize {
				break
			}
			if !d.eligible(rec, now) {
				continue
			}
			if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				if _, err := tx.OrderOutbox().Update(ctx, rec.ID, map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}); err != nil {
					return err
				}
				metrics.OutboxPublishTotal.WithLabelValues("dead").Inc()
				continue
			}
			updated, err := tx.OrderOutbox().Update(ctx, rec.ID, map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   rec.PublishAttempts + 1,
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			})
			if err != nil {
				return err
			}
			claimed = append(claimed, *updated)
		}
		return nil
	})
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "DispatchOnce", "claim batch", d.DispatcherID, err)
		return 0
	}

	sent := 0
	for _, rec := range claimed {
		pubID, pubErr := d.Publisher.Publish(ctx, models.ConvertToOrderEventMessage(rec))
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		d.markPublishSent(ctx, rec, pubID)
		sent++
	}
	return sent
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, rec models.OrderOutbox, pubsubMsgID string) {
	now := time.Now().UTC()
	id := pubsubMsgID
	if _, err := d.Store.OrderOutbox().Update(ctx, rec.ID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusSent,
		"published_at":       &now,
		"pub_sub_message_id": &id,
		"locked_at":          nil,
		"locked_by":          nil,
		"next_attempt_at":    nil,
	}); err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "markPublishSent", "update outbox", rec.ID, err)
		return
	}
	metrics.OutboxPublishTotal.WithLabelValues("sent").Inc()
}

func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			return time.Minute * 10
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.OrderOutbox, err error) {
	msg := err.Error()
	fields := map[string]interface{}{
		"record_id": rec.ID,
		"order_id":  rec.OrderId,
		"attempt":   rec.PublishAttempts,
	}

	// terminal after MaxAttempts
	if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
		_, _ = d.Store.OrderOutbox().Update(ctx, rec.ID, map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusDead,
			"last_publish_error": &msg,
			"next_attempt_at":    nil,
			"locked_at":          nil,
			"locked_by":          nil,
		})
		metrics.OutboxPublishTotal.WithLabelValues("dead").Inc()
		config.LogError(d.Logger, "outboxDispatcher.go", "markPublishFailed", "moved to DEAD after max attempts", fields, err)
		return
	}

	next := time.Now().UTC().Add(d.backoff(rec.PublishAttempts))
	_, _ = d.Store.OrderOutbox().Update(ctx, rec.ID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusFailed,
		"last_publish_error": &msg,
		"next_attempt_at":    &next,
		"locked_at":          nil,
		"locked_by":          nil,
	})
	metrics.OutboxPublishTotal.WithLabelValues("failed").Inc()
	fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
	config.LogError(d.Logger, "outboxDispatcher.go", "markPublishFailed", "publish failed", fields, err)
}
