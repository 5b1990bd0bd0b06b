// Package delivering handles outbound federation: queued activities are
// POSTed to remote inboxes at-least-once with backoff.
package delivering

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"skein/internal/core"
	"skein/internal/nats"
)

// Queue publishes outbound deliveries to the delivery subject. Each
// delivery carries a fresh message id so JetStream deduplication never
// collapses distinct sends of a re-used payload.
type Queue struct {
	Logger *slog.Logger
	NATS   *nats.NATS
}

func (q *Queue) Init(_ context.Context) error {
	q.Logger = q.Logger.With("component", "delivering.Queue")
	return nil
}

func (q *Queue) Enqueue(ctx context.Context, d core.Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling delivery: %w", err)
	}

	if err := q.NATS.Publish(ctx, nats.SubjectDelivery, uuid.NewString(), payload); err != nil {
		return fmt.Errorf("enqueueing delivery: %w", err)
	}

	q.Logger.Debug("delivery enqueued", "to", d.To, "inbox", d.InboxURI)
	return nil
}
