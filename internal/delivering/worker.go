package delivering

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zhulik/pips"
	"github.com/zhulik/pips/apply"

	"skein/internal/core"
	"skein/internal/nats"
)

const maxAttempts = 10

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skein_deliveries_total",
	Help: "The total number of outbound delivery attempts",
}, []string{"outcome"})

// Worker drains the delivery consumer and POSTs each payload to its
// target inbox. Failed deliveries are redelivered with growing delay
// until maxAttempts, then dropped.
type Worker struct {
	Logger *slog.Logger
	NATS   *nats.NATS
	Client core.Fetcher
}

func (w *Worker) Init(_ context.Context) error {
	w.Logger = w.Logger.With("component", "delivering.Worker")
	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("delivery worker running")

	return w.NATS.ConsumeToPipeline(ctx, nats.StreamName, nats.ConsumerDeliver,
		pips.New[jetstream.Msg, any]().
			Then(apply.Each(w.handle)),
	)
}

func (w *Worker) handle(ctx context.Context, msg jetstream.Msg) error {
	var d core.Delivery
	if err := json.Unmarshal(msg.Data(), &d); err != nil {
		w.Logger.Warn("unparsable delivery terminated", "error", err)
		deliveries.WithLabelValues("invalid").Inc()
		return msg.Term()
	}

	err := w.Client.Deliver(ctx, d.InboxURI, d.Payload)
	if err == nil {
		deliveries.WithLabelValues("ok").Inc()
		w.Logger.Info("delivered", "to", d.To, "inbox", d.InboxURI)
		return msg.Ack()
	}

	attempt := w.attempt(msg)
	if attempt >= maxAttempts {
		deliveries.WithLabelValues("dropped").Inc()
		w.Logger.Error("delivery dropped after max attempts",
			"to", d.To, "inbox", d.InboxURI, "attempts", attempt, "error", err)
		return msg.Term()
	}

	deliveries.WithLabelValues("retried").Inc()
	delay := backoff(attempt)
	w.Logger.Warn("delivery failed, will retry",
		"to", d.To, "inbox", d.InboxURI, "attempt", attempt, "delay", delay, "error", err)
	return msg.NakWithDelay(delay)
}

func (w *Worker) attempt(msg jetstream.Msg) uint64 {
	meta, err := msg.Metadata()
	if err != nil {
		return 1
	}
	return meta.NumDelivered
}

// backoff doubles per attempt starting at 30s, capped at an hour.
func backoff(attempt uint64) time.Duration {
	if attempt < 1 || attempt > 8 {
		return time.Hour
	}
	d := 30 * time.Second << (attempt - 1)
	if d > time.Hour {
		return time.Hour
	}
	return d
}
