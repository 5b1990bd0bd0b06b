package ingesting

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zhulik/pips"
	"github.com/zhulik/pips/apply"

	"skein/internal/core"
	"skein/internal/nats"
	"skein/pkg/apub"
)

// Worker consumes verified inbound activities off the ingest consumer
// and drives the processor. Ack policy encodes the error taxonomy:
// rejections terminate the delivery, transient failures trigger
// redelivery.
type Worker struct {
	Logger    *slog.Logger
	NATS      *nats.NATS
	Processor *Processor
}

func (w *Worker) Init(_ context.Context) error {
	w.Logger = w.Logger.With("component", "ingesting.Worker")
	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("ingest worker running")

	return w.NATS.ConsumeToPipeline(ctx, nats.StreamName, nats.ConsumerIngest,
		pips.New[jetstream.Msg, any]().
			Then(apply.Each(w.handle)),
	)
}

func (w *Worker) handle(ctx context.Context, msg jetstream.Msg) error {
	inboxID := strings.TrimPrefix(msg.Subject(), nats.SubjectInboxPrefix)

	var act apub.Activity
	if err := json.Unmarshal(msg.Data(), &act); err != nil {
		w.Logger.Warn("unparsable activity terminated", "inbox", inboxID, "error", err)
		return msg.Term()
	}

	err := w.Processor.Process(ctx, inboxID, &act)
	switch {
	case err == nil:
		return msg.Ack()
	case core.IsRejection(err):
		w.Logger.Warn("activity rejected", "inbox", inboxID, "type", act.Type, "error", err)
		return msg.Term()
	default:
		w.Logger.Error("activity processing failed, will retry", "inbox", inboxID, "type", act.Type, "error", err)
		return msg.Nak()
	}
}
