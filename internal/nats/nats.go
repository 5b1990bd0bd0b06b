package nats

import (
	"context"
	"log/slog"
	"time"

	libnats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/zhulik/pips"

	"skein/internal/config"
)

const (
	appName = "skein"

	// StreamName carries both inbound activity deliveries and the
	// outbound delivery queue.
	StreamName = appName

	SubjectInboxPrefix = appName + ".inbox."
	SubjectDelivery    = appName + ".delivery"

	ConsumerIngest  = "ingest-worker"
	ConsumerDeliver = "deliverer"
)

type NATS struct {
	Logger *slog.Logger
	Config *config.Config

	JS jetstream.JetStream
	KV jetstream.KeyValue
}

func (n *NATS) Init(ctx context.Context) error {
	nc, err := libnats.Connect(n.Config.NATSURL)
	if err != nil {
		return err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}

	n.JS = js

	if n.Config.NATSInit {
		if err := n.initNATS(ctx); err != nil {
			return err
		}
	}

	kv, err := js.KeyValue(ctx, appName)
	if err != nil {
		return err
	}
	n.KV = kv

	return nil
}

func (n *NATS) HealthCheck(context.Context) error {
	_, err := n.JS.Conn().RTT()
	return err
}

func (n *NATS) Shutdown(context.Context) error {
	return n.JS.Conn().Drain()
}

// Publish sends a payload with a deduplicating message id.
func (n *NATS) Publish(ctx context.Context, subject, msgID string, payload []byte) error {
	msg := &libnats.Msg{
		Subject: subject,
		Data:    payload,
		Header: libnats.Header{
			libnats.MsgIdHdr: []string{msgID},
		},
	}
	_, err := n.JS.PublishMsg(ctx, msg)
	return err
}

// ConsumeToPipeline feeds a durable consumer into a pips pipeline and
// blocks until the context is canceled.
func (n *NATS) ConsumeToPipeline(ctx context.Context, stream, consumer string, pipeline *pips.Pipeline[jetstream.Msg, any]) error {
	cons, err := n.JS.Consumer(ctx, stream, consumer)
	if err != nil {
		return err
	}

	return consumeToPipeline(ctx, cons, pipeline)
}

type msgConsumer interface {
	Consume(handler jetstream.MessageHandler, opts ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error)
}

// consumeToPipeline bridges consumer callbacks into a channel the
// pipeline drains. The channel is never closed; both the callback and
// the pipeline stages unblock on ctx cancellation, so in-flight
// callbacks cannot race a close during shutdown.
func consumeToPipeline(ctx context.Context, cons msgConsumer, pipeline *pips.Pipeline[jetstream.Msg, any]) error {
	ch := make(chan pips.D[jetstream.Msg])

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		select {
		case ch <- pips.NewD(msg):
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer cc.Stop()

	return pipeline.Run(ctx, ch).Wait(ctx)
}

func (n *NATS) initNATS(ctx context.Context) error {
	n.Logger.Info("Initializing NATS")

	_, err := n.JS.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectInboxPrefix + ">", SubjectDelivery},
		MaxAge:     24 * time.Hour,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return err
	}
	n.Logger.Info("Stream created or updated", "name", StreamName)

	for consumer, filter := range map[string]string{
		ConsumerIngest:  SubjectInboxPrefix + ">",
		ConsumerDeliver: SubjectDelivery,
	} {
		_, err = n.JS.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
			Durable:       consumer,
			FilterSubject: filter,
			AckPolicy:     jetstream.AckExplicitPolicy,
			MaxDeliver:    10,
		})
		if err != nil {
			return err
		}
		n.Logger.Info("Consumer created or updated", "name", consumer)
	}

	_, err = n.JS.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: appName,
	})
	if err != nil {
		return err
	}
	n.Logger.Info("KeyValue created or updated", "name", appName)

	return nil
}
