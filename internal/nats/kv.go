package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"skein/internal/core"
)

// KV adapts the JetStream bucket to core.KeyValueClient, translating
// jetstream sentinel errors into the core taxonomy.
type KV struct {
	NATS *NATS
}

func (c *KV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := c.NATS.KV.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}

	return entry.Value(), nil
}

func (c *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.NATS.KV.Put(ctx, key, value)
	if err != nil {
		return fmt.Errorf("failed to store key %s: %w", key, err)
	}
	return nil
}

func (c *KV) Delete(ctx context.Context, key string) error {
	err := c.NATS.KV.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return err
	}
	return nil
}

func (c *KV) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.NATS.KV.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}
