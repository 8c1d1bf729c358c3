package store

import (
	"context"
	"errors"
	"fmt"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsKV implements cart.Store on a JetStream key-value bucket.
type NatsKV struct {
	kv jetstream.KeyValue
}

// NewNatsKV creates the bucket if it does not exist yet.
func NewNatsKV(ctx context.Context, js jetstream.JetStream, bucket string) (*NatsKV, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "storefront carts",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key-value bucket %s: %w", bucket, err)
	}
	return &NatsKV{kv: kv}, nil
}

func (n *NatsKV) Load(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, sferrors.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (n *NatsKV) Save(ctx context.Context, key string, blob []byte) error {
	if _, err := n.kv.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("failed to save cart %s: %w", key, err)
	}
	return nil
}
