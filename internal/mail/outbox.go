package mail

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Outbox appends messages to a Redis stream drained by the mail worker.
type Outbox struct {
	client *redis.Client
	stream string
}

func NewOutbox(client *redis.Client, stream string) *Outbox {
	return &Outbox{client: client, stream: stream}
}

func (o *Outbox) Enqueue(ctx context.Context, msg Message) error {
	err := o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		MaxLen: 10000,
		Approx: true,
		Values: msg.Values(),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}
