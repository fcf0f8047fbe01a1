package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Envelope one fan-out event travelling between service nodes. The
// origin node tags it so it can skip its own broadcast coming back.
type Envelope struct {
	NodeID     string            `json:"nodeId"`
	UserID     string            `json:"userId"`
	SkipConnID string            `json:"skipConnId,omitempty"`
	Event      domain.WSResponse `json:"event"`
}

// PubSub cross-node event channel
type PubSub interface {
	Publish(channel string, env Envelope) error
	Subscribe(ctx context.Context, channel string, handler func(env Envelope)) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
		ctx:    context.Background(),
	}
}

// Publish serialize the envelope and publish it on the channel
func (r *RedisPubSub) Publish(channel string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, channel, data).Err()
}

// Subscribe consume envelopes from the channel until ctx is cancelled
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(env Envelope)) error {
	sub := r.client.Subscribe(r.ctx, channel)
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					logger.Log.Error("relay envelope unmarshal err :", zap.String("err", fmt.Sprintf("%v", err)))
					continue
				}
				handler(env)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
