package app

import (
	"context"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/internal/realtime/repository"
	"daycare_realtime_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// relayChannel single redis channel shared by every service node
const relayChannel = "realtime:events"

// EventRelay mirrors local fan-out to sibling nodes over redis pub/sub.
// A user's devices can be connected to different nodes behind the load
// balancer, the relay is what keeps multi-device delivery complete.
type EventRelay struct {
	nodeID   string
	pubsub   repository.PubSub
	registry *ConnRegistry
}

// NewEventRelay create an EventRelay
func NewEventRelay(pubsub repository.PubSub, registry *ConnRegistry) *EventRelay {
	return &EventRelay{
		nodeID:   uuid.New().String(),
		pubsub:   pubsub,
		registry: registry,
	}
}

// Start subscribe to the relay channel. One subscriber goroutine per
// process, not per connection.
func (r *EventRelay) Start(ctx context.Context) error {
	return r.pubsub.Subscribe(ctx, relayChannel, func(env repository.Envelope) {
		if env.NodeID == r.nodeID {
			// own broadcast coming back, local delivery already happened
			return
		}
		for _, s := range r.registry.ConnectionsFor(env.UserID) {
			if s.ID() == env.SkipConnID {
				continue
			}
			if err := s.Push(env.Event); err != nil {
				logger.Log.Warn("relay push failed",
					zap.String("userID", env.UserID),
					zap.String("connID", s.ID()),
					zap.Error(err),
				)
			}
		}
	})
}

// Broadcast hand the event to the other nodes. Publish failures are a
// delivery concern, logged and swallowed, the local fan-out already ran.
func (r *EventRelay) Broadcast(userID, skipConnID string, event domain.WSResponse) {
	env := repository.Envelope{
		NodeID:     r.nodeID,
		UserID:     userID,
		SkipConnID: skipConnID,
		Event:      event,
	}
	if err := r.pubsub.Publish(relayChannel, env); err != nil {
		logger.Log.Warn("relay publish failed",
			zap.String("userID", userID),
			zap.Error(err),
		)
	}
}
