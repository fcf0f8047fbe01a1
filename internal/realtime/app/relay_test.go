package app

import (
	"context"
	"testing"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/internal/realtime/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// capturingPubSub keeps the subscribe handler so tests can inject
// envelopes as if redis delivered them
type capturingPubSub struct {
	MockPubSub
	handler func(env repository.Envelope)
}

func (c *capturingPubSub) Subscribe(ctx context.Context, channel string, handler func(env repository.Envelope)) error {
	c.handler = handler
	args := c.Called(channel, handler)
	return args.Error(0)
}

func TestEventRelay_DeliversForeignEnvelopes(t *testing.T) {
	pubsub := new(capturingPubSub)
	registry := NewConnRegistry()
	relay := NewEventRelay(pubsub, registry)

	phone := newFakeSender("parent-conn-1")
	tablet := newFakeSender("parent-conn-2")
	registry.Bind(phone, "parent-1")
	registry.Bind(tablet, "parent-1")

	pubsub.On("Subscribe", relayChannel, mock.Anything).Return(nil)
	assert.NoError(t, relay.Start(context.Background()))

	event := domain.WSResponse{Action: string(domain.NewMessage), Success: true}
	pubsub.handler(repository.Envelope{
		NodeID:     "some-other-node",
		UserID:     "parent-1",
		SkipConnID: "parent-conn-1",
		Event:      event,
	})

	// skip id honored even across nodes
	assert.Empty(t, phone.events())
	assert.Len(t, tablet.events(), 1)
}

func TestEventRelay_IgnoresOwnEnvelopes(t *testing.T) {
	pubsub := new(capturingPubSub)
	registry := NewConnRegistry()
	relay := NewEventRelay(pubsub, registry)

	phone := newFakeSender("parent-conn-1")
	registry.Bind(phone, "parent-1")

	pubsub.On("Subscribe", relayChannel, mock.Anything).Return(nil)
	pubsub.On("Publish", relayChannel, mock.AnythingOfType("repository.Envelope")).Return(nil)
	assert.NoError(t, relay.Start(context.Background()))

	event := domain.WSResponse{Action: string(domain.NewMessage), Success: true}
	relay.Broadcast("parent-1", "", event)

	// loop the published envelope back, local fan-out already ran so the
	// relay must not deliver it again
	env := pubsub.Calls[len(pubsub.Calls)-1].Arguments.Get(1).(repository.Envelope)
	pubsub.handler(env)

	assert.Empty(t, phone.events())
}
