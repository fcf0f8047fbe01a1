package app

import (
	"context"
	"encoding/json"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AdmissionEvent notification request produced by the admission service
// when a request is approved or rejected, or by the admin backend for
// role-wide announcements
type AdmissionEvent struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	TargetUserID string `json:"targetUserId,omitempty"`
	TargetRole   string `json:"targetRole,omitempty"`
	CreatedBy    string `json:"createdBy"`
}

// EventConsumer drains the notification topic and turns each event into
// a persisted, broadcast notification
type EventConsumer struct {
	reader  *kafka.Reader
	notifUC *NotificationUseCase
}

// NewEventConsumer create an EventConsumer
func NewEventConsumer(reader *kafka.Reader, notifUC *NotificationUseCase) *EventConsumer {
	return &EventConsumer{
		reader:  reader,
		notifUC: notifUC,
	}
}

// Run consume until ctx is cancelled. Malformed or invalid events are
// logged and skipped, the topic keeps moving.
func (c *EventConsumer) Run(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("notification consumer stopped")
				return
			}
			logger.Log.Errorf("kafka read error:", err)
			continue
		}

		var event AdmissionEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			logger.Log.Error("notification event unmarshal failed",
				zap.ByteString("value", m.Value),
				zap.Error(err),
			)
			continue
		}

		n := &domain.Notification{
			Title:        event.Title,
			Content:      event.Content,
			TargetUserID: event.TargetUserID,
			TargetRole:   domain.UserRole(event.TargetRole),
			CreatedBy:    event.CreatedBy,
		}
		if err := c.notifUC.Create(ctx, n); err != nil {
			logger.Log.Error("notification event rejected",
				zap.String("title", event.Title),
				zap.Error(err),
			)
		}
	}
}

// Close release the kafka reader
func (c *EventConsumer) Close() error {
	return c.reader.Close()
}
