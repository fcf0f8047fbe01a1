package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/internal/realtime/repository"
	"daycare_realtime_service/pkg"
	errprocess "daycare_realtime_service/pkg/err"
	"daycare_realtime_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationUseCase creates notifications and fans them out to every
// live connection of the recipient set. Role targets are resolved
// through the user directory, the broadcaster never owns role data.
type NotificationUseCase struct {
	notifRepo repository.NotificationRepository
	directory repository.UserDirectory
	registry  *ConnRegistry
	relay     *EventRelay
}

// NewNotificationUseCase init create notification use case
func NewNotificationUseCase(
	notifRepo repository.NotificationRepository,
	directory repository.UserDirectory,
	registry *ConnRegistry,
	relay *EventRelay,
) *NotificationUseCase {
	return &NotificationUseCase{
		notifRepo: notifRepo,
		directory: directory,
		registry:  registry,
		relay:     relay,
	}
}

// NotificationEvent wrap a notification in the push envelope. Pushed
// notifications start unread for every recipient.
func NotificationEvent(n *domain.Notification) domain.WSResponse {
	return domain.WSResponse{
		Action:  string(domain.NotifyUser),
		Success: true,
		Payload: map[string]interface{}{
			"notification": domain.UserNotification{Notification: *n, Read: false},
		},
	}
}

// Create validate, persist, then broadcast. Exactly one of targetUserId
// and targetRole must be set.
func (uc *NotificationUseCase) Create(ctx context.Context, n *domain.Notification) error {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return domain.ErrMissingTitle
	}
	if err := n.ValidateTarget(); err != nil {
		return err
	}

	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()

	if err := uc.notifRepo.Insert(ctx, n); err != nil {
		return errprocess.Set(fmt.Sprintf("insert notification err : %v", err))
	}

	uc.Broadcast(ctx, n)

	return nil
}

// Broadcast push an already-persisted notification to every live
// connection of its recipients, at most once per connection. Recipients
// without live connections catch up on their next fetch.
func (uc *NotificationUseCase) Broadcast(ctx context.Context, n *domain.Notification) {
	recipients, err := uc.resolveRecipients(ctx, n)
	if err != nil {
		// notification is persisted, failing the resolve only degrades
		// live delivery
		logger.Log.Error("notification recipient resolve failed",
			zap.String("notificationID", n.ID),
			zap.Error(err),
		)
		return
	}

	event := NotificationEvent(n)

	for _, userID := range recipients {
		for _, s := range uc.registry.ConnectionsFor(userID) {
			if err := s.Push(event); err != nil {
				logger.Log.Warn("notification push failed",
					zap.String("userID", userID),
					zap.String("connID", s.ID()),
					zap.Error(err),
				)
			}
		}
		if uc.relay != nil {
			uc.relay.Broadcast(userID, "", event)
		}
	}
}

// resolveRecipients the finite id set this notification addresses,
// bounded by users holding the role, not by connection count
func (uc *NotificationUseCase) resolveRecipients(ctx context.Context, n *domain.Notification) ([]string, error) {
	if n.TargetUserID != "" {
		return []string{n.TargetUserID}, nil
	}

	ids, err := uc.directory.FindIDsByRole(ctx, n.TargetRole)
	if err != nil {
		return nil, err
	}

	var recipients []string
	for _, id := range ids {
		if !pkg.Contains(recipients, id) {
			recipients = append(recipients, id)
		}
	}
	return recipients, nil
}

// ForUser notifications visible to the user with per-recipient read state
func (uc *NotificationUseCase) ForUser(ctx context.Context, userID string, role domain.UserRole) ([]domain.UserNotification, error) {
	return uc.notifRepo.FindForUser(ctx, userID, role)
}

// MarkRead receipt one notification for one recipient. Idempotent, and
// one recipient's receipt never changes what the others see.
func (uc *NotificationUseCase) MarkRead(ctx context.Context, notificationID, userID string) error {
	return uc.notifRepo.MarkRead(ctx, notificationID, userID)
}

// MarkAllRead receipt everything currently visible to the user
func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, userID string, role domain.UserRole) (int64, error) {
	return uc.notifRepo.MarkAllRead(ctx, userID, role)
}
