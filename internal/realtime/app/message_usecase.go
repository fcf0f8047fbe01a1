package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/internal/realtime/repository"
	errprocess "daycare_realtime_service/pkg/err"
	"daycare_realtime_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendMessageUseCase end-to-end handling of a send-message intent:
// validate, persist, then fan out to every live connection that should
// see the message.
type SendMessageUseCase struct {
	msgRepo  repository.MessageRepository
	registry *ConnRegistry
	relay    *EventRelay
}

// NewSendMessageUseCase init create message use case
func NewSendMessageUseCase(
	msgRepo repository.MessageRepository,
	registry *ConnRegistry,
	relay *EventRelay,
) *SendMessageUseCase {
	return &SendMessageUseCase{
		msgRepo:  msgRepo,
		registry: registry,
		relay:    relay,
	}
}

// NewMessageEvent wrap a persisted message in the push envelope. Same
// message shape as the history endpoints, clients dedupe by id.
func NewMessageEvent(msg *domain.Message) domain.WSResponse {
	return domain.WSResponse{
		Action:  string(domain.NewMessage),
		Success: true,
		Payload: map[string]interface{}{
			"message": msg,
		},
	}
}

// Execute send a message. boundUserID is the identity the originating
// connection registered with, the client-supplied senderId is only
// accepted when it matches.
//
// The message is persisted before any push happens. A crash after the
// insert loses only the pushes, the recipient catches up from history.
// A persistence failure means zero pushes and the error goes back to
// the sender for a manual retry.
func (uc *SendMessageUseCase) Execute(ctx context.Context, originConnID, boundUserID string, req domain.WSRequest) (*domain.Message, error) {
	if req.SenderID != "" && req.SenderID != boundUserID {
		logger.Log.Warn("sender id mismatch",
			zap.String("claimed", req.SenderID),
			zap.String("bound", boundUserID),
		)
		return nil, domain.ErrSenderMismatch
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if req.ReceiverID == "" {
		return nil, domain.ErrMissingReceiver
	}

	msg := &domain.Message{
		ID:         uuid.New().String(),
		SenderID:   boundUserID,
		ReceiverID: req.ReceiverID,
		Content:    content,
		Read:       false,
		CreatedAt:  time.Now().UTC(),
	}

	if err := uc.msgRepo.Insert(ctx, msg); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("insert message err : %v", err))
	}

	uc.fanOut(msg, originConnID)

	return msg, nil
}

// fanOut push the persisted message to the receiver's connections and to
// the sender's other devices. The originating connection is skipped, its
// client already appended the message optimistically. An offline
// receiver is not an error, the message waits in history.
func (uc *SendMessageUseCase) fanOut(msg *domain.Message, originConnID string) {
	event := NewMessageEvent(msg)

	for _, s := range uc.registry.ConnectionsFor(msg.ReceiverID) {
		uc.push(s, msg.ReceiverID, event)
	}

	for _, s := range uc.registry.ConnectionsFor(msg.SenderID) {
		if s.ID() == originConnID {
			continue
		}
		uc.push(s, msg.SenderID, event)
	}

	if uc.relay != nil {
		uc.relay.Broadcast(msg.ReceiverID, "", event)
		uc.relay.Broadcast(msg.SenderID, originConnID, event)
	}
}

// push delivery failures never reach the sender, the send itself
// already succeeded
func (uc *SendMessageUseCase) push(s Sender, userID string, event domain.WSResponse) {
	if err := s.Push(event); err != nil {
		logger.Log.Warn("message push failed",
			zap.String("userID", userID),
			zap.String("connID", s.ID()),
			zap.Error(err),
		)
	}
}

// Conversation full history with one peer, createdAt ascending
func (uc *SendMessageUseCase) Conversation(ctx context.Context, userID, peerID string) ([]domain.Message, error) {
	return uc.msgRepo.FindConversation(ctx, userID, peerID)
}

// MarkRead mark one message read. Idempotent.
func (uc *SendMessageUseCase) MarkRead(ctx context.Context, messageID string) error {
	return uc.msgRepo.MarkRead(ctx, messageID)
}

// MarkAllRead mark every unread message addressed to the user
func (uc *SendMessageUseCase) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return uc.msgRepo.MarkAllRead(ctx, userID)
}

// CountUnread unread counts per conversation peer
func (uc *SendMessageUseCase) CountUnread(ctx context.Context, userID string) ([]domain.PeerUnreadInfo, error) {
	return uc.msgRepo.CountUnreadByPeer(ctx, userID)
}
