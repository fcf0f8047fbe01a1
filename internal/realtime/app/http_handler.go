package app

import (
	"errors"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/pkg/logger"
	"daycare_realtime_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// RealtimeHTTPHandler request/response side of the contract. The push
// events and these endpoints return the same JSON shapes, which is what
// lets clients reconcile history and live pushes by id.
type RealtimeHTTPHandler struct {
	messageUC *SendMessageUseCase
	notifUC   *NotificationUseCase
}

// NewRealtimeHTTPHandler create RealtimeHTTPHandler
func NewRealtimeHTTPHandler(messageUC *SendMessageUseCase, notifUC *NotificationUseCase) *RealtimeHTTPHandler {
	return &RealtimeHTTPHandler{
		messageUC: messageUC,
		notifUC:   notifUC,
	}
}

// identity pulled from the JWT middleware
func callerIdentity(c *fiber.Ctx) (string, domain.UserRole) {
	userID, _ := c.Locals(middlewares.TokenUserID).(string)
	role, _ := c.Locals(middlewares.TokenRole).(string)
	return userID, domain.UserRole(role)
}

// GetConversation GET /messages/conversation/:peerID
func (h *RealtimeHTTPHandler) GetConversation(c *fiber.Ctx) error {
	userID, _ := callerIdentity(c)
	peerID := c.Params("peerID")

	msgs, err := h.messageUC.Conversation(c.Context(), userID, peerID)
	if err != nil {
		logger.Log.Errorf("conversation fetch error:", err, zap.String("userID", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not load conversation",
		})
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.JSON(fiber.Map{"success": true, "data": msgs})
}

// GetUnreadCounts GET /messages/unread
func (h *RealtimeHTTPHandler) GetUnreadCounts(c *fiber.Ctx) error {
	userID, _ := callerIdentity(c)

	counts, err := h.messageUC.CountUnread(c.Context(), userID)
	if err != nil {
		logger.Log.Errorf("unread count error:", err, zap.String("userID", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not load unread counts",
		})
	}
	if counts == nil {
		counts = []domain.PeerUnreadInfo{}
	}
	return c.JSON(fiber.Map{"success": true, "data": counts})
}

// MarkMessageRead PATCH /messages/:id/read
func (h *RealtimeHTTPHandler) MarkMessageRead(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.messageUC.MarkRead(c.Context(), id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false, "error": "message not found",
			})
		}
		logger.Log.Errorf("mark read error:", err, zap.String("messageID", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not mark message read",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// MarkAllMessagesRead PATCH /messages/read-all
func (h *RealtimeHTTPHandler) MarkAllMessagesRead(c *fiber.Ctx) error {
	userID, _ := callerIdentity(c)

	count, err := h.messageUC.MarkAllRead(c.Context(), userID)
	if err != nil {
		logger.Log.Errorf("mark all read error:", err, zap.String("userID", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not mark messages read",
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"count": count}})
}

// GetMyNotifications GET /notifications/me
func (h *RealtimeHTTPHandler) GetMyNotifications(c *fiber.Ctx) error {
	userID, role := callerIdentity(c)

	notifications, err := h.notifUC.ForUser(c.Context(), userID, role)
	if err != nil {
		logger.Log.Errorf("notification fetch error:", err, zap.String("userID", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not load notifications",
		})
	}
	if notifications == nil {
		notifications = []domain.UserNotification{}
	}
	return c.JSON(fiber.Map{"success": true, "data": notifications})
}

// CreateNotification POST /notifications , admin only
func (h *RealtimeHTTPHandler) CreateNotification(c *fiber.Ctx) error {
	userID, role := callerIdentity(c)
	if role != domain.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false, "error": "only admins can create notifications",
		})
	}

	var n domain.Notification
	if err := c.BodyParser(&n); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false, "error": "malformed notification",
		})
	}
	n.CreatedBy = userID

	if err := h.notifUC.Create(c.Context(), &n); err != nil {
		if errors.Is(err, domain.ErrInvalidTarget) || errors.Is(err, domain.ErrMissingTitle) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false, "error": err.Error(),
			})
		}
		logger.Log.Errorf("notification create error:", err, zap.String("createdBy", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not create notification",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": n})
}

// MarkNotificationRead PATCH /notifications/:id/read
func (h *RealtimeHTTPHandler) MarkNotificationRead(c *fiber.Ctx) error {
	userID, _ := callerIdentity(c)
	id := c.Params("id")

	if err := h.notifUC.MarkRead(c.Context(), id, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false, "error": "notification not found",
			})
		}
		logger.Log.Errorf("notification mark read error:", err, zap.String("notificationID", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not mark notification read",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// MarkAllNotificationsRead PATCH /notifications/read-all
func (h *RealtimeHTTPHandler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID, role := callerIdentity(c)

	count, err := h.notifUC.MarkAllRead(c.Context(), userID, role)
	if err != nil {
		logger.Log.Errorf("notification mark all error:", err, zap.String("userID", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false, "error": "could not mark notifications read",
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"count": count}})
}
