package router

import (
	"context"

	"daycare_realtime_service/internal/realtime/app"
	"daycare_realtime_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register websocket and message/notification routes
func RegisterRoutes(r *fiber.App, wsHandler *app.RealtimeWebsocketHandler, httpHandler *app.RealtimeHTTPHandler) {
	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleConnection(context.Background(), c)
	}))

	messages := r.Group("/messages")
	messages.Get("/conversation/:peerID", httpHandler.GetConversation)
	messages.Get("/unread", httpHandler.GetUnreadCounts)
	messages.Patch("/read-all", httpHandler.MarkAllMessagesRead)
	messages.Patch("/:id/read", httpHandler.MarkMessageRead)

	notifications := r.Group("/notifications")
	notifications.Get("/me", httpHandler.GetMyNotifications)
	notifications.Post("/", httpHandler.CreateNotification)
	notifications.Patch("/read-all", httpHandler.MarkAllNotificationsRead)
	notifications.Patch("/:id/read", httpHandler.MarkNotificationRead)
}
