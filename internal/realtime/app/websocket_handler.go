package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/pkg/logger"
	"daycare_realtime_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RealtimeWebsocketHandler websocket entry point: binds connections to
// identities and dispatches the live events
type RealtimeWebsocketHandler struct {
	messageUC     *SendMessageUseCase
	registry      *ConnRegistry
	registerGrace time.Duration
}

// NewRealtimeWebsocketHandler create RealtimeWebsocketHandler
func NewRealtimeWebsocketHandler(
	messageUC *SendMessageUseCase,
	registry *ConnRegistry,
	registerGrace time.Duration,
) *RealtimeWebsocketHandler {
	if registerGrace <= 0 {
		registerGrace = 5 * time.Second
	}
	return &RealtimeWebsocketHandler{
		messageUC:     messageUC,
		registry:      registry,
		registerGrace: registerGrace,
	}
}

// HandleConnection lifecycle of one websocket connection. The JWT
// middleware already placed the authenticated user id into Locals, that
// identity is the only one trusted for binding and sending.
func (h *RealtimeWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	tokenUser := conn.Locals(middlewares.TokenUserID)
	userID, ok := tokenUser.(string)
	if !ok || userID == "" {
		logger.Log.Warn("websocket without identity, closing")
		conn.Close()
		return
	}
	logger.Log.Info("websocket connected", zap.String("userID", userID))

	wsc := newWSConn(conn)
	var bound atomic.Bool

	ticker := time.NewTicker(10 * time.Minute)
	ctxClose, cancel := context.WithCancel(context.Background())

	// the single close path. Transport disconnects of any kind land
	// here exactly once, so Unbind fires exactly once.
	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close", zap.String("userID", userID), zap.String("connID", wsc.ID()))
		h.registry.Unbind(wsc.ID())
		wsc.Stop()
		conn.Close()
		cancel()
	}()

	// clients must announce themselves within the grace period, an
	// anonymous connection can receive nothing addressed by user id
	graceTimer := time.AfterFunc(h.registerGrace, func() {
		if !bound.Load() {
			logger.Log.Warn("connection never registered, closing",
				zap.String("userID", userID),
				zap.String("connID", wsc.ID()),
			)
			conn.Close()
		}
	})
	defer graceTimer.Stop()

	// fiber auto-answers close/ping/pong, the handlers tap them out
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})
	conn.SetPongHandler(func(appData string) error {
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// keepalive ping
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("connID", wsc.ID()))
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(wsc, "", "unknown message type")
			continue
		}
		h.textMessageAction(ctx, wsc, userID, &bound, message)
	}
}

func (h *RealtimeWebsocketHandler) textMessageAction(ctx context.Context, wsc *wsConn, userID string, bound *atomic.Bool, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Log.Errorf("json unmarshal error:", err)
		h.sendError(wsc, "", "malformed request")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {

	// joinRoom is the legacy registration event older clients still
	// send, same semantics as register
	case string(domain.Register), string(domain.JoinRoom):
		if req.UserID != "" && req.UserID != userID {
			resp.Error = "user id does not match connection identity"
			logger.Log.Warn("register id mismatch",
				zap.String("claimed", req.UserID),
				zap.String("bound", userID),
			)
			break
		}
		h.registry.Bind(wsc, userID)
		bound.Store(true)
		resp.Success = true
		resp.Payload["userId"] = userID

	case string(domain.SendMessage):
		if !bound.Load() {
			resp.Error = "connection is not registered"
			break
		}
		m, err := h.messageUC.Execute(ctx, wsc.ID(), userID, req)
		if err != nil {
			resp.Error = err.Error()
			if h.isRejection(err) {
				resp.Payload["retryable"] = false
			} else {
				// persistence failure, sender may retry the same content
				resp.Payload["retryable"] = true
			}
		} else {
			resp.Success = true
			resp.Payload["message"] = m
		}

	default:
		resp.Error = "unknown action"
	}

	if resp.Error != "" {
		logger.Log.Error("websocket err ",
			zap.String("UserID", userID),
			zap.String("Action", req.Action),
			zap.String("err", resp.Error),
		)
	}
	h.sendResponse(wsc, resp)
}

// isRejection validation and authorization failures, as opposed to a
// store outage the sender can retry against
func (h *RealtimeWebsocketHandler) isRejection(err error) bool {
	return errors.Is(err, domain.ErrEmptyContent) ||
		errors.Is(err, domain.ErrMissingReceiver) ||
		errors.Is(err, domain.ErrSenderMismatch)
}

// sendResponse deliver through the connection's writer queue
func (h *RealtimeWebsocketHandler) sendResponse(wsc *wsConn, resp domain.WSResponse) {
	if err := wsc.Push(resp); err != nil {
		logger.Log.Errorf("send response error:", err, zap.String("connID", wsc.ID()))
	}
}

func (h *RealtimeWebsocketHandler) sendError(wsc *wsConn, action, errorMsg string) {
	h.sendResponse(wsc, domain.WSResponse{
		Action:  action,
		Success: false,
		Error:   errorMsg,
	})
}
