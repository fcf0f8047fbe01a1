package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"daycare_realtime_service/internal/realtime/app"
	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/internal/realtime/repository"
	"daycare_realtime_service/pkg/database"
	"daycare_realtime_service/pkg/logger"
	testtool "daycare_realtime_service/pkg/test_tool"
	"daycare_realtime_service/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const baseURL = "http://127.0.0.1:8082"
const wsBaseURL = "ws://127.0.0.1:8082/ws"

var realtimeApp *fiber.App
var msgRepo repository.MessageRepository

// stubDirectory fixed role assignments, stands in for the account
// service's user table
type stubDirectory struct {
	byRole map[domain.UserRole][]string
}

func (s *stubDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return nil, repository.ErrUserNotFound
}

func (s *stubDirectory) FindIDsByRole(ctx context.Context, role domain.UserRole) ([]string, error) {
	return s.byRole[role], nil
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	logger.SetNewNop()

	mongoContainer, mongoHost, mongoPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:latest",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	if err != nil {
		log.Fatalf("failed to start MongoDB container: %v", err)
	}

	redisContainer, redisHost, redisPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:latest",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		log.Fatalf("failed to start Redis container: %v", err)
	}

	mongo, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort),
		RetryCount:    5,
		RetryInterval: 5,
	}, "test_realtime_db")
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort),
		DB:   0,
	})

	msgRepo = repository.NewMongoMessageRepository(mongo.Database)
	notifRepo := repository.NewMongoNotificationRepository(mongo.Database)
	pubsub := repository.NewRedisPubSub(redisClient)
	directory := &stubDirectory{byRole: map[domain.UserRole][]string{
		domain.RoleEducator: {"educator-1", "educator-2"},
	}}

	registry := app.NewConnRegistry()
	relay := app.NewEventRelay(pubsub, registry)
	if err := relay.Start(ctx); err != nil {
		log.Fatalf("failed to start event relay: %v", err)
	}

	messageUC := app.NewSendMessageUseCase(msgRepo, registry, relay)
	notifUC := app.NewNotificationUseCase(notifRepo, directory, registry, relay)

	wsHandler := app.NewRealtimeWebsocketHandler(messageUC, registry, 5*time.Second)
	httpHandler := app.NewRealtimeHTTPHandler(messageUC, notifUC)

	realtimeApp = fiber.New()
	RegisterRoutes(realtimeApp, wsHandler, httpHandler)

	go func() {
		if err := realtimeApp.Listen(":8082"); err != nil {
			log.Fatalf("failed to start realtime server: %v", err)
		}
	}()
	time.Sleep(3 * time.Second)

	code := m.Run()

	_ = realtimeApp.Shutdown()
	_ = mongo.Close(ctx)
	_ = mongoContainer.Terminate(ctx)
	_ = redisContainer.Terminate(ctx)

	os.Exit(code)
}

func dialAs(t *testing.T, userID, role string) *gws.Conn {
	t.Helper()

	signed, err := token.GenerateJWT(userID, role, "realtime_service")
	assert.NoError(t, err)

	conn, _, err := gws.DefaultDialer.Dial(wsBaseURL+"?auth="+signed, nil)
	assert.NoError(t, err, "websocket dial failed for %s", userID)
	return conn
}

func registerConn(t *testing.T, conn *gws.Conn, userID string) {
	t.Helper()

	req := fmt.Sprintf(`{"action":"register","userId":"%s"}`, userID)
	assert.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(req)))

	resp := readResponse(t, conn)
	assert.Equal(t, string(domain.Register), resp.Action)
	assert.True(t, resp.Success, "register failed: %s", resp.Error)
}

func readResponse(t *testing.T, conn *gws.Conn) domain.WSResponse {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	assert.NoError(t, err)

	var resp domain.WSResponse
	assert.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func doRequest(t *testing.T, method, path, userID, role string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	signed, err := token.GenerateJWT(userID, role, "realtime_service")
	assert.NoError(t, err)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path+"?auth="+signed, reader)
	assert.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	_, _, err := gws.DefaultDialer.Dial(wsBaseURL, nil)
	assert.Error(t, err, "unauthenticated websocket must not upgrade")
}

func TestSendMessageDeliveredLiveAndPersisted(t *testing.T) {
	parent := dialAs(t, "parent-int-1", "parent")
	defer parent.Close()
	educator := dialAs(t, "educator-int-1", "educator")
	defer educator.Close()

	registerConn(t, parent, "parent-int-1")
	registerConn(t, educator, "educator-int-1")

	send := `{"action":"sendMessage","senderId":"parent-int-1","receiverId":"educator-int-1","content":"Mia napped two hours"}`
	assert.NoError(t, parent.WriteMessage(gws.TextMessage, []byte(send)))

	// sender gets the ack
	ack := readResponse(t, parent)
	assert.Equal(t, string(domain.SendMessage), ack.Action)
	assert.True(t, ack.Success, "send failed: %s", ack.Error)

	// receiver gets the live push
	push := readResponse(t, educator)
	assert.Equal(t, string(domain.NewMessage), push.Action)
	pushed, ok := push.Payload["message"].(map[string]interface{})
	assert.True(t, ok, "push payload missing message")
	assert.Equal(t, "Mia napped two hours", pushed["content"])

	// and the history endpoint agrees
	status, body := doRequest(t, http.MethodGet, "/messages/conversation/educator-int-1", "parent-int-1", "parent", nil)
	assert.Equal(t, http.StatusOK, status)
	msgs, ok := body["data"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestSendMessageSenderMismatchRejected(t *testing.T) {
	parent := dialAs(t, "parent-int-2", "parent")
	defer parent.Close()
	registerConn(t, parent, "parent-int-2")

	send := `{"action":"sendMessage","senderId":"someone-else","receiverId":"educator-int-1","content":"spoofed"}`
	assert.NoError(t, parent.WriteMessage(gws.TextMessage, []byte(send)))

	resp := readResponse(t, parent)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, false, resp.Payload["retryable"])
}

func TestSendBeforeRegisterRejected(t *testing.T) {
	parent := dialAs(t, "parent-int-3", "parent")
	defer parent.Close()

	send := `{"action":"sendMessage","receiverId":"educator-int-1","content":"too soon"}`
	assert.NoError(t, parent.WriteMessage(gws.TextMessage, []byte(send)))

	resp := readResponse(t, parent)
	assert.False(t, resp.Success)
	assert.Equal(t, "connection is not registered", resp.Error)
}

func TestMarkMessageReadIdempotent(t *testing.T) {
	msg := &domain.Message{
		ID:         "msg-read-test",
		SenderID:   "parent-int-4",
		ReceiverID: "educator-int-4",
		Content:    "read me",
		CreatedAt:  time.Now().UTC(),
	}
	assert.NoError(t, msgRepo.Insert(context.Background(), msg))

	status, _ := doRequest(t, http.MethodPatch, "/messages/msg-read-test/read", "educator-int-4", "educator", nil)
	assert.Equal(t, http.StatusOK, status)

	// second mark is a no-op, not an error
	status, _ = doRequest(t, http.MethodPatch, "/messages/msg-read-test/read", "educator-int-4", "educator", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, http.MethodPatch, "/messages/no-such-message/read", "educator-int-4", "educator", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNotificationLifecycle(t *testing.T) {
	parent := dialAs(t, "parent-int-5", "parent")
	defer parent.Close()
	registerConn(t, parent, "parent-int-5")

	status, body := doRequest(t, http.MethodPost, "/notifications", "admin-int-1", "admin", map[string]interface{}{
		"title":        "Invoice ready",
		"content":      "March invoice is available",
		"targetUserId": "parent-int-5",
	})
	assert.Equal(t, http.StatusCreated, status)
	created, ok := body["data"].(map[string]interface{})
	assert.True(t, ok)
	notifID, _ := created["id"].(string)
	assert.NotEmpty(t, notifID)

	// live push reaches the connected target
	push := readResponse(t, parent)
	assert.Equal(t, string(domain.NotifyUser), push.Action)

	// unread on first fetch
	status, body = doRequest(t, http.MethodGet, "/notifications/me", "parent-int-5", "parent", nil)
	assert.Equal(t, http.StatusOK, status)
	list, _ := body["data"].([]interface{})
	assert.Len(t, list, 1)
	first, _ := list[0].(map[string]interface{})
	assert.Equal(t, false, first["read"])

	// read receipt is per recipient and idempotent
	status, _ = doRequest(t, http.MethodPatch, "/notifications/"+notifID+"/read", "parent-int-5", "parent", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = doRequest(t, http.MethodPatch, "/notifications/"+notifID+"/read", "parent-int-5", "parent", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = doRequest(t, http.MethodGet, "/notifications/me", "parent-int-5", "parent", nil)
	assert.Equal(t, http.StatusOK, status)
	list, _ = body["data"].([]interface{})
	assert.Len(t, list, 1)
	first, _ = list[0].(map[string]interface{})
	assert.Equal(t, true, first["read"])
}

func TestCreateNotificationRequiresAdmin(t *testing.T) {
	status, _ := doRequest(t, http.MethodPost, "/notifications", "parent-int-6", "parent", map[string]interface{}{
		"title":        "not allowed",
		"targetUserId": "parent-int-5",
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCreateNotificationRejectsBadTarget(t *testing.T) {
	status, _ := doRequest(t, http.MethodPost, "/notifications", "admin-int-1", "admin", map[string]interface{}{
		"title": "no target",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doRequest(t, http.MethodPost, "/notifications", "admin-int-1", "admin", map[string]interface{}{
		"title":        "both targets",
		"targetUserId": "parent-int-5",
		"targetRole":   "parent",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}
