package app

import (
	"context"
	"sync"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/internal/realtime/repository"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert mock insert message
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindConversation mock find conversation between two users
func (m *MockMessageRepository) FindConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkRead mock mark message read
func (m *MockMessageRepository) MarkRead(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// MarkAllRead mock mark all messages read
func (m *MockMessageRepository) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	args := m.Called(ctx, receiverID)
	return args.Get(0).(int64), args.Error(1)
}

// CountUnreadByPeer mock unread counts by peer
func (m *MockMessageRepository) CountUnreadByPeer(ctx context.Context, userID string) ([]domain.PeerUnreadInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PeerUnreadInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotificationRepository Mock NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

// Insert mock insert notification
func (m *MockNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// FindForUser mock find notifications visible to user
func (m *MockNotificationRepository) FindForUser(ctx context.Context, userID string, role domain.UserRole) ([]domain.UserNotification, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.UserNotification), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkRead mock receipt one notification
func (m *MockNotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

// MarkAllRead mock receipt all visible notifications
func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID string, role domain.UserRole) (int64, error) {
	args := m.Called(ctx, userID, role)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserDirectory Mock UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

// FindByID mock find directory user
func (m *MockUserDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindIDsByRole mock enumerate ids holding a role
func (m *MockUserDirectory) FindIDsByRole(ctx context.Context, role domain.UserRole) ([]string, error) {
	args := m.Called(ctx, role)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPubSub Mock PubSub
type MockPubSub struct {
	mock.Mock
}

// Publish mock publisher
func (m *MockPubSub) Publish(channel string, env repository.Envelope) error {
	args := m.Called(channel, env)
	return args.Error(0)
}

// Subscribe mock subscriber
func (m *MockPubSub) Subscribe(ctx context.Context, channel string, handler func(env repository.Envelope)) error {
	args := m.Called(channel, handler)
	return args.Error(0)
}

// fakeSender in-memory Sender for registry and fan-out tests
type fakeSender struct {
	id   string
	fail bool

	mu       sync.Mutex
	received []domain.WSResponse
}

func newFakeSender(id string) *fakeSender {
	return &fakeSender{id: id}
}

func (f *fakeSender) ID() string {
	return f.id
}

func (f *fakeSender) Push(resp domain.WSResponse) error {
	if f.fail {
		return ErrSendQueueFull
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, resp)
	return nil
}

func (f *fakeSender) events() []domain.WSResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.WSResponse, len(f.received))
	copy(out, f.received)
	return out
}
