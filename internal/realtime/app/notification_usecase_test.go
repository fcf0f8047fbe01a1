package app

import (
	"context"
	"errors"
	"testing"

	"daycare_realtime_service/internal/realtime/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func notificationEvents(events []domain.WSResponse) []domain.WSResponse {
	var out []domain.WSResponse
	for _, e := range events {
		if e.Action == string(domain.NotifyUser) {
			out = append(out, e)
		}
	}
	return out
}

func TestCreateNotification_TargetInvariant(t *testing.T) {
	notifRepo := new(MockNotificationRepository)
	uc := NewNotificationUseCase(notifRepo, new(MockUserDirectory), NewConnRegistry(), nil)

	err := uc.Create(context.Background(), &domain.Notification{
		Title: "Closed friday",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	err = uc.Create(context.Background(), &domain.Notification{
		Title:        "Closed friday",
		TargetUserID: "parent-1",
		TargetRole:   domain.RoleParent,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	err = uc.Create(context.Background(), &domain.Notification{
		Title:      "Closed friday",
		TargetRole: domain.UserRole("janitor"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	notifRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreateNotification_MissingTitle(t *testing.T) {
	notifRepo := new(MockNotificationRepository)
	uc := NewNotificationUseCase(notifRepo, new(MockUserDirectory), NewConnRegistry(), nil)

	err := uc.Create(context.Background(), &domain.Notification{
		Title:        "   ",
		TargetUserID: "parent-1",
	})

	assert.ErrorIs(t, err, domain.ErrMissingTitle)
	notifRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreateNotification_DirectTarget(t *testing.T) {
	notifRepo := new(MockNotificationRepository)
	directory := new(MockUserDirectory)
	registry := NewConnRegistry()
	uc := NewNotificationUseCase(notifRepo, directory, registry, nil)

	phone := newFakeSender("parent-conn-1")
	tablet := newFakeSender("parent-conn-2")
	other := newFakeSender("edu-conn-1")
	registry.Bind(phone, "parent-1")
	registry.Bind(tablet, "parent-1")
	registry.Bind(other, "educator-1")

	notifRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)

	n := &domain.Notification{
		Title:        "Invoice ready",
		Content:      "March invoice is available",
		TargetUserID: "parent-1",
		CreatedBy:    "admin-1",
	}
	err := uc.Create(context.Background(), n)

	assert.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Len(t, notificationEvents(phone.events()), 1)
	assert.Len(t, notificationEvents(tablet.events()), 1)
	assert.Empty(t, notificationEvents(other.events()))
	// direct targets never touch the directory
	directory.AssertNotCalled(t, "FindIDsByRole", mock.Anything, mock.Anything)
}

func TestCreateNotification_RoleTargetHitsEveryLiveHolder(t *testing.T) {
	notifRepo := new(MockNotificationRepository)
	directory := new(MockUserDirectory)
	registry := NewConnRegistry()
	uc := NewNotificationUseCase(notifRepo, directory, registry, nil)

	// four educators exist, three are connected, one of them twice
	connected := map[string][]*fakeSender{
		"educator-1": {newFakeSender("c1"), newFakeSender("c2")},
		"educator-2": {newFakeSender("c3")},
		"educator-3": {newFakeSender("c4")},
	}
	for userID, senders := range connected {
		for _, s := range senders {
			registry.Bind(s, userID)
		}
	}

	notifRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)
	directory.On("FindIDsByRole", mock.Anything, domain.RoleEducator).
		Return([]string{"educator-1", "educator-2", "educator-3", "educator-4"}, nil)

	err := uc.Create(context.Background(), &domain.Notification{
		Title:      "Staff meeting moved",
		TargetRole: domain.RoleEducator,
		CreatedBy:  "admin-1",
	})

	assert.NoError(t, err)
	for userID, senders := range connected {
		for _, s := range senders {
			assert.Len(t, notificationEvents(s.events()), 1, "user %s conn %s", userID, s.ID())
		}
	}
}

func TestBroadcastNotification_ResolveFailureOnlyDegradesDelivery(t *testing.T) {
	notifRepo := new(MockNotificationRepository)
	directory := new(MockUserDirectory)
	registry := NewConnRegistry()
	uc := NewNotificationUseCase(notifRepo, directory, registry, nil)

	educator := newFakeSender("edu-conn-1")
	registry.Bind(educator, "educator-1")

	notifRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)
	directory.On("FindIDsByRole", mock.Anything, domain.RoleEducator).
		Return(nil, errors.New("directory down"))

	err := uc.Create(context.Background(), &domain.Notification{
		Title:      "Staff meeting moved",
		TargetRole: domain.RoleEducator,
	})

	// persisted fine, recipients catch up from their next fetch
	assert.NoError(t, err)
	assert.Empty(t, educator.events())
	notifRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestCreateNotification_PersistFailureMeansNoPush(t *testing.T) {
	notifRepo := new(MockNotificationRepository)
	registry := NewConnRegistry()
	uc := NewNotificationUseCase(notifRepo, new(MockUserDirectory), registry, nil)

	parent := newFakeSender("parent-conn-1")
	registry.Bind(parent, "parent-1")

	notifRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(errors.New("mongo down"))

	err := uc.Create(context.Background(), &domain.Notification{
		Title:        "Invoice ready",
		TargetUserID: "parent-1",
	})

	assert.Error(t, err)
	assert.Empty(t, parent.events())
}

func TestMarkNotificationRead_DelegatesPerRecipient(t *testing.T) {
	notifRepo := new(MockNotificationRepository)
	uc := NewNotificationUseCase(notifRepo, new(MockUserDirectory), NewConnRegistry(), nil)

	notifRepo.On("MarkRead", mock.Anything, "notif-1", "parent-1").Return(nil)

	assert.NoError(t, uc.MarkRead(context.Background(), "notif-1", "parent-1"))
	notifRepo.AssertExpectations(t)
}
