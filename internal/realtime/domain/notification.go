package domain

import (
	"errors"
	"time"
)

// Notification server-originated announcement. Exactly one of TargetUserID
// and TargetRole is set, never both and never neither.
type Notification struct {
	ID           string    `bson:"id" json:"id"`
	Title        string    `bson:"title" json:"title"`
	Content      string    `bson:"content" json:"content"`
	TargetUserID string    `bson:"target_user_id,omitempty" json:"targetUserId,omitempty"`
	TargetRole   UserRole  `bson:"target_role,omitempty" json:"targetRole,omitempty"`
	CreatedBy    string    `bson:"created_by" json:"createdBy"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

// NotificationReceipt read marker for one (notification, recipient) pair.
// Role-targeted notifications fan out to many users, so read state lives
// here instead of on the notification itself.
type NotificationReceipt struct {
	NotificationID string    `bson:"notification_id" json:"notificationId"`
	UserID         string    `bson:"user_id" json:"userId"`
	ReadAt         time.Time `bson:"read_at" json:"readAt"`
}

// UserNotification notification as one recipient sees it
type UserNotification struct {
	Notification `bson:",inline"`
	Read         bool `bson:"read" json:"read"`
}

var (
	// ErrInvalidTarget zero or two targets were given
	ErrInvalidTarget = errors.New("notification requires exactly one of target user or target role")
	// ErrMissingTitle title is empty after trimming
	ErrMissingTitle = errors.New("notification title is required")
)

// ValidateTarget check the exactly-one-target invariant
func (n *Notification) ValidateTarget() error {
	hasUser := n.TargetUserID != ""
	hasRole := n.TargetRole != ""
	if hasUser == hasRole {
		return ErrInvalidTarget
	}
	if hasRole && !n.TargetRole.Valid() {
		return ErrInvalidTarget
	}
	return nil
}
