package domain

import (
	"errors"
	"time"
)

// Message one direct message between two users. Immutable after creation
// except for the read flag, which only ever flips false to true.
// The JSON shape is shared by the REST history endpoints and the
// newMessage push event so clients can compare by id.
type Message struct {
	ID         string    `bson:"id" json:"id"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id" json:"receiverId"`
	Content    string    `bson:"content" json:"content"`
	Read       bool      `bson:"read" json:"read"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// PeerUnreadInfo unread summary for one conversation peer
type PeerUnreadInfo struct {
	PeerID       string    `bson:"_id" json:"peerId"`
	UnreadCount  int       `bson:"unread_count" json:"unreadCount"`
	LastUnreadAt time.Time `bson:"last_unread_at" json:"lastUnreadAt"`
}

// Send rejection reasons. Persistence failures keep their own error from
// the repository, these cover what gets rejected before persistence.
var (
	// ErrEmptyContent content is empty after trimming
	ErrEmptyContent = errors.New("message content is empty")
	// ErrMissingReceiver receiver id is missing
	ErrMissingReceiver = errors.New("receiver id is required")
	// ErrSenderMismatch claimed sender differs from the bound connection identity
	ErrSenderMismatch = errors.New("sender does not match connection identity")
)
