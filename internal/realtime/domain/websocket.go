package domain

// Action websocket event name. The names are the wire contract the web
// client already speaks, so they stay camelCase.
type Action string

const (
	// Register websocket action register, binds the connection to a user id
	Register Action = "register"
	// JoinRoom legacy registration path kept for older clients, same
	// behavior as register
	JoinRoom Action = "joinRoom"

	// SendMessage websocket action sendMessage
	SendMessage Action = "sendMessage"

	// NewMessage server push carrying a persisted message
	NewMessage Action = "newMessage"
	// NotifyUser server push carrying a notification
	NotifyUser Action = "notification"
)

// WSRequest websocket Request
type WSRequest struct {
	Action     string `json:"action"`
	UserID     string `json:"userId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
