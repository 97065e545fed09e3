package realtime

import "time"

// Wire event names pushed to clients.
const (
	EventOnlineUsers     = "online-users"
	EventUserOnline      = "user-online"
	EventUserOffline     = "user-offline"
	EventMessageReceived = "message-received"
	EventTypingIndicator = "typing-indicator"
	EventFileShared      = "file-shared"
	EventFileDeleted     = "file-deleted"
	EventNotification    = "notification"
)

// PresencePayload is the body of user-online / user-offline broadcasts.
// Clients filter out their own id.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// SenderSummary is the denormalized author block the REST layer attaches
// to a persisted message so clients can render without a second fetch.
type SenderSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// MessageRecord is an already-persisted conversation message. The core
// forwards it verbatim and never mutates it.
type MessageRecord struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	CreatedAt      time.Time      `json:"createdAt"`
	Sender         *SenderSummary `json:"sender,omitempty"`
}

// FileRecord is an already-persisted file-share record.
type FileRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	UploaderID     string    `json:"uploaderId"`
	FileName       string    `json:"fileName"`
	FileType       string    `json:"fileType,omitempty"`
	FileSize       int64     `json:"fileSize,omitempty"`
	URL            string    `json:"url,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TypingPayload is the typing-indicator event body.
type TypingPayload struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// NotificationEnvelope is an already-persisted notification handed to the
// dispatcher. Offline targets keep fetching it from durable storage; the
// envelope itself is never queued here.
type NotificationEnvelope struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
