package model

import "time"

// Message is a persisted chat message. It lives in the chat store, not the
// listings database, and is append-only apart from the read flag.
type Message struct {
	ID         uint64    `gorm:"primaryKey" json:"message_id"`
	SenderID   uint64    `gorm:"index:idx_pair,priority:1;not null" json:"sender_id"`
	ReceiverID uint64    `gorm:"index:idx_pair,priority:2;index;not null" json:"receiver_id"`
	Body       string    `gorm:"column:message;type:text;not null" json:"message"`
	IsRead     bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"index" json:"timestamp"`
}

// TableName pins the table to "messages".
func (Message) TableName() string { return "messages" }

// Conversation is the latest message exchanged with one counterpart.
type Conversation struct {
	OtherUserID   uint64    `json:"other_user_id"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`

	OtherUser *UserSummary `json:"other_user,omitempty"`
}
