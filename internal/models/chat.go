package models

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is the conversation history of a single user.
type ChatSession struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Messages     []ChatMessage `json:"messages"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}

// SessionIDFor derives the session id owned by userID.
func SessionIDFor(userID string) string {
	return "chat_session_" + userID
}

// NewChatSession returns an empty session for userID started at now.
func NewChatSession(userID string, now time.Time) *ChatSession {
	return &ChatSession{
		ID:           SessionIDFor(userID),
		UserID:       userID,
		Messages:     []ChatMessage{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Append adds a message and bumps LastActivity.
func (s *ChatSession) Append(role Role, content string, at time.Time) {
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: content, Timestamp: at})
	s.LastActivity = at
}

// Profile is the identity record kept for an authenticated user.
type Profile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}
