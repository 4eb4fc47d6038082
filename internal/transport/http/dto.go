package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type UserItem struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsStaff   bool   `json:"is_staff"`
}

type ConversationItem struct {
	CID             string     `json:"cid"`
	Slug            string     `json:"slug"`
	CreatedAt       time.Time  `json:"created_at"`
	UserDetails     *UserItem  `json:"user_details,omitempty"`
	IsOnline        bool       `json:"is_online"`
	UnreadCount     int64      `json:"unread_count"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
}

type MessageItem struct {
	MessageID   int64  `json:"message_id"`
	Message     string `json:"message"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type"`
	Sender      string `json:"sender"`
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`
	Timestamp   string `json:"timestamp"`
	IsRead      bool   `json:"is_read"`
}

type MessagesResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type NotificationItem struct {
	NID          int64     `json:"nid"`
	Notification string    `json:"notification"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
}

type UploadResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	SignedURL string `json:"signed_url"`
	MIME      string `json:"mime"`
	Size      int64  `json:"size"`
}
