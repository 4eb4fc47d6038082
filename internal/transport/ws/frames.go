package ws

// Входящие типы кадров
const (
	TypeChatMessage = "chat_message"
	TypeImage       = "image"
	TypeRead        = "read"
	TypeTyping      = "typing"
	TypeHeartbeat   = "heartbeat"
)

// Исходящие типы кадров
const (
	TypeImageMessage  = "image_message"
	TypeOnlineUsers   = "online_users"
	TypeUserStatus    = "user_status"
	TypeStatusUpgrade = "status_upgrade"
	TypeError         = "error"
)

// InboundFrame — единая форма входящего кадра; какие поля значимы,
// определяет type. Неизвестные type логируются и отбрасываются.
type InboundFrame struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Image    string `json:"image"`
	IsTyping bool   `json:"is_typing"`
}

// MessageFrame — chat_message / image_message наружу.
type MessageFrame struct {
	Type            string `json:"type"`
	Message         string `json:"message"`
	Image           string `json:"image,omitempty"`
	MessageID       int64  `json:"message_id"`
	Sender          string `json:"sender"`
	SenderName      string `json:"sender_name"`
	SenderEmail     string `json:"sender_email"`
	Timestamp       string `json:"timestamp"` // ISO-8601
	IsRead          bool   `json:"is_read"`
	Status          string `json:"status"` // sent|delivered
	RecipientOnline bool   `json:"recipient_online"`
	Unread          bool   `json:"unread,omitempty"` // replay при подключении
}

type ReadFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type TypingFrame struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	SenderName string `json:"sender_name"`
	IsTyping   bool   `json:"is_typing"`
}

type UserStatusFrame struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"` // online|offline
	IsStaff bool   `json:"is_staff"`
}

// StatusUpgradeFrame рассылается всей комнате; клиенты фильтруют по
// recipient_id (документированный контракт).
type StatusUpgradeFrame struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipient_id"`
	NewStatus   string `json:"new_status"`
}

type OnlineUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsStaff bool   `json:"is_staff"`
}

type OnlineUsersFrame struct {
	Type  string       `json:"type"`
	Users []OnlineUser `json:"users"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
