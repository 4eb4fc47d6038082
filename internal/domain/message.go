package domain

import "time"

type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
)

// Status — транзиентный статус доставки. В БД хранится только is_read,
// sent/delivered вычисляются из presence на момент отправки.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// CanAdvance — статус двигается только вперёд, без регрессий.
func (s Status) CanAdvance(to Status) bool {
	return to.rank() > s.rank()
}

// InitialStatus — delivered, если получатель онлайн на момент создания.
func InitialStatus(recipientOnline bool) Status {
	if recipientOnline {
		return StatusDelivered
	}
	return StatusSent
}

type Message struct {
	MID            int64
	ConversationID string
	SenderID       string
	Body           string
	Image          string
	Type           MessageType
	Timestamp      time.Time
	IsRead         bool
}

// MessageWithSender — сообщение вместе с данными отправителя (join users).
type MessageWithSender struct {
	Message
	Sender User
}
