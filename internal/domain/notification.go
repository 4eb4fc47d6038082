package domain

import "time"

// Notification создаётся только асинхронными side-effect обработчиками,
// никогда сессией напрямую.
type Notification struct {
	NID       int64
	Body      string
	UserID    string
	IsRead    bool
	CreatedAt time.Time
}
