package domain

import "time"

// Conversation — один диалог на пользователя (уникальность по user_id).
// Staff имеют доступ ко всем диалогам без явного членства.
type Conversation struct {
	CID       string
	UserID    string
	Slug      string
	CreatedAt time.Time

	Owner *User // заполняется join-ом при чтении
}
