package domain

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrForbidden            = errors.New("access denied")
	ErrNoStaffAvailable     = errors.New("no staff user available")
	ErrEmptyMessage         = errors.New("empty message")
	ErrMessageTooLong       = errors.New("message too long")
)
