package domain

import "strings"

// User — read-only проекция пользователя из identity-провайдера.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	IsStaff   bool
}

// DisplayName — "Имя Фамилия", либо email как fallback.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}
