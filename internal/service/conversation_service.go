package service

import (
	"context"
	"strings"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"
	"github.com/cwrk-planet/support-chat/internal/postgres"

	"github.com/google/uuid"
)

type ConversationService struct {
	convRepo *postgres.ConversationRepository
	userRepo *postgres.UserRepository
}

func NewConversationService(convRepo *postgres.ConversationRepository, userRepo *postgres.UserRepository) *ConversationService {
	return &ConversationService{convRepo: convRepo, userRepo: userRepo}
}

func (s *ConversationService) Get(ctx context.Context, cid string) (*domain.Conversation, error) {
	return s.convRepo.GetByID(ctx, cid)
}

func (s *ConversationService) GetByUser(ctx context.Context, userID string) (*domain.Conversation, error) {
	return s.convRepo.GetByUser(ctx, userID)
}

// Access — staff имеют доступ ко всем диалогам, пользователь — к своему.
func (s *ConversationService) Access(conv *domain.Conversation, u *domain.User) bool {
	return u.IsStaff || conv.UserID == u.ID
}

// Create — диалог заводит только обычный пользователь, один на аккаунт.
func (s *ConversationService) Create(ctx context.Context, u *domain.User) (*domain.Conversation, error) {
	if u.IsStaff {
		return nil, domain.ErrForbidden
	}
	conv := &domain.Conversation{
		CID:    uuid.New().String(),
		UserID: u.ID,
		Slug:   makeSlug(u),
		Owner:  u,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// RecipientID — вторая сторона диалога: для staff это владелец,
// для пользователя — дежурный staff.
func (s *ConversationService) RecipientID(ctx context.Context, conv *domain.Conversation, sender *domain.User) (string, error) {
	if sender.IsStaff {
		return conv.UserID, nil
	}
	staff, err := s.userRepo.FirstStaff(ctx)
	if err != nil {
		return "", err
	}
	return staff.ID, nil
}

type ConversationSummary struct {
	Conversation    domain.Conversation
	Owner           domain.User
	LastMessageTime time.Time
	UnreadCount     int64
}

func (s *ConversationService) ListForStaff(ctx context.Context, staffID string) ([]ConversationSummary, error) {
	rows, err := s.convRepo.ListWithActivity(ctx, staffID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ConversationSummary{
			Conversation:    r.Conversation,
			Owner:           r.Owner,
			LastMessageTime: r.LastMessageTime,
			UnreadCount:     r.UnreadCount,
		})
	}
	return out, nil
}

func makeSlug(u *domain.User) string {
	parts := []string{slugify(u.FirstName), slugify(u.LastName), u.ID}
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "-")
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
