package service

import (
	"context"

	"github.com/cwrk-planet/support-chat/internal/domain"
	"github.com/cwrk-planet/support-chat/internal/postgres"
)

type NotificationService struct {
	repo *postgres.NotificationRepository
}

func NewNotificationService(repo *postgres.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) Create(ctx context.Context, n *domain.Notification) error {
	return s.repo.Create(ctx, n)
}

func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, nid int64, userID string) (int64, error) {
	return s.repo.MarkRead(ctx, nid, userID)
}
