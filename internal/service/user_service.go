package service

import (
	"context"

	"github.com/cwrk-planet/support-chat/internal/domain"
	"github.com/cwrk-planet/support-chat/internal/postgres"
)

type UserService struct {
	repo *postgres.UserRepository
}

func NewUserService(repo *postgres.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	return s.repo.GetByIDs(ctx, ids)
}
