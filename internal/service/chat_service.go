package service

import (
	"context"
	"strings"

	"github.com/cwrk-planet/support-chat/internal/domain"
)

// MessageStore — то, что ChatService требует от хранилища сообщений.
type MessageStore interface {
	Save(ctx context.Context, m *domain.Message) error
	HasUnread(ctx context.Context, conversationID, userID string) (bool, error)
	ListUnread(ctx context.Context, conversationID, userID string) ([]domain.MessageWithSender, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	History(ctx context.Context, conversationID, after string, limit int, search string) ([]domain.MessageWithSender, string, error)
}

type ChatService struct {
	messages MessageStore
	maxLen   int
}

func NewChatService(messages MessageStore, maxLen int) *ChatService {
	if maxLen <= 0 {
		maxLen = 4000
	}
	return &ChatService{messages: messages, maxLen: maxLen}
}

func (s *ChatService) SaveText(ctx context.Context, conversationID, senderID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len(text) > s.maxLen {
		return nil, domain.ErrMessageTooLong
	}
	m := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           text,
		Type:           domain.MessageText,
	}
	if err := s.messages.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ChatService) SaveImage(ctx context.Context, conversationID, senderID, imageURL, caption string) (*domain.Message, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, domain.ErrEmptyMessage
	}
	caption = strings.TrimSpace(caption)
	if len(caption) > s.maxLen {
		return nil, domain.ErrMessageTooLong
	}
	m := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           caption,
		Image:          imageURL,
		Type:           domain.MessageImage,
	}
	if err := s.messages.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ChatService) HasUnread(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.messages.HasUnread(ctx, conversationID, userID)
}

func (s *ChatService) Unread(ctx context.Context, conversationID, userID string) ([]domain.MessageWithSender, error) {
	return s.messages.ListUnread(ctx, conversationID, userID)
}

func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	return s.messages.MarkRead(ctx, conversationID, readerID)
}

func (s *ChatService) History(ctx context.Context, conversationID, after string, limit int, search string) ([]domain.MessageWithSender, string, error) {
	return s.messages.History(ctx, conversationID, after, limit, search)
}
