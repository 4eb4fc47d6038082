package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"
)

type stubMessageStore struct {
	saved   []*domain.Message
	saveErr error
}

func (s *stubMessageStore) Save(_ context.Context, m *domain.Message) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	m.MID = int64(len(s.saved) + 1)
	m.Timestamp = time.Now()
	s.saved = append(s.saved, m)
	return nil
}

func (s *stubMessageStore) HasUnread(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (s *stubMessageStore) ListUnread(_ context.Context, _, _ string) ([]domain.MessageWithSender, error) {
	return nil, nil
}

func (s *stubMessageStore) MarkRead(_ context.Context, _, _ string) (int64, error) {
	return 0, nil
}

func (s *stubMessageStore) History(_ context.Context, _, _ string, _ int, _ string) ([]domain.MessageWithSender, string, error) {
	return nil, "", nil
}

func TestSaveTextTrimsAndPersists(t *testing.T) {
	store := &stubMessageStore{}
	svc := NewChatService(store, 0)

	msg, err := svc.SaveText(context.Background(), "c1", "u1", "  hello  ")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if msg.Body != "hello" {
		t.Fatalf("body=%q, want trimmed", msg.Body)
	}
	if msg.Type != domain.MessageText || msg.MID == 0 {
		t.Fatalf("message: %+v", msg)
	}
}

func TestSaveTextRejectsEmpty(t *testing.T) {
	svc := NewChatService(&stubMessageStore{}, 0)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.SaveText(context.Background(), "c1", "u1", text)
		if !errors.Is(err, domain.ErrEmptyMessage) {
			t.Fatalf("%q: expected ErrEmptyMessage, got %v", text, err)
		}
	}
}

func TestSaveTextRejectsTooLong(t *testing.T) {
	svc := NewChatService(&stubMessageStore{}, 10)

	_, err := svc.SaveText(context.Background(), "c1", "u1", strings.Repeat("a", 11))
	if !errors.Is(err, domain.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}

	if _, err := svc.SaveText(context.Background(), "c1", "u1", strings.Repeat("a", 10)); err != nil {
		t.Fatalf("limit length must pass: %v", err)
	}
}

func TestSaveImage(t *testing.T) {
	store := &stubMessageStore{}
	svc := NewChatService(store, 0)

	msg, err := svc.SaveImage(context.Background(), "c1", "u1", " https://cdn/a.png ", " caption ")
	if err != nil {
		t.Fatalf("save image: %v", err)
	}
	if msg.Type != domain.MessageImage || msg.Image != "https://cdn/a.png" || msg.Body != "caption" {
		t.Fatalf("message: %+v", msg)
	}

	// пустой URL — отказ, подпись опциональна
	if _, err := svc.SaveImage(context.Background(), "c1", "u1", "", "caption"); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.SaveImage(context.Background(), "c1", "u1", "https://cdn/b.png", ""); err != nil {
		t.Fatalf("empty caption must pass: %v", err)
	}
}

func TestSaveTextPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("db down")
	svc := NewChatService(&stubMessageStore{saveErr: storeErr}, 0)

	_, err := svc.SaveText(context.Background(), "c1", "u1", "hello")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
