// Package notify — fire-and-forget уведомления получателям офлайн.
// Ошибки доставки логируются и никогда не доходят до websocket-клиента.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/support-chat/internal/domain"
)

const (
	KindMessage = "message"
	KindImage   = "image"
)

type Request struct {
	RecipientID string
	SenderName  string
	Body        string
	Kind        string // message|image
}

// Store — запись уведомления (постоянное хранилище).
type Store interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// Sink — внешний push-канал (NATS). nil-синк допустим.
type Sink interface {
	Push(ctx context.Context, userID string, payload []byte) error
}

// Notifier — ограниченная очередь с пулом воркеров. Enqueue никогда
// не блокирует: при переполнении запрос отбрасывается с warn-логом.
type Notifier struct {
	store   Store
	sink    Sink
	queue   chan Request
	workers int

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(store Store, sink Sink, workers, queueSize int) *Notifier {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Notifier{
		store:   store,
		sink:    sink,
		queue:   make(chan Request, queueSize),
		workers: workers,
	}
}

func (n *Notifier) Start(ctx context.Context) {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for req := range n.queue {
				n.process(ctx, req)
			}
		}()
	}
}

// Stop закрывает очередь и дожидается воркеров.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.queue) })
	n.wg.Wait()
}

func (n *Notifier) Enqueue(req Request) {
	select {
	case n.queue <- req:
	default:
		slog.Warn("notify: queue full, dropping", "recipient", req.RecipientID, "kind", req.Kind)
	}
}

func (n *Notifier) process(ctx context.Context, req Request) {
	if req.RecipientID == "" {
		return
	}

	body := req.SenderName + " sent an image"
	if req.Kind == KindMessage {
		body = "New message from " + req.SenderName
		if req.Body != "" {
			body += ": " + req.Body
		}
	}

	notification := &domain.Notification{
		Body:   body,
		UserID: req.RecipientID,
	}
	if err := n.store.Create(ctx, notification); err != nil {
		slog.Error("notify: create failed", "recipient", req.RecipientID, "err", err)
		return
	}

	if n.sink == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"nid":          notification.NID,
		"notification": notification.Body,
		"created_at":   notification.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := n.sink.Push(ctx, req.RecipientID, payload); err != nil {
		slog.Warn("notify: push failed", "recipient", req.RecipientID, "err", err)
	}
}
