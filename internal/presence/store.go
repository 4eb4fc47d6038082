// Package presence — эфемерный учёт подключений с lease-семантикой.
//
// "online" — это lease: утверждение с TTL, а не гарантия. После
// неаккуратного дисконнекта потребители могут видеть ложный "online"
// до истечения lease.
package presence

import "context"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Store — инжектируемая capability, без process-wide синглтона,
// чтобы тесты могли подставить in-memory реализацию.
type Store interface {
	// Increment атомарно поднимает счётчик подключений и обновляет lease.
	// Возвращает новое значение счётчика.
	Increment(ctx context.Context, userID string, isStaff bool) (int64, error)

	// Decrement атомарно опускает счётчик; при переходе в 0 удаляет запись,
	// ставит offline-статус с коротким TTL и убирает из online-множества.
	// Счётчик не уходит ниже нуля.
	Decrement(ctx context.Context, userID string, isStaff bool) (int64, error)

	// Heartbeat продлевает lease живой записи. Для истёкшей записи —
	// no-op, не ошибка: heartbeat гоняется с expiry.
	Heartbeat(ctx context.Context, userID string) error

	// IsOnline — count > 0 с учётом lease.
	IsOnline(ctx context.Context, userID string) (bool, error)

	// ListOnline возвращает кандидатов из online-множества; члены с
	// истёкшим счётчиком выселяются как side effect чтения.
	ListOnline(ctx context.Context, staff bool) ([]string, error)

	// Status — "online"/"offline"; отсутствие ключа трактуется как offline.
	Status(ctx context.Context, userID string) (string, error)
}

// StatusEvent публикуется на переходах 0→1 и 1→0.
type StatusEvent struct {
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	IsStaff bool   `json:"is_staff"`
}

func onlineSetName(staff bool) string {
	if staff {
		return "online_staff"
	}
	return "online_users"
}
