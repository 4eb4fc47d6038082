package notify

import (
	"context"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "notify.user."

// NATSSink публикует уведомления в NATS, по subject на получателя.
type NATSSink struct {
	nc *nats.Conn
}

func NewNATSSink(nc *nats.Conn) *NATSSink {
	return &NATSSink{nc: nc}
}

func (s *NATSSink) Push(_ context.Context, userID string, payload []byte) error {
	return s.nc.Publish(subjectPrefix+userID, payload)
}
