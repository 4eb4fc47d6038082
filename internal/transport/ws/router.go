package ws

import (
	"context"
	"log/slog"
)

type frameHandler func(ctx context.Context, sess *session, f *InboundFrame)

// dispatch — явная таблица по тегу типа; неизвестные теги логируются и
// отбрасываются (forward-compatible протокол). Ретраев нет: at-most-once
// на полученный кадр.
func (s *Server) dispatch(ctx context.Context, sess *session, f *InboundFrame) {
	h, ok := s.handlers[f.Type]
	if !ok {
		slog.Warn("ws unknown frame type", "type", f.Type, "user", sess.user.ID)
		return
	}
	h(ctx, sess, f)
}
