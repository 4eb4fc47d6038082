package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"
	"github.com/cwrk-planet/support-chat/internal/notify"
	"github.com/cwrk-planet/support-chat/internal/presence"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type ConversationSvc interface {
	Get(ctx context.Context, cid string) (*domain.Conversation, error)
	Access(conv *domain.Conversation, u *domain.User) bool
	RecipientID(ctx context.Context, conv *domain.Conversation, sender *domain.User) (string, error)
}

type ChatSvc interface {
	SaveText(ctx context.Context, conversationID, senderID, text string) (*domain.Message, error)
	SaveImage(ctx context.Context, conversationID, senderID, imageURL, caption string) (*domain.Message, error)
	HasUnread(ctx context.Context, conversationID, userID string) (bool, error)
	Unread(ctx context.Context, conversationID, userID string) ([]domain.MessageWithSender, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

type UserSvc interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Notifier interface {
	Enqueue(req notify.Request)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	verifier TokenVerifier
	convSvc  ConversationSvc
	chatSvc  ChatSvc
	userSvc  UserSvc
	presence presence.Store
	notifier Notifier

	handlers  map[string]frameHandler
	pingEvery time.Duration
}

func NewServer(hub *Hub, verifier TokenVerifier, conv ConversationSvc, chat ChatSvc, user UserSvc, pres presence.Store, notifier Notifier) *Server {
	s := &Server{
		hub:      hub,
		verifier: verifier,
		convSvc:  conv,
		chatSvc:  chat,
		userSvc:  user,
		presence: pres,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
	s.handlers = map[string]frameHandler{
		TypeChatMessage: s.handleChatMessage,
		TypeImage:       s.handleImage,
		TypeRead:        s.handleRead,
		TypeTyping:      s.handleTyping,
		TypeHeartbeat:   s.handleHeartbeat,
	}
	return s
}

// WS endpoint: GET /ws/conversations/{cid}?token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	sess, code, reason := s.authorize(r, cid)
	if sess == nil {
		slog.Warn("ws connect rejected", "cid", cid, "code", code, "reason", reason)
		closeWithCode(conn, code, reason)
		return
	}

	c := newWsConn(conn, sess.user.ID)
	sess.conn = c
	s.hub.Add(sess.room, c)

	ctx := r.Context()
	count, _ := s.presence.Increment(ctx, sess.user.ID, sess.user.IsStaff)
	if count == 1 {
		// первый сокет: комната узнаёт о появлении
		s.hub.Broadcast(sess.room, UserStatusFrame{
			Type:    TypeUserStatus,
			UserID:  sess.user.ID,
			Status:  presence.StatusOnline,
			IsStaff: sess.user.IsStaff,
		})
		s.upgradePending(ctx, sess)
	}

	s.sendOnlineList(ctx, sess)
	s.sendUnread(ctx, sess)

	slog.Info("ws connected", "user", sess.user.ID, "staff", sess.user.IsStaff, "cid", cid)

	// teardown гарантирован на любом пути выхода
	defer s.teardown(sess, c)

	go s.writeLoop(c)
	s.readLoop(ctx, sess, c)
}

// authorize выполняет все проверки подключения; каждая причина отказа
// мапится на свой close-код.
func (s *Server) authorize(r *http.Request, cid string) (*session, int, string) {
	token := extractToken(r)
	if token == "" {
		return nil, CloseUnauthenticated, "missing token"
	}
	userID, err := s.verifier.Verify(token)
	if err != nil {
		return nil, CloseUnauthenticated, "invalid token"
	}

	ctx := r.Context()
	user, err := s.userSvc.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, CloseUnauthenticated, "unknown user"
		}
		return nil, CloseInternalError, "internal error"
	}

	if cid == "" {
		return nil, CloseMissingConversation, "missing conversation id"
	}

	conv, err := s.convSvc.Get(ctx, cid)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, CloseNotFound, "conversation not found"
		}
		return nil, CloseInternalError, "internal error"
	}

	if !s.convSvc.Access(conv, user) {
		return nil, CloseForbidden, "access denied"
	}

	return &session{
		user: user,
		conv: conv,
		room: roomName(conv.CID),
	}, 0, ""
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// teardown: decrement + offline-broadcast при нуле + выход из комнаты.
// Выполняется ровно один раз, даже если сокет упал аварийно.
func (s *Server) teardown(sess *session, c *wsConn) {
	sess.cleanupOnce.Do(func() {
		// request context к этому моменту может быть уже отменён
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		count, _ := s.presence.Decrement(ctx, sess.user.ID, sess.user.IsStaff)
		if count == 0 {
			s.hub.Broadcast(sess.room, UserStatusFrame{
				Type:    TypeUserStatus,
				UserID:  sess.user.ID,
				Status:  presence.StatusOffline,
				IsStaff: sess.user.IsStaff,
			})
		}
		s.hub.Remove(sess.room, c)
		if err := c.Close(); err != nil {
			slog.Debug("ws close failed", "user", sess.user.ID, "err", err)
		}
		slog.Info("ws disconnected", "user", sess.user.ID, "cid", sess.conv.CID, "remaining", count)
	})
}

func (s *Server) readLoop(ctx context.Context, sess *session, c *wsConn) {
	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var f InboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			// малформленный кадр не рвёт соединение
			slog.Warn("ws malformed frame dropped", "user", sess.user.ID, "err", err)
			continue
		}
		s.dispatch(ctx, sess, &f)
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}

// upgradePending: получатель появился онлайн — его ожидающие sent-сообщения
// ретроактивно апгрейдятся до delivered одним событием на комнату.
func (s *Server) upgradePending(ctx context.Context, sess *session) {
	has, err := s.chatSvc.HasUnread(ctx, sess.conv.CID, sess.user.ID)
	if err != nil {
		slog.Error("ws unread check failed", "user", sess.user.ID, "err", err)
		return
	}
	if !has {
		return
	}
	s.hub.Broadcast(sess.room, StatusUpgradeFrame{
		Type:        TypeStatusUpgrade,
		RecipientID: sess.user.ID,
		NewStatus:   string(domain.StatusDelivered),
	})
}

// sendOnlineList отдаёт вызывающему противоположную сторону:
// пользователю — staff, staff — пользователей.
func (s *Server) sendOnlineList(ctx context.Context, sess *session) {
	ids, err := s.presence.ListOnline(ctx, !sess.user.IsStaff)
	if err != nil {
		slog.Error("ws online list failed", "user", sess.user.ID, "err", err)
		return
	}

	users := make([]OnlineUser, 0, len(ids))
	if len(ids) > 0 {
		resolved, err := s.userSvc.GetByIDs(ctx, ids)
		if err != nil {
			slog.Error("ws online list resolve failed", "err", err)
			return
		}
		for _, u := range resolved {
			users = append(users, OnlineUser{
				ID:      u.ID,
				Name:    u.DisplayName(),
				Email:   u.Email,
				IsStaff: u.IsStaff,
			})
		}
	}

	if err := sess.conn.Send(OnlineUsersFrame{Type: TypeOnlineUsers, Users: users}); err != nil {
		slog.Debug("ws send online list failed", "user", sess.user.ID, "err", err)
	}
}

// sendUnread — replay недоставленных сообщений при подключении.
func (s *Server) sendUnread(ctx context.Context, sess *session) {
	msgs, err := s.chatSvc.Unread(ctx, sess.conv.CID, sess.user.ID)
	if err != nil {
		slog.Error("ws unread replay failed", "user", sess.user.ID, "err", err)
		return
	}
	for _, m := range msgs {
		frame := MessageFrame{
			Type:        TypeChatMessage,
			Message:     m.Body,
			MessageID:   m.MID,
			Sender:      m.SenderID,
			SenderName:  m.Sender.DisplayName(),
			SenderEmail: m.Sender.Email,
			Timestamp:   m.Timestamp.Format(time.RFC3339),
			IsRead:      false,
			Status:      string(domain.StatusDelivered),
			Unread:      true,
		}
		if m.Type == domain.MessageImage {
			frame.Type = TypeImageMessage
			frame.Image = m.Image
		}
		if err := sess.conn.Send(frame); err != nil {
			return
		}
	}
}
