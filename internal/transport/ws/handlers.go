package ws

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"
	"github.com/cwrk-planet/support-chat/internal/notify"
)

func (s *Server) handleChatMessage(ctx context.Context, sess *session, f *InboundFrame) {
	// отправка во время чтения: сначала расписка о прочтении ожидающих
	s.piggybackRead(ctx, sess)

	msg, err := s.chatSvc.SaveText(ctx, sess.conv.CID, sess.user.ID, f.Text)
	if err != nil {
		s.handleSaveError(sess, err, "Failed to send message")
		return
	}

	recipientID, online := s.recipientState(ctx, sess)

	s.hub.Broadcast(sess.room, MessageFrame{
		Type:            TypeChatMessage,
		Message:         msg.Body,
		MessageID:       msg.MID,
		Sender:          sess.user.ID,
		SenderName:      sess.user.DisplayName(),
		SenderEmail:     sess.user.Email,
		Timestamp:       msg.Timestamp.Format(time.RFC3339),
		IsRead:          false,
		Status:          string(domain.InitialStatus(online)),
		RecipientOnline: online,
	})

	s.notifier.Enqueue(notify.Request{
		RecipientID: recipientID,
		SenderName:  sess.user.DisplayName(),
		Body:        msg.Body,
		Kind:        notify.KindMessage,
	})
}

func (s *Server) handleImage(ctx context.Context, sess *session, f *InboundFrame) {
	s.piggybackRead(ctx, sess)

	msg, err := s.chatSvc.SaveImage(ctx, sess.conv.CID, sess.user.ID, f.Image, f.Text)
	if err != nil {
		s.handleSaveError(sess, err, "Failed to send image")
		return
	}

	recipientID, online := s.recipientState(ctx, sess)

	s.hub.Broadcast(sess.room, MessageFrame{
		Type:            TypeImageMessage,
		Message:         msg.Body,
		Image:           msg.Image,
		MessageID:       msg.MID,
		Sender:          sess.user.ID,
		SenderName:      sess.user.DisplayName(),
		SenderEmail:     sess.user.Email,
		Timestamp:       msg.Timestamp.Format(time.RFC3339),
		IsRead:          false,
		Status:          string(domain.InitialStatus(online)),
		RecipientOnline: online,
	})

	s.notifier.Enqueue(notify.Request{
		RecipientID: recipientID,
		SenderName:  sess.user.DisplayName(),
		Kind:        notify.KindImage,
	})
}

func (s *Server) handleRead(ctx context.Context, sess *session, _ *InboundFrame) {
	count, err := s.chatSvc.MarkRead(ctx, sess.conv.CID, sess.user.ID)
	if err != nil {
		slog.Error("ws mark read failed", "user", sess.user.ID, "cid", sess.conv.CID, "err", err)
		return
	}
	// повторная расписка без непрочитанных — ноль broadcast-ов
	if count == 0 {
		return
	}
	s.hub.BroadcastExcept(sess.room, sess.user.ID, ReadFrame{
		Type:   TypeRead,
		UserID: sess.user.ID,
	})
}

func (s *Server) handleTyping(ctx context.Context, sess *session, f *InboundFrame) {
	// не персистится, автору не возвращается
	s.hub.BroadcastExcept(sess.room, sess.user.ID, TypingFrame{
		Type:       TypeTyping,
		UserID:     sess.user.ID,
		SenderName: sess.user.DisplayName(),
		IsTyping:   f.IsTyping,
	})
}

func (s *Server) handleHeartbeat(ctx context.Context, sess *session, _ *InboundFrame) {
	if err := s.presence.Heartbeat(ctx, sess.user.ID); err != nil {
		slog.Debug("ws heartbeat failed", "user", sess.user.ID, "err", err)
	}
	s.sendOnlineList(ctx, sess)
}

// piggybackRead: у отправителя лежат непрочитанные — значит, он читал
// диалог, пока набирал ответ.
func (s *Server) piggybackRead(ctx context.Context, sess *session) {
	has, err := s.chatSvc.HasUnread(ctx, sess.conv.CID, sess.user.ID)
	if err != nil || !has {
		return
	}
	s.handleRead(ctx, sess, nil)
}

func (s *Server) recipientState(ctx context.Context, sess *session) (string, bool) {
	recipientID, err := s.convSvc.RecipientID(ctx, sess.conv, sess.user)
	if err != nil {
		slog.Warn("ws recipient lookup failed", "cid", sess.conv.CID, "err", err)
		return "", false
	}
	online, _ := s.presence.IsOnline(ctx, recipientID)
	return recipientID, online
}

// handleSaveError: валидация — дроп кадра, сбой персистенции — in-band
// error-кадр, соединение остаётся открытым.
func (s *Server) handleSaveError(sess *session, err error, msg string) {
	if errors.Is(err, domain.ErrEmptyMessage) || errors.Is(err, domain.ErrMessageTooLong) {
		slog.Warn("ws message rejected", "user", sess.user.ID, "err", err)
		return
	}
	slog.Error("ws message save failed", "user", sess.user.ID, "err", err)
	_ = sess.conn.Send(ErrorFrame{Type: TypeError, Message: msg})
}
