package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"
	"github.com/cwrk-planet/support-chat/internal/notify"
	"github.com/cwrk-planet/support-chat/internal/presence"
)

type fakeConv struct {
	conv      *domain.Conversation
	recipient string
}

func (f *fakeConv) Get(_ context.Context, cid string) (*domain.Conversation, error) {
	if f.conv == nil || f.conv.CID != cid {
		return nil, domain.ErrConversationNotFound
	}
	return f.conv, nil
}

func (f *fakeConv) Access(conv *domain.Conversation, u *domain.User) bool {
	return u.IsStaff || conv.UserID == u.ID
}

func (f *fakeConv) RecipientID(_ context.Context, _ *domain.Conversation, _ *domain.User) (string, error) {
	return f.recipient, nil
}

type fakeChat struct {
	nextMID   int64
	unreadFor map[string][]domain.MessageWithSender
	saveErr   error

	markReadCalls int
}

func newFakeChat() *fakeChat {
	return &fakeChat{unreadFor: make(map[string][]domain.MessageWithSender)}
}

func (f *fakeChat) save(conversationID, senderID, text, image string, typ domain.MessageType) (*domain.Message, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.nextMID++
	return &domain.Message{
		MID:            f.nextMID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           text,
		Image:          image,
		Type:           typ,
		Timestamp:      time.Now(),
	}, nil
}

func (f *fakeChat) SaveText(_ context.Context, cid, sender, text string) (*domain.Message, error) {
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	return f.save(cid, sender, text, "", domain.MessageText)
}

func (f *fakeChat) SaveImage(_ context.Context, cid, sender, imageURL, caption string) (*domain.Message, error) {
	if imageURL == "" {
		return nil, domain.ErrEmptyMessage
	}
	return f.save(cid, sender, caption, imageURL, domain.MessageImage)
}

func (f *fakeChat) HasUnread(_ context.Context, _, userID string) (bool, error) {
	return len(f.unreadFor[userID]) > 0, nil
}

func (f *fakeChat) Unread(_ context.Context, _, userID string) ([]domain.MessageWithSender, error) {
	return f.unreadFor[userID], nil
}

func (f *fakeChat) MarkRead(_ context.Context, _, readerID string) (int64, error) {
	f.markReadCalls++
	n := int64(len(f.unreadFor[readerID]))
	f.unreadFor[readerID] = nil
	return n, nil
}

type fakeUsers struct {
	users map[string]*domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	requests []notify.Request
}

func (f *fakeNotifier) Enqueue(req notify.Request) {
	f.requests = append(f.requests, req)
}

type fixture struct {
	server   *Server
	chat     *fakeChat
	presence *presence.Memory
	notifier *fakeNotifier

	conv  *domain.Conversation
	user  *domain.User
	staff *domain.User
}

func newFixture() *fixture {
	user := &domain.User{ID: "u1", Email: "u1@example.com", FirstName: "Uma"}
	staff := &domain.User{ID: "s1", Email: "s1@example.com", FirstName: "Sam", IsStaff: true}
	conv := &domain.Conversation{CID: "c1", UserID: user.ID, Owner: user}

	chat := newFakeChat()
	pres := presence.NewMemory(30*time.Second, time.Minute)
	notifier := &fakeNotifier{}
	users := &fakeUsers{users: map[string]*domain.User{user.ID: user, staff.ID: staff}}
	convSvc := &fakeConv{conv: conv, recipient: staff.ID}

	hub := NewHub()
	srv := NewServer(hub, nil, convSvc, chat, users, pres, notifier)

	return &fixture{
		server:   srv,
		chat:     chat,
		presence: pres,
		notifier: notifier,
		conv:     conv,
		user:     user,
		staff:    staff,
	}
}

func (f *fixture) join(u *domain.User) (*session, *fakeConn) {
	c := &fakeConn{userID: u.ID}
	sess := &session{conn: c, user: u, conv: f.conv, room: roomName(f.conv.CID)}
	f.server.hub.Add(sess.room, c)
	return sess, c
}

func lastMessageFrame(t *testing.T, frames []any) MessageFrame {
	t.Helper()
	for i := len(frames) - 1; i >= 0; i-- {
		if mf, ok := frames[i].(MessageFrame); ok {
			return mf
		}
	}
	t.Fatal("no MessageFrame sent")
	return MessageFrame{}
}

func TestChatMessageRecipientOffline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, conn := f.join(f.user)

	f.server.handleChatMessage(ctx, sess, &InboundFrame{Type: TypeChatMessage, Text: "hello"})

	mf := lastMessageFrame(t, conn.frames())
	if mf.Status != string(domain.StatusSent) {
		t.Fatalf("status=%q, want sent while recipient offline", mf.Status)
	}
	if mf.RecipientOnline {
		t.Fatal("recipient_online must be false")
	}
	if mf.Sender != f.user.ID || mf.Message != "hello" {
		t.Fatalf("frame mismatch: %+v", mf)
	}

	if len(f.notifier.requests) != 1 || f.notifier.requests[0].RecipientID != f.staff.ID {
		t.Fatalf("notifier requests: %+v", f.notifier.requests)
	}
}

func TestChatMessageRecipientOnline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, conn := f.join(f.user)

	f.presence.Increment(ctx, f.staff.ID, true)

	f.server.handleChatMessage(ctx, sess, &InboundFrame{Type: TypeChatMessage, Text: "hi"})

	mf := lastMessageFrame(t, conn.frames())
	if mf.Status != string(domain.StatusDelivered) {
		t.Fatalf("status=%q, want delivered while recipient online", mf.Status)
	}
	if !mf.RecipientOnline {
		t.Fatal("recipient_online must be true")
	}
}

func TestChatMessageBroadcastReachesWholeRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userSess, userConn := f.join(f.user)
	_, staffConn := f.join(f.staff)

	f.server.handleChatMessage(ctx, userSess, &InboundFrame{Type: TypeChatMessage, Text: "hello"})

	// сообщение получают обе стороны, включая автора (echo — подтверждение)
	if len(userConn.frames()) == 0 || len(staffConn.frames()) == 0 {
		t.Fatalf("both sides must receive the message: user=%d staff=%d",
			len(userConn.frames()), len(staffConn.frames()))
	}
}

func TestReadReceiptExactlyOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	staffSess, staffConn := f.join(f.staff)
	_, userConn := f.join(f.user)

	f.chat.unreadFor[f.staff.ID] = []domain.MessageWithSender{
		{Message: domain.Message{MID: 1, Body: "hi", SenderID: f.user.ID}, Sender: *f.user},
	}

	f.server.handleRead(ctx, staffSess, &InboundFrame{Type: TypeRead})

	// читатель своё эхо не получает
	if len(staffConn.frames()) != 0 {
		t.Fatalf("reader received own receipt: %+v", staffConn.frames())
	}
	if len(userConn.frames()) != 1 {
		t.Fatalf("sender frames=%d, want 1", len(userConn.frames()))
	}
	rf, ok := userConn.frames()[0].(ReadFrame)
	if !ok || rf.UserID != f.staff.ID {
		t.Fatalf("unexpected frame: %+v", userConn.frames()[0])
	}

	// повторный read без непрочитанных — ноль broadcast-ов
	f.server.handleRead(ctx, staffSess, &InboundFrame{Type: TypeRead})
	if len(userConn.frames()) != 1 {
		t.Fatalf("duplicate receipt broadcast: frames=%d", len(userConn.frames()))
	}
	if f.chat.markReadCalls != 2 {
		t.Fatalf("markReadCalls=%d, want 2", f.chat.markReadCalls)
	}
}

func TestTypingNotEchoed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userSess, userConn := f.join(f.user)
	_, staffConn := f.join(f.staff)

	f.server.handleTyping(ctx, userSess, &InboundFrame{Type: TypeTyping, IsTyping: true})

	if len(userConn.frames()) != 0 {
		t.Fatal("author must not receive own typing echo")
	}
	if len(staffConn.frames()) != 1 {
		t.Fatalf("staff frames=%d, want 1", len(staffConn.frames()))
	}
	tf, ok := staffConn.frames()[0].(TypingFrame)
	if !ok || !tf.IsTyping || tf.UserID != f.user.ID {
		t.Fatalf("unexpected frame: %+v", staffConn.frames()[0])
	}
}

func TestPiggybackReadOnSend(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	staffSess, _ := f.join(f.staff)
	_, userConn := f.join(f.user)

	// у staff лежит непрочитанное от пользователя; staff отвечает
	f.chat.unreadFor[f.staff.ID] = []domain.MessageWithSender{
		{Message: domain.Message{MID: 1, Body: "q", SenderID: f.user.ID}, Sender: *f.user},
	}

	f.server.handleChatMessage(ctx, staffSess, &InboundFrame{Type: TypeChatMessage, Text: "answer"})

	frames := userConn.frames()
	if len(frames) != 2 {
		t.Fatalf("user frames=%d, want receipt + message", len(frames))
	}
	// расписка о прочтении приходит раньше самого ответа
	if _, ok := frames[0].(ReadFrame); !ok {
		t.Fatalf("first frame must be ReadFrame, got %+v", frames[0])
	}
	if _, ok := frames[1].(MessageFrame); !ok {
		t.Fatalf("second frame must be MessageFrame, got %+v", frames[1])
	}
}

func TestUnknownFrameDropped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, conn := f.join(f.user)

	f.server.dispatch(ctx, sess, &InboundFrame{Type: "bogus"})

	if len(conn.frames()) != 0 {
		t.Fatalf("unknown frame produced output: %+v", conn.frames())
	}
}

func TestEmptyMessageDroppedSilently(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, conn := f.join(f.user)

	f.server.handleChatMessage(ctx, sess, &InboundFrame{Type: TypeChatMessage, Text: ""})

	if len(conn.frames()) != 0 {
		t.Fatalf("validation failure must not emit frames: %+v", conn.frames())
	}
	if len(f.notifier.requests) != 0 {
		t.Fatal("validation failure must not notify")
	}
}

func TestPersistenceFailureSendsErrorFrame(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, conn := f.join(f.user)
	_, staffConn := f.join(f.staff)

	f.chat.saveErr = errors.New("db down")

	f.server.handleChatMessage(ctx, sess, &InboundFrame{Type: TypeChatMessage, Text: "hello"})

	// ошибка уходит только отправителю, in-band
	frames := conn.frames()
	if len(frames) != 1 {
		t.Fatalf("sender frames=%d, want 1", len(frames))
	}
	ef, ok := frames[0].(ErrorFrame)
	if !ok || ef.Type != TypeError {
		t.Fatalf("unexpected frame: %+v", frames[0])
	}
	if len(staffConn.frames()) != 0 {
		t.Fatal("peer must not see the failure")
	}
}

func TestImageMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, conn := f.join(f.user)

	f.server.handleImage(ctx, sess, &InboundFrame{Type: TypeImage, Image: "https://cdn/img.png", Text: "look"})

	mf := lastMessageFrame(t, conn.frames())
	if mf.Type != TypeImageMessage {
		t.Fatalf("type=%q, want image_message", mf.Type)
	}
	if mf.Image != "https://cdn/img.png" || mf.Message != "look" {
		t.Fatalf("frame mismatch: %+v", mf)
	}
	if len(f.notifier.requests) != 1 || f.notifier.requests[0].Kind != notify.KindImage {
		t.Fatalf("notifier requests: %+v", f.notifier.requests)
	}
}

func TestUpgradePendingBroadcast(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	staffSess, staffConn := f.join(f.staff)

	f.chat.unreadFor[f.staff.ID] = []domain.MessageWithSender{
		{Message: domain.Message{MID: 1, Body: "hi", SenderID: f.user.ID}, Sender: *f.user},
	}

	f.server.upgradePending(ctx, staffSess)

	frames := staffConn.frames()
	if len(frames) != 1 {
		t.Fatalf("frames=%d, want 1", len(frames))
	}
	sf, ok := frames[0].(StatusUpgradeFrame)
	if !ok {
		t.Fatalf("unexpected frame: %+v", frames[0])
	}
	if sf.RecipientID != f.staff.ID || sf.NewStatus != string(domain.StatusDelivered) {
		t.Fatalf("frame mismatch: %+v", sf)
	}
}

func TestHeartbeatRefreshesOnlineList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, conn := f.join(f.user)

	f.presence.Increment(ctx, f.user.ID, false)
	f.presence.Increment(ctx, f.staff.ID, true)

	f.server.handleHeartbeat(ctx, sess, &InboundFrame{Type: TypeHeartbeat})

	frames := conn.frames()
	if len(frames) != 1 {
		t.Fatalf("frames=%d, want online list", len(frames))
	}
	of, ok := frames[0].(OnlineUsersFrame)
	if !ok {
		t.Fatalf("unexpected frame: %+v", frames[0])
	}
	// пользователь видит противоположную сторону — staff
	if len(of.Users) != 1 || of.Users[0].ID != f.staff.ID {
		t.Fatalf("online list: %+v", of.Users)
	}
}

func TestSendUnreadReplay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	staffSess, staffConn := f.join(f.staff)

	f.chat.unreadFor[f.staff.ID] = []domain.MessageWithSender{
		{Message: domain.Message{MID: 1, Body: "first", SenderID: f.user.ID, Type: domain.MessageText}, Sender: *f.user},
		{Message: domain.Message{MID: 2, Image: "https://cdn/a.png", SenderID: f.user.ID, Type: domain.MessageImage}, Sender: *f.user},
	}

	f.server.sendUnread(ctx, staffSess)

	frames := staffConn.frames()
	if len(frames) != 2 {
		t.Fatalf("frames=%d, want 2", len(frames))
	}
	first := frames[0].(MessageFrame)
	if first.Type != TypeChatMessage || !first.Unread || first.Status != string(domain.StatusDelivered) {
		t.Fatalf("first replay frame: %+v", first)
	}
	second := frames[1].(MessageFrame)
	if second.Type != TypeImageMessage || second.Image == "" {
		t.Fatalf("second replay frame: %+v", second)
	}
}
