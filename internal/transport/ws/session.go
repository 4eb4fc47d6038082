package ws

import (
	"sync"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"

	"github.com/gorilla/websocket"
)

// Коды закрытия: каждая причина отказа — свой код.
const (
	CloseUnauthenticated     = 4001
	CloseMissingConversation = 4002
	CloseForbidden           = 4003
	CloseNotFound            = 4004
	CloseInternalError       = 4500
)

// session — одно сокет-подключение, привязанное к identity и диалогу.
type session struct {
	conn Conn
	user *domain.User
	conv *domain.Conversation
	room string

	// cleanup обязан выполниться ровно один раз, даже если явное закрытие
	// гоняется с error-path
	cleanupOnce sync.Once
}

func roomName(cid string) string {
	return "conversation_" + cid
}

type wsConn struct {
	conn   *websocket.Conn
	userID string
	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, userID string) *wsConn {
	return &wsConn{
		conn:   c,
		userID: userID,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(v any) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) UserID() string { return c.userID }

// closeWithCode отправляет close-кадр с кодом причины и закрывает сокет.
func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
	_ = conn.Close()
}
