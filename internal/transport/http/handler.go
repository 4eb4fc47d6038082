package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"
	"github.com/cwrk-planet/support-chat/internal/postgres"
	"github.com/cwrk-planet/support-chat/internal/presence"
	"github.com/cwrk-planet/support-chat/internal/service"
	"github.com/cwrk-planet/support-chat/internal/storage"
	httpmw "github.com/cwrk-planet/support-chat/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 17 << 20 // чуть больше лимита storage, чтобы отдать внятную ошибку

type Handler struct {
	convSvc  *service.ConversationService
	chatSvc  *service.ChatService
	notifSvc *service.NotificationService
	userSvc  *service.UserService
	presence presence.Store
	storage  *storage.Manager
}

func NewHandler(conv *service.ConversationService, chat *service.ChatService, notif *service.NotificationService, user *service.UserService, pres presence.Store, store *storage.Manager) *Handler {
	return &Handler{
		convSvc:  conv,
		chatSvc:  chat,
		notifSvc: notif,
		userSvc:  user,
		presence: pres,
		storage:  store,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) currentUser(r *http.Request) (*domain.User, error) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == "" {
		return nil, domain.ErrUserNotFound
	}
	return h.userSvc.GetByID(r.Context(), userID)
}

// GET /conversations
// staff — инбокс со счётчиками; пользователь — собственный диалог.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unknown user"})
		return
	}

	if user.IsStaff {
		h.listStaffInbox(w, r, user)
		return
	}

	conv, err := h.convSvc.GetByUser(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no conversation started yet"})
			return
		}
		slog.Error("handler.ListConversations:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	// онлайн хоть один staff — для пользователя этого достаточно
	staffOnline, _ := h.presence.ListOnline(r.Context(), true)

	writeJSON(w, http.StatusOK, ConversationItem{
		CID:       conv.CID,
		Slug:      conv.Slug,
		CreatedAt: conv.CreatedAt,
		IsOnline:  len(staffOnline) > 0,
	})
}

func (h *Handler) listStaffInbox(w http.ResponseWriter, r *http.Request, staff *domain.User) {
	rows, err := h.convSvc.ListForStaff(r.Context(), staff.ID)
	if err != nil {
		slog.Error("handler.listStaffInbox:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	items := make([]ConversationItem, 0, len(rows))
	for _, row := range rows {
		online, _ := h.presence.IsOnline(r.Context(), row.Owner.ID)
		lastMsg := row.LastMessageTime
		items = append(items, ConversationItem{
			CID:       row.Conversation.CID,
			Slug:      row.Conversation.Slug,
			CreatedAt: row.Conversation.CreatedAt,
			UserDetails: &UserItem{
				ID:        row.Owner.ID,
				Email:     row.Owner.Email,
				FirstName: row.Owner.FirstName,
				LastName:  row.Owner.LastName,
				IsStaff:   row.Owner.IsStaff,
			},
			IsOnline:        online,
			UnreadCount:     row.UnreadCount,
			LastMessageTime: &lastMsg,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// POST /conversations — только обычный пользователь, один диалог на аккаунт.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unknown user"})
		return
	}

	conv, err := h.convSvc.Create(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "staff cannot start conversations"})
		case errors.Is(err, domain.ErrConversationExists):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "conversation already exists"})
		default:
			slog.Error("handler.CreateConversation:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, ConversationItem{
		CID:       conv.CID,
		Slug:      conv.Slug,
		CreatedAt: conv.CreatedAt,
	})
}

// GET /conversations/{cid}/messages?cursor=&limit=&search=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unknown user"})
		return
	}

	cid := chi.URLParam(r, "cid")
	conv, err := h.convSvc.Get(r.Context(), cid)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
			return
		}
		slog.Error("handler.GetMessages:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !h.convSvc.Access(conv, user) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "access denied"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")
	search := r.URL.Query().Get("search")

	msgs, next, err := h.chatSvc.History(r.Context(), cid, cursor, limit, search)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.GetMessages:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := MessagesResponse{Items: make([]MessageItem, 0, len(msgs)), NextCursor: next}
	for _, m := range msgs {
		resp.Items = append(resp.Items, MessageItem{
			MessageID:   m.MID,
			Message:     m.Body,
			Image:       m.Image,
			Type:        string(m.Type),
			Sender:      m.SenderID,
			SenderName:  m.Sender.DisplayName(),
			SenderEmail: m.Sender.Email,
			Timestamp:   m.Timestamp.Format(time.RFC3339),
			IsRead:      m.IsRead,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /notifications?limit=
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	list, err := h.notifSvc.ListForUser(r.Context(), userID, limit)
	if err != nil {
		slog.Error("handler.ListNotifications:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	items := make([]NotificationItem, 0, len(list))
	for _, n := range list {
		items = append(items, NotificationItem{
			NID:          n.NID,
			Notification: n.Body,
			IsRead:       n.IsRead,
			CreatedAt:    n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// POST /notifications/{nid}/read
func (h *Handler) ReadNotification(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	nid, err := strconv.ParseInt(chi.URLParam(r, "nid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid notification id"})
		return
	}

	updated, err := h.notifSvc.MarkRead(r.Context(), nid, userID)
	if err != nil {
		slog.Error("handler.ReadNotification:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if updated == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "notification not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// POST /uploads — multipart, поле file; байты валидируются хранилищем.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "storage disabled"})
		return
	}
	userID := httpmw.UserIDFromCtx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "no file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "read failed"})
		return
	}

	desc, err := h.storage.ValidateAndUpload(r.Context(), data, header.Filename, userID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyFile),
			errors.Is(err, storage.ErrTooLarge),
			errors.Is(err, storage.ErrBadFilename),
			errors.Is(err, storage.ErrTypeNotAllowed):
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("handler.Upload:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "upload failed"})
		}
		return
	}

	signed, err := h.storage.SignURL(r.Context(), desc.Key)
	if err != nil {
		slog.Warn("handler.Upload sign:", slog.Any("err", err))
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Key:       desc.Key,
		URL:       desc.URL,
		SignedURL: signed,
		MIME:      desc.MIME,
		Size:      desc.Size,
	})
}
