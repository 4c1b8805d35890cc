package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"veilchat/domain"
	"veilchat/errors"
	"veilchat/services"
	"veilchat/storage"
)

const maxUploadBytes = 25 << 20 // 25 MB

type Handler struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	media       *storage.MediaStore
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string        `json:"access_token"`
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid body")
		return
	}

	token, identity, err := h.authService.Register(req.Username, req.Phone, req.Password)
	switch {
	case errors.Is(err, errors.ErrUserAlreadyExists):
		jsonError(w, http.StatusConflict, "username taken")
		return
	case errors.Is(err, errors.ErrInvalidPassword):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("register failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		Token:    string(token),
		UserID:   identity.ID,
		Username: identity.Username,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid body")
		return
	}

	token, identity, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:    string(token),
		UserID:   identity.ID,
		Username: identity.Username,
	})
}

type messageResponse struct {
	ID         domain.MessageID   `json:"id"`
	SenderID   domain.UserID      `json:"sender_id"`
	ReceiverID domain.UserID      `json:"receiver_id"`
	Ciphertext string             `json:"encrypted_content"`
	Type       domain.MessageType `json:"message_type"`
	MediaRef   *string            `json:"media_url"`
	ReplyTo    *domain.MessageID  `json:"reply_to_message_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Read       bool               `json:"is_read"`
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	identity, target, ok := h.pair(w, r)
	if !ok {
		return
	}

	messages, err := h.chatService.History(identity.ID, target)
	if err != nil {
		h.log.Error("history fetch failed", "user_id", identity.ID, "target", target, "error", err)
		jsonError(w, http.StatusInternalServerError, "history fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Ciphertext: m.Ciphertext,
			Type:       m.Type,
			MediaRef:   m.MediaRef,
			ReplyTo:    m.ReplyTo,
			Timestamp:  m.Timestamp,
			Read:       m.Read,
		}
	}))
}

// MarkRead flips read flags for everything target sent to the caller,
// then the chat service pushes messages_read to target's devices.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, target, ok := h.pair(w, r)
	if !ok {
		return
	}

	count, err := h.chatService.MarkRead(r.Context(), identity.ID, target)
	if err != nil {
		h.log.Error("mark-read failed", "user_id", identity.ID, "target", target, "error", err)
		jsonError(w, http.StatusInternalServerError, "mark-read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked_count": count})
}

func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	identity, target, ok := h.pair(w, r)
	if !ok {
		return
	}

	count, err := h.chatService.Clear(identity.ID, target)
	if err != nil {
		h.log.Error("clear chat failed", "user_id", identity.ID, "target", target, "error", err)
		jsonError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted_count": count})
}

type peerResponse struct {
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
	Online   bool          `json:"online"`
	LastSeen time.Time     `json:"last_seen"`
}

// Peer exposes another user's presence: live status plus the
// last_seen stamp written on their most recent disconnect.
func (h *Handler) Peer(w http.ResponseWriter, r *http.Request) {
	_, target, ok := h.pair(w, r)
	if !ok {
		return
	}

	status, err := h.chatService.Peer(target)
	if err != nil {
		jsonError(w, http.StatusNotFound, "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, peerResponse{
		UserID:   status.UserID,
		Username: status.Username,
		Online:   status.Online,
		LastSeen: status.LastSeen,
	})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ref, err := h.media.Save(file)
	if err != nil {
		h.log.Warn("upload rejected", "error", err)
		jsonError(w, http.StatusUnsupportedMediaType, "unsupported media")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": ref})
}

// pair resolves the authenticated caller and the {userID} route
// parameter, writing the error response itself when either is missing.
func (h *Handler) pair(w http.ResponseWriter, r *http.Request) (domain.Identity, domain.UserID, bool) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		jsonError(w, http.StatusUnauthorized, "unauthenticated")
		return domain.Identity{}, 0, false
	}

	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return domain.Identity{}, 0, false
	}
	return identity, domain.UserID(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
