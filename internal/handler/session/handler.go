package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/storage"
	"github.com/zhouzirui/eddez/backend/pkg/utils"
)

const maxBodyBytes = 8 << 20

// Handler 会话历史的HTTP处理器
type Handler struct {
	store  storage.SessionStore
	logger *zap.Logger
}

// New 创建会话处理器
func New(store storage.SessionStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger.With(zap.String("component", "session-handler"))}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleSave)
		r.Delete("/{user}/{sessionID}", h.handleDelete)
	})
}

type saveRequest struct {
	User    string       `json:"user"`
	Session chat.Session `json:"session"`
}

// handleList 返回用户的全部会话，最新的在前
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user is required")
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.String("user", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []chat.Session{}
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

// handleSave 按ID替换或新增会话
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := utils.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.User = strings.TrimSpace(req.User)
	if req.User == "" || strings.TrimSpace(req.Session.ID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "user and session id are required")
		return
	}
	if req.Session.Title == "" {
		req.Session.Title = chat.DefaultTitle
	}

	if err := h.store.SaveSession(r.Context(), req.User, req.Session); err != nil {
		h.logger.Error("save session failed",
			zap.String("user", req.User),
			zap.String("session_id", req.Session.ID),
			zap.Error(err),
		)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDelete 删除会话，不存在的会话同样视为成功
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.store.DeleteSession(r.Context(), userID, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("delete session failed",
			zap.String("user", userID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
