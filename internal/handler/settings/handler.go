package settings

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	model "github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/storage"
	"github.com/zhouzirui/eddez/backend/pkg/utils"
)

// Handler 用户偏好设置的HTTP处理器
type Handler struct {
	store  storage.SettingsStore
	logger *zap.Logger
}

// New 创建设置处理器
func New(store storage.SettingsStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger.With(zap.String("component", "settings-handler"))}
}

// RegisterRoutes 注册设置相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleGet)
	r.Post("/settings", h.handleSave)
}

type saveRequest struct {
	User     string             `json:"user"`
	Settings model.UserSettings `json:"settings"`
}

// handleGet 返回用户设置，未保存过的用户返回默认值
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user is required")
		return
	}

	prefs, err := h.store.GetSettings(r.Context(), userID)
	if err != nil {
		h.logger.Error("load settings failed", zap.String("user", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prefs.WithDefaults())
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := utils.DecodeJSON(w, r, &req, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.User = strings.TrimSpace(req.User)
	if req.User == "" {
		utils.RespondError(w, http.StatusBadRequest, "user is required")
		return
	}

	prefs := req.Settings.WithDefaults()
	if err := prefs.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SaveSettings(r.Context(), req.User, prefs); err != nil {
		if errors.Is(err, storage.ErrUserRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("save settings failed", zap.String("user", req.User), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
