package knowledge

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/pubsub"
	"github.com/zhouzirui/eddez/backend/internal/storage"
	"github.com/zhouzirui/eddez/backend/pkg/utils"
)

const maxBodyBytes = 4 << 20

// Handler 知识库的HTTP处理器
type Handler struct {
	store     storage.KnowledgeStore
	publisher pubsub.Publisher
	logger    *zap.Logger
}

// New 创建知识库处理器，publisher 用于通知客户端知识库已更新
func New(store storage.KnowledgeStore, publisher pubsub.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:     store,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "knowledge-handler")),
	}
}

// RegisterRoutes 注册知识库相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/knowledge-base", h.handleList)
	r.Post("/knowledge-base", h.handleReplace)
}

// handleList 返回按管理员顺序排列的知识条目
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListKnowledge(r.Context())
	if err != nil {
		h.logger.Error("list knowledge failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load knowledge base")
		return
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

// handleReplace 整体替换知识库并广播 KB_UPDATED
func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	var items []knowledge.Item
	if err := utils.DecodeJSON(w, r, &items, maxBodyBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	normalized := make([]knowledge.Item, 0, len(items))
	for idx, item := range items {
		if err := item.Validate(); err != nil {
			utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("entry %d: %v", idx+1, err))
			return
		}
		item = item.Normalize()
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		normalized = append(normalized, item)
	}

	if err := h.store.ReplaceKnowledge(r.Context(), normalized); err != nil {
		h.logger.Error("replace knowledge failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save knowledge base")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), pubsub.NewEvent(pubsub.EventKnowledgeUpdated)); err != nil {
			h.logger.Warn("broadcast knowledge update failed", zap.Error(err))
		}
	}

	h.logger.Info("knowledge base replaced", zap.Int("items", len(normalized)))
	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "items": normalized})
}
