package completion

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/service/upstream"
	"github.com/zhouzirui/eddez/backend/pkg/utils"
)

const (
	// MissingCredentialMessage 未配置上游密钥时返回的错误文案
	MissingCredentialMessage = "Missing API Key configuration on server."
	configurationCode        = "configuration"
	maxBodyBytes             = 4 << 20
)

// Handler 将聊天补全请求转发到上游模型服务
type Handler struct {
	completer upstream.Completer
	logger    *zap.Logger
}

// New 创建补全代理处理器，completer 为 nil 表示服务端未配置密钥
func New(completer upstream.Completer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{completer: completer, logger: logger.With(zap.String("component", "completion-handler"))}
}

// RegisterRoutes 注册补全代理路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat-completion", h.handleComplete)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	if h.completer == nil {
		utils.RespondErrorCode(w, http.StatusInternalServerError, configurationCode, MissingCredentialMessage)
		return
	}

	var req upstream.Request
	if err := utils.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.completer.Complete(r.Context(), req)
	if err != nil {
		h.respondUpstreamError(w, req.Model, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// respondUpstreamError 缺少密钥返回500和configuration错误码，其余上游失败统一返回502
func (h *Handler) respondUpstreamError(w http.ResponseWriter, modelName string, err error) {
	if errors.Is(err, upstream.ErrMissingCredential) {
		utils.RespondErrorCode(w, http.StatusInternalServerError, configurationCode, MissingCredentialMessage)
		return
	}

	fields := []zap.Field{zap.String("model", modelName), zap.Error(err)}
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		fields = append(fields, zap.Int("upstream_status", statusErr.Status))
	}
	h.logger.Warn("upstream completion failed", fields...)
	utils.RespondError(w, http.StatusBadGateway, err.Error())
}
