package push

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/pubsub"
	"github.com/zhouzirui/eddez/backend/pkg/utils"
)

const (
	readTimeout       = 60 * time.Second
	pingInterval      = 54 * time.Second
	writeTimeout      = 10 * time.Second
	heartbeatInterval = 25 * time.Second
	subscriberBuffer  = 16
)

// Subscriber 推送事件的订阅源，由 pubsub.Hub 实现
type Subscriber interface {
	Subscribe(buffer int) (<-chan pubsub.Event, func())
}

// Handler 通过 WebSocket 与 SSE 向客户端推送知识库更新等事件
type Handler struct {
	hub      Subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// New 创建推送处理器
func New(hub Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With(zap.String("component", "push-handler")),
	}
}

// RegisterRoutes 注册推送路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/events", h.handleSSE)
}

// handleWebSocket 升级连接后只向客户端写事件，客户端发来的消息被丢弃
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// 握手完成前订阅，客户端连上后发布的事件不会丢失
	events, cancel := h.hub.Subscribe(subscriberBuffer)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	go h.readLoop(conn, stop)

	h.logger.Debug("push client connected", zap.String("remote", r.RemoteAddr))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Debug("push write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// readLoop 读取直到连接关闭，以便处理 pong 和关闭帧
func (h *Handler) readLoop(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("push read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// handleSSE 与 WebSocket 通道相同的事件流，供无法使用 WebSocket 的客户端
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.hub.Subscribe(subscriberBuffer)
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEComment(w, flusher, "connected"); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, evt.Type, evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "ping"); err != nil {
				return
			}
		}
	}
}
