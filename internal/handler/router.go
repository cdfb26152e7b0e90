package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/handler/account"
	"github.com/zhouzirui/eddez/backend/internal/handler/completion"
	"github.com/zhouzirui/eddez/backend/internal/handler/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/handler/push"
	"github.com/zhouzirui/eddez/backend/internal/handler/session"
	"github.com/zhouzirui/eddez/backend/internal/handler/settings"
	middlewarePkg "github.com/zhouzirui/eddez/backend/internal/middleware"
	"github.com/zhouzirui/eddez/backend/internal/pubsub"
	"github.com/zhouzirui/eddez/backend/internal/service/upstream"
	"github.com/zhouzirui/eddez/backend/internal/storage"
	"github.com/zhouzirui/eddez/backend/pkg/utils"
)

// Dependencies 路由所需的全部服务
type Dependencies struct {
	Store          storage.Store
	Hub            push.Subscriber
	Publisher      pubsub.Publisher
	Completer      upstream.Completer
	Admin          account.Admin
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handleHealth)

		account.New(deps.Store, deps.Admin, logger).RegisterRoutes(api)
		knowledge.New(deps.Store, deps.Publisher, logger).RegisterRoutes(api)
		session.New(deps.Store, logger).RegisterRoutes(api)
		settings.New(deps.Store, logger).RegisterRoutes(api)
		completion.New(deps.Completer, logger).RegisterRoutes(api)

		if deps.Hub != nil {
			push.New(deps.Hub, logger).RegisterRoutes(api)
		}

		api.NotFound(handleNotFound)
		api.MethodNotAllowed(handleNotFound)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusNotFound, map[string]any{
		"success": false,
		"error":   "API Endpoint Not Found",
	})
}
