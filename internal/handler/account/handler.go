package account

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/eddez/backend/internal/model/user"
	"github.com/zhouzirui/eddez/backend/internal/storage"
	"github.com/zhouzirui/eddez/backend/pkg/utils"
)

const adminName = "Admin"

// Admin 服务端配置的管理员账号，不落库
type Admin struct {
	Email    string
	Password string
}

func (a Admin) matches(email, password string) bool {
	if a.Email == "" || a.Password == "" {
		return false
	}
	if user.NormalizeEmail(a.Email) != email {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.Password), []byte(password)) == 1
}

// Handler 账号注册、登录与用户列表
type Handler struct {
	store  storage.UserStore
	admin  Admin
	cost   int
	logger *zap.Logger
}

// Option 自定义处理器
type Option func(*Handler)

// WithHashCost 设置 bcrypt 成本，测试中用较低成本加速
func WithHashCost(cost int) Option {
	return func(h *Handler) {
		h.cost = cost
	}
}

// New 创建账号处理器
func New(store storage.UserStore, admin Admin, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		store:  store,
		admin:  admin,
		cost:   bcrypt.DefaultCost,
		logger: logger.With(zap.String("component", "account-handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes 注册账号相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)
	r.Get("/users", h.handleListUsers)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Success bool       `json:"success"`
	User    *user.User `json:"user,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func respondAuthError(w http.ResponseWriter, status int, message string) {
	utils.RespondJSON(w, status, authResponse{Success: false, Error: message})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := utils.DecodeJSON(w, r, &req, 0); err != nil {
		respondAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := user.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		respondAuthError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if h.admin.Email != "" && user.NormalizeEmail(h.admin.Email) == email {
		respondAuthError(w, http.StatusBadRequest, "User already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		h.logger.Error("hash password failed", zap.Error(err))
		respondAuthError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	account := user.Account{
		User:         user.User{Email: email, Name: name, Role: user.RoleUser},
		PasswordHash: string(hash),
	}

	if err := h.store.CreateUser(r.Context(), account); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			respondAuthError(w, http.StatusBadRequest, "User already exists")
			return
		}
		h.logger.Error("create user failed", zap.String("email", email), zap.Error(err))
		respondAuthError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	h.logger.Info("user signed up", zap.String("email", email))
	utils.RespondJSON(w, http.StatusOK, authResponse{Success: true, User: &account.User})
}

// handleLogin 管理员账号优先匹配，其余走存储中的 bcrypt 校验
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := utils.DecodeJSON(w, r, &req, 0); err != nil {
		respondAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := user.NormalizeEmail(req.Email)

	if h.admin.matches(email, req.Password) {
		admin := user.User{Email: email, Name: adminName, Role: user.RoleAdmin}
		utils.RespondJSON(w, http.StatusOK, authResponse{Success: true, User: &admin})
		return
	}

	account, err := h.store.FindUser(r.Context(), email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("find user failed", zap.String("email", email), zap.Error(err))
		}
		respondAuthError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		respondAuthError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	utils.RespondJSON(w, http.StatusOK, authResponse{Success: true, User: &account.User})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []user.User{}
	}
	utils.RespondJSON(w, http.StatusOK, users)
}
