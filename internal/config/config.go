package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// 上游提供方
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// 存储驱动
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	AI        AIConfig
	Storage   StorageConfig
	Push      PushConfig
	Knowledge KnowledgeConfig
	Admin     AdminConfig
	Log       LogConfig
	Widget    WidgetConfig
}

// Load 从环境变量加载配置，设置了 CONFIG_FILE 时先读取该文件，环境变量优先。
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return loadFrom(v)
}

func loadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}
	upstream, err := loadUpstreamConfig(v)
	if err != nil {
		return nil, err
	}
	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}
	storage, err := loadStorageConfig(v)
	if err != nil {
		return nil, err
	}
	logCfg, err := loadLogConfig(v)
	if err != nil {
		return nil, err
	}
	widget, err := loadWidgetConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Upstream: upstream,
		AI:       ai,
		Storage:  storage,
		Push: PushConfig{
			RedisURL: strings.TrimSpace(v.GetString("REDIS_URL")),
			Channel:  strings.TrimSpace(v.GetString("REDIS_CHANNEL")),
		},
		Knowledge: KnowledgeConfig{SeedFile: strings.TrimSpace(v.GetString("KB_SEED_FILE"))},
		Admin: AdminConfig{
			Email:    strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
		Log:    logCfg,
		Widget: widget,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("UPSTREAM_PROVIDER", ProviderOpenAI)
	v.SetDefault("UPSTREAM_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ARK_REGION", "cn-beijing")
	v.SetDefault("STORAGE_DRIVER", DriverMemory)
	v.SetDefault("SQLITE_PATH", "eddez.db")
	v.SetDefault("REDIS_CHANNEL", "eddez:events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WIDGET_SERVER_URL", "http://localhost:8080")
	v.SetDefault("PRIMARY_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("FALLBACK_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("MODEL_TEMPERATURE", "0.1")
	v.SetDefault("MODEL_MAX_TOKENS", "1024")
	v.SetDefault("MODEL_TOP_P", "0.8")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(v.GetString("ALLOWED_ORIGINS"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// UpstreamConfig 描述补全代理转发的目标。
type UpstreamConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
}

func loadUpstreamConfig(v *viper.Viper) (UpstreamConfig, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("UPSTREAM_PROVIDER")))
	switch provider {
	case ProviderOpenAI, ProviderArk:
	default:
		return UpstreamConfig{}, fmt.Errorf("invalid UPSTREAM_PROVIDER value: %q", provider)
	}

	apiKey := strings.TrimSpace(v.GetString("GROQ_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(v.GetString("OPENAI_API_KEY"))
	}

	return UpstreamConfig{
		Provider: provider,
		APIKey:   apiKey,
		BaseURL:  strings.TrimSpace(v.GetString("UPSTREAM_BASE_URL")),
	}, nil
}

// AIConfig 描述 Ark 大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: toFloat32(c.Temperature),
		TopP:        toFloat32(c.TopP),
	}

	return ark.NewChatModel(ctx, cfg)
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseOptionalFloat(v, "ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat(v, "ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(v.GetString("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(v.GetString("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(v.GetString("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(v.GetString("ARK_MODEL")),
		BaseURL:     strings.TrimSpace(v.GetString("ARK_BASE_URL")),
		Region:      strings.TrimSpace(v.GetString("ARK_REGION")),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// StorageConfig 描述持久化后端。
type StorageConfig struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
}

func loadStorageConfig(v *viper.Viper) (StorageConfig, error) {
	cfg := StorageConfig{
		Driver:      strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		SQLitePath:  strings.TrimSpace(v.GetString("SQLITE_PATH")),
		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
	}

	switch cfg.Driver {
	case DriverMemory:
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return StorageConfig{}, fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return StorageConfig{}, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_DRIVER value: %q", cfg.Driver)
	}
	return cfg, nil
}

// PushConfig 描述跨进程事件广播，RedisURL 为空时仅在进程内广播。
type PushConfig struct {
	RedisURL string
	Channel  string
}

// KnowledgeConfig 知识库初始数据来源。
type KnowledgeConfig struct {
	SeedFile string
}

// AdminConfig 管理员账号。
type AdminConfig struct {
	Email    string
	Password string
}

// LogConfig 日志配置。
type LogConfig struct {
	Level zapcore.Level
}

func loadLogConfig(v *viper.Viper) (LogConfig, error) {
	raw := strings.TrimSpace(v.GetString("LOG_LEVEL"))
	level, err := zapcore.ParseLevel(raw)
	if err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q: %w", raw, err)
	}
	return LogConfig{Level: level}, nil
}

// WidgetConfig 终端聊天客户端的配置。
type WidgetConfig struct {
	ServerURL      string
	PrimaryModel   string
	FallbackModel  string
	Temperature    float32
	MaxTokens      int
	TopP           float32
	RequestTimeout time.Duration
	SupportURL     string
}

func loadWidgetConfig(v *viper.Viper) (WidgetConfig, error) {
	temperature, err := parseFloat(v, "MODEL_TEMPERATURE")
	if err != nil {
		return WidgetConfig{}, err
	}
	topP, err := parseFloat(v, "MODEL_TOP_P")
	if err != nil {
		return WidgetConfig{}, err
	}
	maxTokens, err := parseOptionalInt(v, "MODEL_MAX_TOKENS")
	if err != nil {
		return WidgetConfig{}, err
	}
	if maxTokens == nil || *maxTokens < 1 {
		return WidgetConfig{}, fmt.Errorf("invalid MODEL_MAX_TOKENS value: must be positive")
	}

	rawTimeout := strings.TrimSpace(v.GetString("REQUEST_TIMEOUT"))
	timeout, err := time.ParseDuration(rawTimeout)
	if err != nil || timeout <= 0 {
		return WidgetConfig{}, fmt.Errorf("invalid REQUEST_TIMEOUT value %q", rawTimeout)
	}

	return WidgetConfig{
		ServerURL:      strings.TrimRight(strings.TrimSpace(v.GetString("WIDGET_SERVER_URL")), "/"),
		PrimaryModel:   strings.TrimSpace(v.GetString("PRIMARY_MODEL")),
		FallbackModel:  strings.TrimSpace(v.GetString("FALLBACK_MODEL")),
		Temperature:    float32(temperature),
		MaxTokens:      *maxTokens,
		TopP:           float32(topP),
		RequestTimeout: timeout,
		SupportURL:     strings.TrimSpace(v.GetString("SUPPORT_URL")),
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloat(v *viper.Viper, key string) (float64, error) {
	val, err := parseOptionalFloat(v, key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	return *val, nil
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
