package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/config"
	"github.com/zhouzirui/eddez/backend/internal/handler"
	"github.com/zhouzirui/eddez/backend/internal/handler/account"
	"github.com/zhouzirui/eddez/backend/internal/logging"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/pubsub"
	"github.com/zhouzirui/eddez/backend/internal/service/upstream"
	"github.com/zhouzirui/eddez/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	seed, err := loadSeed(cfg.Knowledge)
	if err != nil {
		logger.Fatal("failed to load knowledge seed", zap.Error(err))
	}

	store, err := openStore(ctx, cfg.Storage, seed)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()
	logger.Info("storage ready", zap.String("driver", cfg.Storage.Driver))

	hub := pubsub.NewHub(logger)
	var publisher pubsub.Publisher = hub
	if cfg.Push.RedisURL != "" {
		rdb, err := pubsub.Connect(ctx, cfg.Push.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, push events stay in-process", zap.Error(err))
		} else {
			defer rdb.Close()
			bridge := pubsub.NewRedisBridge(rdb, cfg.Push.Channel, hub, logger)
			publisher = bridge
			go func() {
				if err := bridge.Run(ctx); err != nil {
					logger.Error("redis bridge stopped", zap.Error(err))
				}
			}()
		}
	}

	completer := newCompleter(ctx, cfg, logger)

	router := handler.NewRouter(handler.Dependencies{
		Store:          store,
		Hub:            hub,
		Publisher:      publisher,
		Completer:      completer,
		Admin:          account.Admin{Email: cfg.Admin.Email, Password: cfg.Admin.Password},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func loadSeed(cfg config.KnowledgeConfig) ([]knowledge.Item, error) {
	if cfg.SeedFile == "" {
		return knowledge.Seed(), nil
	}
	return knowledge.LoadFile(cfg.SeedFile)
}

func openStore(ctx context.Context, cfg config.StorageConfig, seed []knowledge.Item) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return storage.OpenSQL(ctx, storage.DriverSQLite, cfg.SQLitePath, seed)
	case config.DriverPostgres:
		return storage.OpenSQL(ctx, storage.DriverPostgres, cfg.DatabaseURL, seed)
	case config.DriverMemory:
		return storage.NewMemoryStore(seed), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// newCompleter 根据配置选择上游，缺少凭证时返回 nil，补全接口会回报 configuration 错误
func newCompleter(ctx context.Context, cfg *config.Config, logger *zap.Logger) upstream.Completer {
	switch cfg.Upstream.Provider {
	case config.ProviderArk:
		if !cfg.AI.Enabled() {
			logger.Warn("Ark 凭证未配置，补全接口将返回配置错误")
			return nil
		}
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize Ark chat model", zap.Error(err))
			return nil
		}
		completer, err := upstream.NewModelCompleter(chatModel)
		if err != nil {
			logger.Warn("failed to initialize Ark completer", zap.Error(err))
			return nil
		}
		logger.Info("upstream ready", zap.String("provider", "ark"), zap.String("model", cfg.AI.Model))
		return completer
	default:
		completer, err := upstream.NewOpenAICompleter(cfg.Upstream.APIKey, cfg.Upstream.BaseURL)
		if err != nil {
			logger.Warn("upstream api key missing, chat completion will report a configuration error", zap.Error(err))
			return nil
		}
		logger.Info("upstream ready", zap.String("provider", "openai"), zap.String("base_url", cfg.Upstream.BaseURL))
		return completer
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Eddez proxy listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
