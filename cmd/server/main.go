package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"friend-chat/config"
	"friend-chat/internal/handler"
	"friend-chat/internal/model"
	"friend-chat/internal/presence"
	"friend-chat/internal/repository"
	"friend-chat/internal/service"
	"friend-chat/pkg/asset"
	dbPkg "friend-chat/pkg/db"
	"friend-chat/pkg/jwt"
	"friend-chat/pkg/logger"
	"friend-chat/pkg/metrics"
	redisPkg "friend-chat/pkg/redis"
	"friend-chat/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "配置文件路径")
	pflag.Parse()

	// 1. 加载配置
	cfg := config.LoadConfigFrom(*configPath)

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer logger.Sync()

	log.Info("=== friend-chat 启动 ===")
	log.Info("服务器配置信息",
		zap.String("config", *configPath),
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.String("presence_backend", cfg.Presence.Backend),
		zap.Bool("trust_claimed_identity", cfg.WebSocket.TrustClaimedIdentity),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	db, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(&model.User{}, &model.Friendship{}, &model.Message{}); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 4. 在线状态注册表
	registry, err := newRegistry(cfg, log)
	if err != nil {
		log.Fatal("初始化在线状态失败", zap.Error(err))
	}
	defer redisPkg.Close()

	// 5. 图片资源存储
	store, err := asset.NewLocalStore(cfg.Asset)
	if err != nil {
		log.Fatal("初始化资源存储失败", zap.Error(err))
	}

	// 6. 初始化业务服务
	m := metrics.New()
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	gateway := websocket.NewGateway(cfg.WebSocket, registry, jwtSvc, m, log.Named("gateway"))

	userRepo := repository.NewUserRepository(db)
	friendRepo := repository.NewFriendshipRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	userSvc := service.NewUserService(userRepo, jwtSvc, store, cfg.Asset.Timeout, log.Named("user"))
	friendSvc := service.NewFriendService(userRepo, friendRepo, m, log.Named("friend"))
	messageSvc := service.NewMessageService(messageRepo, friendRepo, userRepo, gateway, store, cfg.Asset.Timeout, m, log.Named("message"))

	// 7. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.RouterDeps{
		JWT:      jwtSvc,
		Users:    handler.NewUserHandler(userSvc, jwtSvc, cfg.Server.SecureCookie),
		Friends:  handler.NewFriendHandler(friendSvc),
		Messages: handler.NewMessageHandler(messageSvc),
		Gateway:  gateway,
		Metrics:  m,
		AssetDir: store.Dir(),
		AssetURL: cfg.Asset.BaseURL,
		HealthChecks: map[string]func() error{
			"db":    dbPkg.HealthCheck,
			"redis": redisPkg.HealthCheck,
		},
	})

	// 8. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 已升级的WebSocket连接不受 Shutdown 管理，需单独关闭
	gateway.Shutdown()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}

// newRegistry 按配置选择在线状态后端
func newRegistry(cfg *config.Config, log *zap.Logger) (presence.Registry, error) {
	switch cfg.Presence.Backend {
	case "", "memory":
		log.Info("在线状态使用进程内存")
		return presence.NewMemoryRegistry(), nil
	case "redis":
		client, err := redisPkg.InitRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		store := redisPkg.NewPresenceStore(client, cfg.Presence.Namespace)

		// 重启后所有用户在重新连接前均为离线
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Reset(ctx); err != nil {
			return nil, err
		}
		log.Info("在线状态使用Redis", zap.String("namespace", cfg.Presence.Namespace))
		return store, nil
	default:
		return nil, errors.New("未知的在线状态后端: " + cfg.Presence.Backend)
	}
}
