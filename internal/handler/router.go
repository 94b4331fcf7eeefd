package handler

import (
	"sort"
	"time"

	"friend-chat/pkg/jwt"
	"friend-chat/pkg/logger"
	"friend-chat/pkg/metrics"
	"friend-chat/pkg/response"
	"friend-chat/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	JWT      *jwt.JWTService
	Users    *UserHandler
	Friends  *FriendHandler
	Messages *MessageHandler
	Gateway  *websocket.Gateway
	Metrics  *metrics.Metrics

	// AssetDir 非空时以 AssetURL 为前缀提供本地图片资源
	AssetDir string
	AssetURL string

	// HealthChecks 名称 → 检查函数，/health 依次执行
	HealthChecks map[string]func() error
}

// NewRouter 创建并配置全部路由
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(logger.RequestLogger())
	router.Use(logger.ErrorLoggerMiddleware())

	setupBasicRoutes(router, d)

	auth := d.JWT.AuthMiddleware()
	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/auth")
		{
			users.POST("/signup", d.Users.Signup)
			users.POST("/login", d.Users.Login)
			users.POST("/logout", d.Users.Logout)
			users.GET("/check", auth, d.Users.Check)
			users.PUT("/update-profile", auth, d.Users.UpdateProfile)
		}

		friends := v1.Group("/friends")
		friends.Use(auth)
		{
			friends.GET("/search", d.Friends.Search)
			friends.POST("/request", d.Friends.SendRequest)
			friends.GET("/requests/received", d.Friends.Received)
			friends.GET("/requests/sent", d.Friends.Sent)
			friends.POST("/request/accept", d.Friends.Accept)
			friends.POST("/request/reject", d.Friends.Reject)
			friends.GET("/list", d.Friends.List)
			friends.DELETE("/remove", d.Friends.Remove)
			friends.GET("/status/:userId", d.Friends.Status)
		}

		messages := v1.Group("/messages")
		messages.Use(auth)
		{
			messages.GET("/users", d.Messages.Contacts)
			messages.GET("/:peerId", d.Messages.GetMessages)
			messages.POST("/send/:peerId", d.Messages.SendMessage)
			messages.DELETE("/:messageId", d.Messages.DeleteMessage)
		}
	}

	// WebSocket路由
	router.GET("/ws", d.Gateway.Handle)

	return router
}

// setupBasicRoutes 健康检查、指标与静态资源
func setupBasicRoutes(router *gin.Engine, d RouterDeps) {
	router.GET("/health", func(c *gin.Context) {
		names := make([]string, 0, len(d.HealthChecks))
		for name := range d.HealthChecks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := "ok"
		checks := gin.H{}
		for _, name := range names {
			if err := d.HealthChecks[name](); err != nil {
				status = name + "-down"
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}
		response.Success(c, gin.H{
			"status": status,
			"checks": checks,
			"online": d.Gateway.Hub().Count(),
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	if d.AssetDir != "" && d.AssetURL != "" {
		router.Static(d.AssetURL, d.AssetDir)
	}
}
